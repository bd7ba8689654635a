package achievement

import (
	"time"

	"github.com/screenwise/screentime-service/internal/challenge"
	"github.com/screenwise/screentime-service/internal/monitor"
)

// Input is a read-only view of the state the trigger rules derive from.
type Input struct {
	History    []challenge.Challenge
	AppCount   int
	DailyStats []monitor.DailyStat
}

// Evaluate applies every trigger rule against the input and flips matching
// achievements to unlocked in place, stamping UnlockedAt with now. Already
// unlocked achievements are never re-evaluated, so each rule fires at most
// once. Returns the ids newly unlocked by this call.
func Evaluate(now time.Time, in Input, achievements []Achievement) []string {
	var newly []string

	for i := range achievements {
		a := &achievements[i]
		if a.Unlocked {
			continue
		}
		if !triggered(a.ID, in) {
			continue
		}

		a.Unlocked = true
		ts := now.UTC()
		a.UnlockedAt = &ts
		newly = append(newly, a.ID)
	}

	return newly
}

func triggered(id string, in Input) bool {
	switch id {
	case IDFirstChallenge:
		return len(in.History) == 1
	case IDMathMaster:
		return correctCount(in.History) == mathMasterTarget
	case IDAppDetective:
		return in.AppCount >= 1
	case IDWeekWarrior:
		return weekWithinLimits(in.DailyStats)
	default:
		return false
	}
}

func correctCount(history []challenge.Challenge) int {
	count := 0
	for _, c := range history {
		if c.Correct {
			count++
		}
	}
	return count
}

// weekWithinLimits checks that the most recent seven daily stats all stayed
// within limits. Day bucketing happens at the ledger's day rollover, so the
// stats arrive in calendar order.
func weekWithinLimits(stats []monitor.DailyStat) bool {
	if len(stats) < weekWarriorDays {
		return false
	}
	for _, stat := range stats[len(stats)-weekWarriorDays:] {
		if !stat.WithinLimits {
			return false
		}
	}
	return true
}
