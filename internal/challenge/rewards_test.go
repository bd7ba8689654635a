package challenge

import (
	"errors"
	"testing"
)

func pending(answer, reward int) Challenge {
	return Challenge{
		ID:         "current",
		Question:   "? = ?",
		Answer:     answer,
		Difficulty: DifficultyMedium,
		TimeReward: reward,
	}
}

func seedHistory(r *Rewards, outcomes ...bool) {
	for _, correct := range outcomes {
		r.SetCurrent(pending(1, rewardMedium))
		answer := 1
		if !correct {
			answer = 2
		}
		if _, err := r.Submit(answer); err != nil {
			panic(err)
		}
	}
}

func TestRewardsSubmit_NoActiveChallenge(t *testing.T) {
	r := NewRewards()
	if _, err := r.Submit(42); !errors.Is(err, ErrNoActiveChallenge) {
		t.Fatalf("expected ErrNoActiveChallenge, got %v", err)
	}
}

func TestRewardsSubmit_CorrectEarnsBaseReward(t *testing.T) {
	r := NewRewards()
	r.SetCurrent(pending(84, rewardMedium))

	result, err := r.Submit(84)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if !result.Correct || result.MinutesEarned != 8 {
		t.Fatalf("expected 8 minutes with no streak, got %+v", result)
	}
	if _, ok := r.Current(); ok {
		t.Fatalf("submission must clear the current slot")
	}
	if len(r.History()) != 1 {
		t.Fatalf("completed challenge must land in history")
	}
}

func TestRewardsSubmit_WrongEarnsNothing(t *testing.T) {
	r := NewRewards()
	r.SetCurrent(pending(84, rewardMedium))

	result, err := r.Submit(85)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if result.Correct || result.MinutesEarned != 0 {
		t.Fatalf("expected zero minutes for a wrong answer, got %+v", result)
	}
	if len(r.History()) != 1 {
		t.Fatalf("wrong answers are recorded too")
	}
}

func TestRewardsSubmit_StreakBonusUsesPreSubmissionStreak(t *testing.T) {
	r := NewRewards()
	seedHistory(r, true, true, true)

	r.SetCurrent(pending(84, rewardMedium))
	result, err := r.Submit(84)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	// Three correct answers already on record: 8 + 3*2.
	if result.MinutesEarned != 14 {
		t.Fatalf("expected 14 minutes, got %d", result.MinutesEarned)
	}
}

func TestRewardsStreak_StopsAtFirstIncorrect(t *testing.T) {
	r := NewRewards()
	seedHistory(r, true, true, false, true, true, true)

	if got := r.Streak(); got != 3 {
		t.Fatalf("expected streak of 3, got %d", got)
	}
}

func TestRewardsStreak_WindowCapsAtTen(t *testing.T) {
	r := NewRewards()
	outcomes := make([]bool, 15)
	for i := range outcomes {
		outcomes[i] = true
	}
	seedHistory(r, outcomes...)

	if got := r.Streak(); got != 10 {
		t.Fatalf("expected streak capped at 10, got %d", got)
	}
}

func TestRewardsSetCurrent_ReplacesSilently(t *testing.T) {
	r := NewRewards()
	r.SetCurrent(pending(1, rewardEasy))
	replacement := pending(2, rewardHard)
	replacement.ID = "replacement"
	r.SetCurrent(replacement)

	current, ok := r.Current()
	if !ok || current.ID != "replacement" {
		t.Fatalf("expected the replacement challenge, got %+v", current)
	}
	if len(r.History()) != 0 {
		t.Fatalf("an abandoned challenge must not be recorded")
	}
}

func TestRewardsCorrectCount(t *testing.T) {
	r := NewRewards()
	seedHistory(r, true, false, true, true, false)

	if got := r.CorrectCount(); got != 3 {
		t.Fatalf("expected 3 correct, got %d", got)
	}
}

func TestRewardsRestore_DropsCurrentSlot(t *testing.T) {
	r := NewRewards()
	r.SetCurrent(pending(1, rewardEasy))

	r.Restore([]Challenge{
		{ID: "h1", Completed: true, Correct: true},
		{ID: "h2", Completed: true, Correct: false},
	})

	if _, ok := r.Current(); ok {
		t.Fatalf("restore must not resurrect an outstanding challenge")
	}
	if len(r.History()) != 2 {
		t.Fatalf("expected restored history of 2, got %d", len(r.History()))
	}
}
