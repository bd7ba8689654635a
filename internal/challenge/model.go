package challenge

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Difficulty identifies a challenge tier.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"

	// DifficultyAuto is a settings-level value resolved to a concrete tier
	// before generation; it never appears on a generated challenge.
	DifficultyAuto Difficulty = "auto"
)

// ParseDifficulty normalizes a difficulty string, defaulting to medium for
// anything unrecognized.
func ParseDifficulty(raw string) Difficulty {
	switch Difficulty(strings.ToLower(strings.TrimSpace(raw))) {
	case DifficultyEasy:
		return DifficultyEasy
	case DifficultyMedium:
		return DifficultyMedium
	case DifficultyHard:
		return DifficultyHard
	case DifficultyAuto:
		return DifficultyAuto
	default:
		return DifficultyMedium
	}
}

// Challenge is a single arithmetic problem. Once Completed is set the record
// is immutable and lives in the append-only history.
type Challenge struct {
	ID         string     `json:"id" firestore:"id"`
	Question   string     `json:"question" firestore:"question"`
	Answer     int        `json:"answer" firestore:"answer"`
	Difficulty Difficulty `json:"difficulty" firestore:"difficulty"`
	TimeReward int        `json:"timeReward" firestore:"time_reward"`
	Completed  bool       `json:"completed" firestore:"completed"`
	Correct    bool       `json:"correct" firestore:"correct"`
	CreatedAt  time.Time  `json:"createdAt" firestore:"created_at"`
}

// Result reports the outcome of an answer submission.
type Result struct {
	Correct       bool `json:"correct"`
	MinutesEarned int  `json:"minutesEarned"`
}

// ErrNoActiveChallenge indicates a submission arrived with nothing pending.
var ErrNoActiveChallenge = errors.New("no active challenge")

// ErrOracleUnavailable classifies remote generation failures that are
// recovered via the local fallback pool, never surfaced to the user.
var ErrOracleUnavailable = errors.New("challenge oracle unavailable")

// Oracle generates challenges remotely. Implementations return an error for
// any network failure, non-2xx response, or malformed payload; the generator
// recovers locally.
type Oracle interface {
	GenerateChallenge(ctx context.Context, difficulty Difficulty, recent []Challenge) (Challenge, error)
}

// Clock delivers the current time; extracted for deterministic testing.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces unique identifiers for locally generated challenges.
type IDGenerator interface {
	NewID() string
}
