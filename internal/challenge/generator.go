package challenge

import (
	"context"
	"math/rand"
	"strings"

	"log/slog"
)

// Strategy resolves the auto difficulty setting to a concrete tier based on
// recent performance.
type Strategy func(recent []Challenge) Difficulty

// AccuracyStrategy adjusts the tier from the success rate over the last five
// attempts: above 80% steps up to hard, below 40% steps down to easy,
// otherwise medium. With no history it defaults to medium.
func AccuracyStrategy(recent []Challenge) Difficulty {
	window := recent
	if len(window) > 5 {
		window = window[len(window)-5:]
	}
	if len(window) == 0 {
		return DifficultyMedium
	}

	correct := 0
	for _, c := range window {
		if c.Correct {
			correct++
		}
	}
	// Integer comparison of correct/len against 0.8 and 0.4.
	if correct*10 > len(window)*8 {
		return DifficultyHard
	}
	if correct*10 < len(window)*4 {
		return DifficultyEasy
	}
	return DifficultyMedium
}

// Generator produces challenges, preferring the remote oracle and falling
// back to the local pool on any failure.
type Generator struct {
	oracle   Oracle
	strategy Strategy
	rng      *rand.Rand
	clock    Clock
	ids      IDGenerator
	logger   *slog.Logger
}

// NewGenerator constructs a Generator. oracle may be nil, in which case every
// challenge is generated locally.
func NewGenerator(oracle Oracle, strategy Strategy, rng *rand.Rand, clock Clock, ids IDGenerator, logger *slog.Logger) *Generator {
	if strategy == nil {
		strategy = AccuracyStrategy
	}
	return &Generator{
		oracle:   oracle,
		strategy: strategy,
		rng:      rng,
		clock:    clock,
		ids:      ids,
		logger:   logger,
	}
}

// Generate returns a new unanswered challenge at the requested difficulty.
// The auto difficulty is resolved through the strategy first. Oracle failures
// are logged and recovered via the local pool; Generate never fails.
func (g *Generator) Generate(ctx context.Context, difficulty Difficulty, recent []Challenge) Challenge {
	if difficulty == DifficultyAuto || difficulty == "" {
		difficulty = g.strategy(recent)
	}
	difficulty = ParseDifficulty(string(difficulty))

	if g.oracle != nil {
		remote, err := g.oracle.GenerateChallenge(ctx, difficulty, recent)
		if err == nil {
			if validErr := validatePayload(remote); validErr == nil {
				return remote
			} else if g.logger != nil {
				g.logger.Warn("oracle returned malformed challenge, using local pool", "error", validErr)
			}
		} else if g.logger != nil {
			g.logger.Warn("challenge oracle unavailable, using local pool", "error", err)
		}
	}

	return g.local(difficulty)
}

func (g *Generator) local(difficulty Difficulty) Challenge {
	pool := localPool[difficulty]
	selected := pool[g.rng.Intn(len(pool))]

	return Challenge{
		ID:         g.ids.NewID(),
		Question:   selected.question,
		Answer:     selected.answer,
		Difficulty: difficulty,
		TimeReward: rewardFor(difficulty),
		CreatedAt:  g.clock.Now().UTC(),
	}
}

// validatePayload rejects oracle responses that are not well-formed
// challenges so they fall through to the local pool.
func validatePayload(c Challenge) error {
	if strings.TrimSpace(c.ID) == "" {
		return errMalformed("missing id")
	}
	if strings.TrimSpace(c.Question) == "" {
		return errMalformed("missing question")
	}
	switch c.Difficulty {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
	default:
		return errMalformed("invalid difficulty")
	}
	if c.TimeReward <= 0 {
		return errMalformed("non-positive reward")
	}
	if c.Completed {
		return errMalformed("already completed")
	}
	return nil
}

type errMalformed string

func (e errMalformed) Error() string { return "malformed challenge payload: " + string(e) }
