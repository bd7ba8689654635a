package challenge

// streakWindow bounds how far back the streak scan looks.
const streakWindow = 10

// streakBonusPerStep is the extra minutes granted per consecutive correct
// answer preceding the current one.
const streakBonusPerStep = 2

// Rewards owns the single current-challenge slot and the append-only history
// of completed challenges. Like the ledger it relies on the engine's
// serialized mutation path rather than internal locking.
type Rewards struct {
	current *Challenge
	history []Challenge
}

// NewRewards constructs an empty reward tracker.
func NewRewards() *Rewards {
	return &Rewards{}
}

// SetCurrent installs a new outstanding challenge. A previously outstanding
// challenge is abandoned silently, not recorded as incorrect.
func (r *Rewards) SetCurrent(c Challenge) {
	copied := c
	r.current = &copied
}

// Current returns the outstanding challenge, if any.
func (r *Rewards) Current() (Challenge, bool) {
	if r.current == nil {
		return Challenge{}, false
	}
	return *r.current, true
}

// Submit evaluates an answer against the current challenge. The streak bonus
// uses the pre-submission streak; the completed challenge is appended to
// history and the current slot cleared regardless of correctness.
func (r *Rewards) Submit(answer int) (Result, error) {
	if r.current == nil {
		return Result{}, ErrNoActiveChallenge
	}

	completed := *r.current
	completed.Completed = true
	completed.Correct = answer == completed.Answer

	earned := 0
	if completed.Correct {
		streak := r.Streak()
		earned = completed.TimeReward
		if streak > 0 {
			earned += streak * streakBonusPerStep
		}
	}

	r.history = append(r.history, completed)
	r.current = nil

	return Result{Correct: completed.Correct, MinutesEarned: earned}, nil
}

// Streak counts consecutive correct answers scanning the most recent ten
// history entries backward, stopping at the first incorrect one.
func (r *Rewards) Streak() int {
	start := len(r.history) - streakWindow
	if start < 0 {
		start = 0
	}
	recent := r.history[start:]

	streak := 0
	for i := len(recent) - 1; i >= 0; i-- {
		if !recent[i].Correct {
			break
		}
		streak++
	}
	return streak
}

// History returns a copy of the completed challenges in submission order.
func (r *Rewards) History() []Challenge {
	out := make([]Challenge, len(r.history))
	copy(out, r.history)
	return out
}

// CorrectCount reports how many history entries were answered correctly.
func (r *Rewards) CorrectCount() int {
	count := 0
	for _, c := range r.history {
		if c.Correct {
			count++
		}
	}
	return count
}

// Restore replaces the history from a persisted snapshot. The current slot
// is intentionally not persisted; an outstanding challenge does not survive
// a restart.
func (r *Rewards) Restore(history []Challenge) {
	r.history = make([]Challenge, len(history))
	copy(r.history, history)
	r.current = nil
}
