package achievement

import "time"

// Achievement is a badge with one-way unlock state. The set of achievements
// is static; only Unlocked and UnlockedAt ever change, exactly once.
type Achievement struct {
	ID          string     `json:"id" firestore:"id"`
	Title       string     `json:"title" firestore:"title"`
	Description string     `json:"description" firestore:"description"`
	Icon        string     `json:"icon" firestore:"icon"`
	Unlocked    bool       `json:"unlocked" firestore:"unlocked"`
	UnlockedAt  *time.Time `json:"unlockedAt,omitempty" firestore:"unlocked_at"`
}

// Keep the IDs stable because clients persist them.
const (
	IDFirstChallenge = "first_challenge"
	IDWeekWarrior    = "week_warrior"
	IDMathMaster     = "math_master"
	IDAppDetective   = "app_detective"
)

// mathMasterTarget is the exact count of correct answers that unlocks Math Master.
const mathMasterTarget = 50

// weekWarriorDays is how many consecutive within-limit days unlock Week Warrior.
const weekWarriorDays = 7

// Defaults returns the canonical achievement set, all locked.
func Defaults() []Achievement {
	return []Achievement{
		{
			ID:          IDFirstChallenge,
			Title:       "First Challenge",
			Description: "Complete your first math challenge",
			Icon:        "trophy",
		},
		{
			ID:          IDWeekWarrior,
			Title:       "Week Warrior",
			Description: "Stay within limits for 7 consecutive days",
			Icon:        "calendar",
		},
		{
			ID:          IDMathMaster,
			Title:       "Math Master",
			Description: "Answer 50 challenges correctly",
			Icon:        "calculator",
		},
		{
			ID:          IDAppDetective,
			Title:       "App Detective",
			Description: "Add your first detected app to monitoring",
			Icon:        "search",
		},
	}
}
