package challenge

// problem is one entry of the local fallback pool.
type problem struct {
	question string
	answer   int
}

// Rewards are fixed per tier for locally generated challenges.
const (
	rewardEasy   = 5
	rewardMedium = 8
	rewardHard   = 12
)

// localPool holds the offline arithmetic problems per tier. Keep questions
// and answers in sync; the answers are asserted by tests.
var localPool = map[Difficulty][]problem{
	DifficultyEasy: {
		{"7 + 8 = ?", 15},
		{"15 - 6 = ?", 9},
		{"4 × 3 = ?", 12},
		{"18 ÷ 6 = ?", 3},
		{"9 + 7 = ?", 16},
		{"20 - 11 = ?", 9},
	},
	DifficultyMedium: {
		{"23 + 47 = ?", 70},
		{"84 - 29 = ?", 55},
		{"12 × 7 = ?", 84},
		{"144 ÷ 12 = ?", 12},
		{"38 + 56 = ?", 94},
		{"100 - 67 = ?", 33},
	},
	DifficultyHard: {
		{"156 + 289 = ?", 445},
		{"500 - 247 = ?", 253},
		{"23 × 18 = ?", 414},
		{"2880 ÷ 24 = ?", 120},
		{"347 + 678 = ?", 1025},
		{"1000 - 456 = ?", 544},
	},
}

// rewardFor returns the fixed local reward for a concrete tier.
func rewardFor(difficulty Difficulty) int {
	switch difficulty {
	case DifficultyEasy:
		return rewardEasy
	case DifficultyHard:
		return rewardHard
	default:
		return rewardMedium
	}
}
