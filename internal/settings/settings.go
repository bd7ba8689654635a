package settings

import "github.com/screenwise/screentime-service/internal/challenge"

// Settings is the flat configuration record consulted by the challenge
// generator and the monitoring ticker.
type Settings struct {
	Difficulty           challenge.Difficulty `json:"difficultySetting" firestore:"difficulty_setting"`
	NotificationsEnabled bool                 `json:"notificationsEnabled" firestore:"notifications_enabled"`
	WeekendMode          bool                 `json:"weekendMode" firestore:"weekend_mode"`
	DailyGoal            int                  `json:"dailyGoal" firestore:"daily_goal"`
	MonitoringEnabled    bool                 `json:"monitoringEnabled" firestore:"monitoring_enabled"`
}

// Defaults returns the initial settings for a fresh install.
func Defaults() Settings {
	return Settings{
		Difficulty:           challenge.DifficultyAuto,
		NotificationsEnabled: true,
		WeekendMode:          false,
		DailyGoal:            60,
		MonitoringEnabled:    true,
	}
}

// Patch is a partial settings update; nil fields are left unchanged.
type Patch struct {
	Difficulty           *string `json:"difficultySetting"`
	NotificationsEnabled *bool   `json:"notificationsEnabled"`
	WeekendMode          *bool   `json:"weekendMode"`
	DailyGoal            *int    `json:"dailyGoal"`
	MonitoringEnabled    *bool   `json:"monitoringEnabled"`
}

// Merge applies the patch and returns the merged record.
func Merge(current Settings, patch Patch) Settings {
	if patch.Difficulty != nil {
		current.Difficulty = challenge.ParseDifficulty(*patch.Difficulty)
	}
	if patch.NotificationsEnabled != nil {
		current.NotificationsEnabled = *patch.NotificationsEnabled
	}
	if patch.WeekendMode != nil {
		current.WeekendMode = *patch.WeekendMode
	}
	if patch.DailyGoal != nil && *patch.DailyGoal > 0 {
		current.DailyGoal = *patch.DailyGoal
	}
	if patch.MonitoringEnabled != nil {
		current.MonitoringEnabled = *patch.MonitoringEnabled
	}
	return current
}
