package state

import (
	"context"
	"errors"
	"time"

	"github.com/screenwise/screentime-service/internal/achievement"
	"github.com/screenwise/screentime-service/internal/challenge"
	"github.com/screenwise/screentime-service/internal/monitor"
	"github.com/screenwise/screentime-service/internal/settings"
)

// UsageSession logs one stretch of app usage for analytics and backend sync.
type UsageSession struct {
	ID          string    `json:"id" firestore:"id"`
	AppID       string    `json:"appId" firestore:"app_id"`
	PackageName string    `json:"packageName" firestore:"package_name"`
	AppName     string    `json:"appName" firestore:"app_name"`
	Duration    int       `json:"duration" firestore:"duration"`
	Timestamp   time.Time `json:"timestamp" firestore:"timestamp"`
	Date        string    `json:"date" firestore:"date"`
}

// Snapshot is the full persisted state: a single blob under a fixed key,
// rewritten in its entirety after every mutating operation.
type Snapshot struct {
	MonitoredApps       []monitor.App             `json:"monitoredApps" firestore:"monitored_apps"`
	CompletedChallenges []challenge.Challenge     `json:"completedChallenges" firestore:"completed_challenges"`
	UsageSessions       []UsageSession            `json:"usageSessions" firestore:"usage_sessions"`
	Achievements        []achievement.Achievement `json:"achievements" firestore:"achievements"`
	DailyStats          []monitor.DailyStat       `json:"dailyStats" firestore:"daily_stats"`
	Settings            settings.Settings         `json:"settings" firestore:"settings"`
}

// ErrNotFound indicates no snapshot has been written yet.
var ErrNotFound = errors.New("snapshot not found")

// Store is the durable gateway for the engine's snapshot. Load is called once
// at startup; Save after every mutation. A Save failure is logged by the
// caller and retried wholesale on the next mutation.
type Store interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snapshot Snapshot) error
}
