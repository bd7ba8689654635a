package monitor

import (
	"context"
	"errors"
	"strings"
	"time"
)

// App is a monitored application together with today's usage against its
// daily limit. IsBlocked and UsagePercent are derived from TimeUsed and
// DailyLimit; the ledger recomputes them on every mutation and they must
// never be set independently.
type App struct {
	ID           string    `json:"id" firestore:"id"`
	Name         string    `json:"appName" firestore:"app_name"`
	PackageName  string    `json:"packageName" firestore:"package_name"`
	Category     string    `json:"category" firestore:"category"`
	DailyLimit   int       `json:"dailyLimit" firestore:"daily_limit"`
	TimeUsed     int       `json:"timeUsed" firestore:"time_used"`
	IsBlocked    bool      `json:"isBlocked" firestore:"is_blocked"`
	UsagePercent int       `json:"percentage" firestore:"percentage"`
	CreatedAt    time.Time `json:"createdAt" firestore:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" firestore:"updated_at"`
}

// Descriptor captures the data required to start monitoring an app.
type Descriptor struct {
	Name        string
	PackageName string
	Category    string
}

// Validate ensures the descriptor meets the domain constraints.
func (d Descriptor) Validate() error {
	var problems []string

	if strings.TrimSpace(d.Name) == "" {
		problems = append(problems, "appName is required")
	}
	if strings.TrimSpace(d.PackageName) == "" {
		problems = append(problems, "packageName is required")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// DailyStat records whether every monitored app stayed within its limit on a
// given calendar day. Kept for streak-style achievement evaluation.
type DailyStat struct {
	Date         string `json:"date" firestore:"date"`
	WithinLimits bool   `json:"withinLimits" firestore:"within_limits"`
}

// defaultLimits maps an app category to its default daily budget in minutes.
var defaultLimits = map[string]int{
	"social":        30,
	"entertainment": 60,
	"games":         45,
	"communication": 120,
	"music":         180,
	"news":          45,
	"productivity":  240,
	"shopping":      30,
	"finance":       60,
}

const fallbackDailyLimit = 60

// DefaultLimit returns the default daily limit in minutes for a category.
func DefaultLimit(category string) int {
	if limit, ok := defaultLimits[strings.ToLower(strings.TrimSpace(category))]; ok {
		return limit
	}
	return fallbackDailyLimit
}

// ErrNotFound indicates the requested app is not monitored.
var ErrNotFound = errors.New("monitored app not found")

// ErrDuplicateApp indicates the package is already monitored.
var ErrDuplicateApp = errors.New("app is already being monitored")

// ErrInvalidInput indicates the provided data failed validation.
var ErrInvalidInput = errors.New("invalid input")

// Clock delivers the current time; extracted for deterministic testing.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces unique identifiers for new records.
type IDGenerator interface {
	NewID() string
}

// UsageSource samples today's accumulated usage in minutes for a package.
// Implementations may consult a remote usage API or a local simulation; a
// sampling error means the previous value should be kept as-is.
type UsageSource interface {
	Sample(ctx context.Context, packageName string) (int, error)
}
