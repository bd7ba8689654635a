package monitor

import (
	"fmt"
	"strings"
)

// Ledger owns the set of monitored apps and their usage against daily
// budgets. It is not safe for concurrent use on its own; every mutation is
// expected to arrive through the engine's serialized path.
type Ledger struct {
	apps  []App
	clock Clock
	ids   IDGenerator
}

// NewLedger constructs an empty ledger with the provided collaborators.
func NewLedger(clock Clock, ids IDGenerator) (*Ledger, error) {
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if ids == nil {
		return nil, fmt.Errorf("id generator is required")
	}
	return &Ledger{clock: clock, ids: ids}, nil
}

// Add starts monitoring a new app. limitOverride of 0 selects the category
// default. Returns ErrDuplicateApp when the package is already monitored.
func (l *Ledger) Add(descriptor Descriptor, limitOverride int) (App, error) {
	if err := descriptor.Validate(); err != nil {
		return App{}, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}
	if limitOverride < 0 {
		return App{}, fmt.Errorf("%w: dailyLimit must be positive", ErrInvalidInput)
	}

	pkg := strings.TrimSpace(descriptor.PackageName)
	for _, app := range l.apps {
		if app.PackageName == pkg {
			return App{}, ErrDuplicateApp
		}
	}

	limit := limitOverride
	if limit == 0 {
		limit = DefaultLimit(descriptor.Category)
	}

	now := l.clock.Now().UTC()
	app := App{
		ID:          l.ids.NewID(),
		Name:        strings.TrimSpace(descriptor.Name),
		PackageName: pkg,
		Category:    strings.ToLower(strings.TrimSpace(descriptor.Category)),
		DailyLimit:  limit,
		TimeUsed:    0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	recompute(&app)

	l.apps = append(l.apps, app)
	return app, nil
}

// Remove stops monitoring the app. Returns ErrNotFound when the id is
// unknown; callers treating repeated removal as success handle that above.
func (l *Ledger) Remove(id string) error {
	for i, app := range l.apps {
		if app.ID == id {
			l.apps = append(l.apps[:i], l.apps[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// RecordUsage sets today's accumulated usage to an absolute number of
// minutes, mirroring the external usage oracle, and recomputes the derived
// blocked state.
func (l *Ledger) RecordUsage(id string, minutes int) (App, error) {
	if minutes < 0 {
		return App{}, fmt.Errorf("%w: timeUsed must be non-negative", ErrInvalidInput)
	}
	app := l.find(id)
	if app == nil {
		return App{}, ErrNotFound
	}

	app.TimeUsed = minutes
	app.UpdatedAt = l.clock.Now().UTC()
	recompute(app)
	return *app, nil
}

// GrantMinutes pays down usage earned through a correct challenge answer,
// flooring today's usage at zero.
func (l *Ledger) GrantMinutes(id string, minutes int) (App, error) {
	if minutes < 0 {
		return App{}, fmt.Errorf("%w: minutes must be non-negative", ErrInvalidInput)
	}
	app := l.find(id)
	if app == nil {
		return App{}, ErrNotFound
	}

	app.TimeUsed -= minutes
	if app.TimeUsed < 0 {
		app.TimeUsed = 0
	}
	app.UpdatedAt = l.clock.Now().UTC()
	recompute(app)
	return *app, nil
}

// ResetDay zeroes today's usage for every app at a day rollover and returns
// whether every app finished the previous day within its limit.
func (l *Ledger) ResetDay() bool {
	within := true
	now := l.clock.Now().UTC()
	for i := range l.apps {
		if l.apps[i].TimeUsed >= l.apps[i].DailyLimit {
			within = false
		}
		l.apps[i].TimeUsed = 0
		l.apps[i].UpdatedAt = now
		recompute(&l.apps[i])
	}
	return within
}

// Get returns the app with the given id.
func (l *Ledger) Get(id string) (App, error) {
	if app := l.find(id); app != nil {
		return *app, nil
	}
	return App{}, ErrNotFound
}

// ByPackage returns the app monitoring the given package name.
func (l *Ledger) ByPackage(packageName string) (App, error) {
	for _, app := range l.apps {
		if app.PackageName == packageName {
			return app, nil
		}
	}
	return App{}, ErrNotFound
}

// Apps returns a copy of the monitored apps in insertion order.
func (l *Ledger) Apps() []App {
	out := make([]App, len(l.apps))
	copy(out, l.apps)
	return out
}

// Len reports the number of monitored apps.
func (l *Ledger) Len() int {
	return len(l.apps)
}

// Restore replaces the ledger contents from a persisted snapshot, re-deriving
// the computed fields in case the stored copy predates a limit change.
func (l *Ledger) Restore(apps []App) {
	l.apps = make([]App, len(apps))
	copy(l.apps, apps)
	for i := range l.apps {
		recompute(&l.apps[i])
	}
}

func (l *Ledger) find(id string) *App {
	for i := range l.apps {
		if l.apps[i].ID == id {
			return &l.apps[i]
		}
	}
	return nil
}

func recompute(app *App) {
	app.IsBlocked = app.TimeUsed >= app.DailyLimit
	if app.DailyLimit <= 0 {
		app.UsagePercent = 100
		app.IsBlocked = true
		return
	}
	percent := app.TimeUsed * 100 / app.DailyLimit
	if percent > 100 {
		percent = 100
	}
	app.UsagePercent = percent
}
