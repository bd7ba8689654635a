package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/screenwise/screentime-service/internal/achievement"
	"github.com/screenwise/screentime-service/internal/backend"
	"github.com/screenwise/screentime-service/internal/challenge"
	"github.com/screenwise/screentime-service/internal/monitor"
	"github.com/screenwise/screentime-service/internal/settings"
	"github.com/screenwise/screentime-service/internal/state"
)

const (
	dateLayout = "2006-01-02"

	// dailyStatRetention bounds the day-bucketed history kept in the snapshot.
	dailyStatRetention = 30

	// remoteCallTimeout bounds every fire-and-forget backend call.
	remoteCallTimeout = 10 * time.Second

	// refreshConcurrency bounds the per-app usage sampling fan-out.
	refreshConcurrency = 4
)

// Options wires the engine's collaborators. Store, Source, Generator, Clock
// and IDs are required; Client is nil when no backend is configured.
type Options struct {
	Store     state.Store
	Client    *backend.Client
	Source    monitor.UsageSource
	Generator *challenge.Generator
	Clock     monitor.Clock
	IDs       monitor.IDGenerator
	Logger    *slog.Logger

	RefreshInterval time.Duration
	SyncInterval    time.Duration
}

// Engine is the serialized state container for the screen-time economy: the
// usage ledger, challenge history, achievements, sessions and settings. Every
// mutation passes through one mutex so derived fields stay consistent with
// their sources; the snapshot is rewritten after each mutating operation.
type Engine struct {
	mu sync.Mutex

	ledger       *monitor.Ledger
	rewards      *challenge.Rewards
	generator    *challenge.Generator
	achievements []achievement.Achievement
	settings     settings.Settings
	sessions     []state.UsageSession
	dailyStats   []monitor.DailyStat

	// pendingAppID is the app whose blocking surfaced the current challenge;
	// a correct answer pays its usage down.
	pendingAppID string

	// currentDay drives the daily budget reset and day-bucketed stats.
	currentDay string

	// sessionsSynced marks how many sessions the backend already has.
	sessionsSynced int

	store  state.Store
	client *backend.Client
	source monitor.UsageSource
	clock  monitor.Clock
	ids    monitor.IDGenerator
	logger *slog.Logger

	refreshInterval time.Duration
	syncInterval    time.Duration

	closed atomic.Bool
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs an engine with empty state; call Load before Start.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	if opts.Source == nil {
		return nil, errors.New("usage source is required")
	}
	if opts.Generator == nil {
		return nil, errors.New("challenge generator is required")
	}
	if opts.Clock == nil {
		return nil, errors.New("clock is required")
	}
	if opts.IDs == nil {
		return nil, errors.New("id generator is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = 45 * time.Second
	}
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = time.Minute
	}

	ledger, err := monitor.NewLedger(opts.Clock, opts.IDs)
	if err != nil {
		return nil, err
	}

	return &Engine{
		ledger:          ledger,
		rewards:         challenge.NewRewards(),
		generator:       opts.Generator,
		achievements:    achievement.Defaults(),
		settings:        settings.Defaults(),
		store:           opts.Store,
		client:          opts.Client,
		source:          opts.Source,
		clock:           opts.Clock,
		ids:             opts.IDs,
		logger:          opts.Logger,
		refreshInterval: opts.RefreshInterval,
		syncInterval:    opts.SyncInterval,
	}, nil
}

// Load restores the persisted snapshot. A missing snapshot is a fresh
// install, not an error.
func (e *Engine) Load(ctx context.Context) error {
	snapshot, err := e.store.Load(ctx)
	if errors.Is(err, state.ErrNotFound) {
		e.mu.Lock()
		e.currentDay = e.today()
		e.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.ledger.Restore(snapshot.MonitoredApps)
	e.rewards.Restore(snapshot.CompletedChallenges)
	e.achievements = mergeAchievements(snapshot.Achievements)
	e.sessions = append([]state.UsageSession(nil), snapshot.UsageSessions...)
	e.sessionsSynced = len(e.sessions)
	e.dailyStats = append([]monitor.DailyStat(nil), snapshot.DailyStats...)
	if snapshot.Settings != (settings.Settings{}) {
		e.settings = snapshot.Settings
	}
	e.currentDay = e.today()
	return nil
}

// Start launches the usage-refresh and backend-sync tickers. They stop when
// the context is cancelled or Close is called.
func (e *Engine) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.RefreshUsage(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.syncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.syncBackend(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Close stops the tickers and marks the engine inactive. In-flight network
// calls are not aborted, but their completion paths check the closed flag
// before mutating state.
func (e *Engine) Close() {
	e.closed.Store(true)
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

// ===== Monitored apps =====

// AddApp starts monitoring a detected app. limitOverride of 0 selects the
// category default. The new app is mirrored to the backend best-effort.
func (e *Engine) AddApp(ctx context.Context, descriptor monitor.Descriptor, limitOverride int) (monitor.App, error) {
	e.mu.Lock()
	app, err := e.ledger.Add(descriptor, limitOverride)
	if err != nil {
		e.mu.Unlock()
		return monitor.App{}, err
	}
	e.evaluateAchievementsLocked()
	e.persistLocked(ctx)
	e.mu.Unlock()

	e.fireAndForget("register monitored app", func(ctx context.Context) error {
		return e.client.RegisterMonitoredApp(ctx, app)
	})
	return app, nil
}

// RemoveApp stops monitoring. Removal is idempotent at this boundary: a
// second call for the same id is a no-op reported as success.
func (e *Engine) RemoveApp(ctx context.Context, id string) error {
	e.mu.Lock()
	err := e.ledger.Remove(id)
	if errors.Is(err, monitor.ErrNotFound) {
		e.mu.Unlock()
		return nil
	}
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if e.pendingAppID == id {
		e.pendingAppID = ""
	}
	e.persistLocked(ctx)
	e.mu.Unlock()

	e.fireAndForget("unregister monitored app", func(ctx context.Context) error {
		return e.client.UnregisterMonitoredApp(ctx, id)
	})
	return nil
}

// RecordUsage sets an app's usage for today to an absolute number of minutes.
func (e *Engine) RecordUsage(ctx context.Context, id string, minutes int) (monitor.App, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	app, err := e.ledger.RecordUsage(id, minutes)
	if err != nil {
		return monitor.App{}, err
	}
	e.persistLocked(ctx)
	return app, nil
}

// Apps returns the monitored apps in insertion order.
func (e *Engine) Apps() []monitor.App {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Apps()
}

// App returns a single monitored app.
func (e *Engine) App(id string) (monitor.App, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Get(id)
}

// ===== Usage sessions =====

// SessionInput captures one stretch of usage reported by the device.
type SessionInput struct {
	PackageName string
	AppName     string
	Duration    int
}

// LogSession records a usage session and, when the package is monitored,
// adds its duration to the app's usage for today.
func (e *Engine) LogSession(ctx context.Context, in SessionInput) (state.UsageSession, error) {
	if strings.TrimSpace(in.PackageName) == "" || in.Duration <= 0 {
		return state.UsageSession{}, fmt.Errorf("%w: packageName and positive duration are required", monitor.ErrInvalidInput)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now().UTC()
	session := state.UsageSession{
		ID:          e.ids.NewID(),
		PackageName: strings.TrimSpace(in.PackageName),
		AppName:     strings.TrimSpace(in.AppName),
		Duration:    in.Duration,
		Timestamp:   now,
		Date:        now.Format(dateLayout),
	}

	if app, err := e.ledger.ByPackage(session.PackageName); err == nil {
		session.AppID = app.ID
		if _, err := e.ledger.RecordUsage(app.ID, app.TimeUsed+in.Duration); err != nil {
			e.logger.Warn("failed to roll session into usage", "appId", app.ID, "error", err)
		}
	}

	e.sessions = append(e.sessions, session)
	e.persistLocked(ctx)
	return session, nil
}

// Sessions returns the sessions logged within the last N days.
func (e *Engine) Sessions(days int) []state.UsageSession {
	e.mu.Lock()
	defer e.mu.Unlock()

	if days <= 0 {
		days = 30
	}
	cutoff := e.clock.Now().UTC().AddDate(0, 0, -days)

	var out []state.UsageSession
	for _, s := range e.sessions {
		if s.Timestamp.After(cutoff) {
			out = append(out, s)
		}
	}
	return out
}

// ===== Challenges =====

// GenerateChallenge produces a new current challenge, replacing any
// outstanding one. difficulty of "" defers to the settings record; appID,
// when non-empty, names the blocked app the eventual reward pays down.
func (e *Engine) GenerateChallenge(ctx context.Context, difficulty string, appID string) (challenge.Challenge, error) {
	e.mu.Lock()
	if appID != "" {
		if _, err := e.ledger.Get(appID); err != nil {
			e.mu.Unlock()
			return challenge.Challenge{}, err
		}
	}
	tier := e.settings.Difficulty
	if strings.TrimSpace(difficulty) != "" {
		tier = challenge.ParseDifficulty(difficulty)
	}
	recent := recentHistory(e.rewards.History(), 10)
	e.mu.Unlock()

	// The oracle call happens outside the lock; only the final slot swap is
	// serialized.
	generated := e.generator.Generate(ctx, tier, recent)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed.Load() {
		return challenge.Challenge{}, errors.New("engine closed")
	}
	e.rewards.SetCurrent(generated)
	e.pendingAppID = appID
	return generated, nil
}

// CurrentChallenge returns the outstanding challenge, if any.
func (e *Engine) CurrentChallenge() (challenge.Challenge, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rewards.Current()
}

// SubmitAnswer evaluates the answer for the current challenge, applies the
// earned minutes to the app that triggered it, and re-evaluates achievements.
func (e *Engine) SubmitAnswer(ctx context.Context, answer int) (challenge.Result, error) {
	e.mu.Lock()

	current, ok := e.rewards.Current()
	if !ok {
		e.mu.Unlock()
		return challenge.Result{}, challenge.ErrNoActiveChallenge
	}

	result, err := e.rewards.Submit(answer)
	if err != nil {
		e.mu.Unlock()
		return challenge.Result{}, err
	}

	if result.Correct && e.pendingAppID != "" {
		if _, err := e.ledger.GrantMinutes(e.pendingAppID, result.MinutesEarned); err != nil && !errors.Is(err, monitor.ErrNotFound) {
			e.logger.Warn("failed to grant earned minutes", "appId", e.pendingAppID, "error", err)
		}
	}
	e.pendingAppID = ""

	e.evaluateAchievementsLocked()
	e.persistLocked(ctx)
	e.mu.Unlock()

	e.fireAndForget("mirror challenge submission", func(ctx context.Context) error {
		_, err := e.client.SubmitChallenge(ctx, current.ID, answer)
		return err
	})
	return result, nil
}

// Streak reports the current consecutive-correct streak.
func (e *Engine) Streak() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rewards.Streak()
}

// History returns the completed challenges in submission order.
func (e *Engine) History() []challenge.Challenge {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rewards.History()
}

// ===== Achievements =====

// Achievements returns the full achievement set with unlock state.
func (e *Engine) Achievements() []achievement.Achievement {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]achievement.Achievement, len(e.achievements))
	copy(out, e.achievements)
	return out
}

// ===== Settings =====

// Settings returns the current configuration record.
func (e *Engine) Settings() settings.Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// UpdateSettings merges a partial update into the settings record.
func (e *Engine) UpdateSettings(ctx context.Context, patch settings.Patch) settings.Settings {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.settings = settings.Merge(e.settings, patch)
	e.persistLocked(ctx)
	return e.settings
}

// ===== Analytics =====

// Analytics summarizes usage and challenge activity over the last 30 days.
type Analytics struct {
	TotalTimeUsed       int     `json:"totalTimeUsed"`
	AverageDaily        float64 `json:"averageDaily"`
	MostUsedApp         string  `json:"mostUsedApp"`
	StreakDays          int     `json:"streakDays"`
	ChallengesCompleted int     `json:"challengesCompleted"`
	TimeEarned          int     `json:"timeEarned"`
}

// Analytics computes the summary for the last 30 days of sessions plus the
// full challenge history.
func (e *Engine) Analytics() Analytics {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.clock.Now().UTC().AddDate(0, 0, -30)

	total := 0
	perApp := make(map[string]int)
	for _, s := range e.sessions {
		if !s.Timestamp.After(cutoff) {
			continue
		}
		total += s.Duration
		name := s.AppName
		if name == "" {
			name = s.PackageName
		}
		perApp[name] += s.Duration
	}

	mostUsed := "None"
	best := 0
	for name, minutes := range perApp {
		if minutes > best || (minutes == best && mostUsed == "None") {
			mostUsed = name
			best = minutes
		}
	}

	history := e.rewards.History()
	earned := 0
	for _, c := range history {
		if c.Correct {
			earned += c.TimeReward
		}
	}

	streakDays := 0
	for i := len(e.dailyStats) - 1; i >= 0; i-- {
		if !e.dailyStats[i].WithinLimits {
			break
		}
		streakDays++
	}

	return Analytics{
		TotalTimeUsed:       total,
		AverageDaily:        float64(total) / 30,
		MostUsedApp:         mostUsed,
		StreakDays:          streakDays,
		ChallengesCompleted: len(history),
		TimeEarned:          earned,
	}
}

// ===== Refresh / sync =====

// RefreshUsage samples the usage source for every monitored app and records
// the results. Sampling fans out per app outside the lock; results apply
// under the lock with stale-on-error semantics. Skipped entirely while
// monitoring is disabled in settings.
func (e *Engine) RefreshUsage(ctx context.Context) {
	e.mu.Lock()
	e.rolloverLocked(ctx)
	if !e.settings.MonitoringEnabled {
		e.mu.Unlock()
		return
	}
	apps := e.ledger.Apps()
	e.mu.Unlock()

	if len(apps) == 0 {
		return
	}

	type sample struct {
		appID   string
		minutes int
	}
	results := make([]*sample, len(apps))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(refreshConcurrency)
	for i, app := range apps {
		g.Go(func() error {
			minutes, err := e.source.Sample(gctx, app.PackageName)
			if err != nil {
				e.logger.Warn("usage sample failed, keeping stale value",
					"packageName", app.PackageName, "error", err)
				return nil
			}
			results[i] = &sample{appID: app.ID, minutes: minutes}
			return nil
		})
	}
	_ = g.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed.Load() {
		return
	}

	mutated := false
	for _, res := range results {
		if res == nil || res.minutes < 0 {
			continue
		}
		if _, err := e.ledger.RecordUsage(res.appID, res.minutes); err == nil {
			mutated = true
		}
	}
	if mutated {
		e.persistLocked(ctx)
	}
}

// syncBackend pushes unsynced usage sessions to the backend, best effort.
// Failures leave the cursor in place so the next tick retries.
func (e *Engine) syncBackend(ctx context.Context) {
	if e.client == nil {
		return
	}

	e.mu.Lock()
	pending := make([]state.UsageSession, len(e.sessions)-e.sessionsSynced)
	copy(pending, e.sessions[e.sessionsSynced:])
	e.mu.Unlock()

	pushed := 0
	for _, session := range pending {
		callCtx, cancel := context.WithTimeout(ctx, remoteCallTimeout)
		err := e.client.LogSession(callCtx, session)
		cancel()
		if err != nil {
			e.logger.Warn("session sync failed, will retry next tick", "sessionId", session.ID, "error", err)
			break
		}
		pushed++
	}

	if pushed == 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed.Load() {
		return
	}
	e.sessionsSynced += pushed
}

// ===== Internals =====

// rolloverLocked resets daily usage at a calendar-day boundary and buckets
// the finished day for the Week Warrior rule.
func (e *Engine) rolloverLocked(ctx context.Context) {
	day := e.today()
	if e.currentDay == "" {
		e.currentDay = day
		return
	}
	if day == e.currentDay {
		return
	}

	within := e.ledger.ResetDay()
	e.dailyStats = append(e.dailyStats, monitor.DailyStat{Date: e.currentDay, WithinLimits: within})
	if len(e.dailyStats) > dailyStatRetention {
		e.dailyStats = e.dailyStats[len(e.dailyStats)-dailyStatRetention:]
	}
	e.currentDay = day

	if resettable, ok := e.source.(interface{ ResetDay() }); ok {
		resettable.ResetDay()
	}

	e.evaluateAchievementsLocked()
	e.persistLocked(ctx)
}

func (e *Engine) evaluateAchievementsLocked() {
	newly := achievement.Evaluate(e.clock.Now(), achievement.Input{
		History:    e.rewards.History(),
		AppCount:   e.ledger.Len(),
		DailyStats: e.dailyStats,
	}, e.achievements)

	for _, id := range newly {
		e.logger.Info("achievement unlocked", "achievementId", id)
	}
}

// persistLocked rewrites the full snapshot. A write failure is logged and
// the in-memory state kept; the next mutation retries the whole snapshot.
func (e *Engine) persistLocked(ctx context.Context) {
	if err := e.store.Save(ctx, e.snapshotLocked()); err != nil {
		e.logger.Error("snapshot write failed, keeping state in memory", "error", err)
	}
}

func (e *Engine) snapshotLocked() state.Snapshot {
	sessions := make([]state.UsageSession, len(e.sessions))
	copy(sessions, e.sessions)
	achievements := make([]achievement.Achievement, len(e.achievements))
	copy(achievements, e.achievements)
	stats := make([]monitor.DailyStat, len(e.dailyStats))
	copy(stats, e.dailyStats)

	return state.Snapshot{
		MonitoredApps:       e.ledger.Apps(),
		CompletedChallenges: e.rewards.History(),
		UsageSessions:       sessions,
		Achievements:        achievements,
		DailyStats:          stats,
		Settings:            e.settings,
	}
}

// fireAndForget runs a best-effort backend call off the mutation path.
// Failures are logged only; the completion path checks the closed flag so a
// torn-down engine never mutates after the fact.
func (e *Engine) fireAndForget(name string, call func(ctx context.Context) error) {
	if e.client == nil {
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if e.closed.Load() {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), remoteCallTimeout)
		defer cancel()
		if err := call(ctx); err != nil {
			e.logger.Warn("backend call failed", "call", name, "error", err)
		}
	}()
}

func (e *Engine) today() string {
	return e.clock.Now().UTC().Format(dateLayout)
}

func recentHistory(history []challenge.Challenge, n int) []challenge.Challenge {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// mergeAchievements overlays persisted unlock state onto the canonical
// definitions so new achievements appear after an upgrade.
func mergeAchievements(stored []achievement.Achievement) []achievement.Achievement {
	merged := achievement.Defaults()
	byID := make(map[string]achievement.Achievement, len(stored))
	for _, a := range stored {
		byID[a.ID] = a
	}
	for i := range merged {
		if prev, ok := byID[merged[i].ID]; ok && prev.Unlocked {
			merged[i].Unlocked = true
			merged[i].UnlockedAt = prev.UnlockedAt
		}
	}
	return merged
}
