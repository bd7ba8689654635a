package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/screenwise/screentime-service/internal/challenge"
	"github.com/screenwise/screentime-service/internal/engine"
	"github.com/screenwise/screentime-service/internal/monitor"
	"github.com/screenwise/screentime-service/internal/registry"
	"github.com/screenwise/screentime-service/internal/state"
)

type fixedClock struct{}

func (fixedClock) Now() time.Time {
	return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
}

type sequenceIDs struct {
	mu   sync.Mutex
	next int
}

func (s *sequenceIDs) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return fmt.Sprintf("id-%d", s.next)
}

type staticSource struct{}

func (staticSource) Sample(context.Context, string) (int, error) {
	return 0, nil
}

func newTestRouter(t *testing.T) (*chi.Mux, *engine.Engine) {
	t.Helper()

	clock := fixedClock{}
	ids := &sequenceIDs{}
	generator := challenge.NewGenerator(nil, challenge.AccuracyStrategy, rand.New(rand.NewSource(1)), clock, ids, nil)

	eng, err := engine.New(engine.Options{
		Store:     state.NewMemoryStore(),
		Source:    staticSource{},
		Generator: generator,
		Clock:     clock,
		IDs:       ids,
	})
	if err != nil {
		t.Fatalf("engine.New returned error: %v", err)
	}
	if err := eng.Load(context.Background()); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	router := chi.NewRouter()
	RegisterRoutes(router, eng, registry.New(), nil)
	return router, eng
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestMonitoredAppLifecycle(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/apps/monitored", map[string]any{
		"packageName": "com.instagram.android",
		"appName":     "Instagram",
		"category":    "social",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[monitor.App](t, rec)
	if created.DailyLimit != 30 {
		t.Fatalf("expected social default limit, got %d", created.DailyLimit)
	}

	// Duplicate package maps to a 400.
	rec = doJSON(t, router, http.MethodPost, "/api/apps/monitored", map[string]any{
		"packageName": "com.instagram.android",
		"appName":     "Instagram",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a duplicate, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/apps/monitored", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	listing := decode[map[string][]monitor.App](t, rec)
	if len(listing["apps"]) != 1 {
		t.Fatalf("expected one monitored app, got %+v", listing)
	}

	rec = doJSON(t, router, http.MethodPut, "/api/apps/monitored/"+created.ID+"/usage", map[string]int{"timeUsed": 30})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	updated := decode[monitor.App](t, rec)
	if !updated.IsBlocked {
		t.Fatalf("expected the app to block at its limit: %+v", updated)
	}

	rec = doJSON(t, router, http.MethodDelete, "/api/apps/monitored/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	// Removal is idempotent at the API boundary.
	rec = doJSON(t, router, http.MethodDelete, "/api/apps/monitored/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on repeat delete, got %d", rec.Code)
	}
}

func TestMonitoredApp_RegistryFillsMetadata(t *testing.T) {
	router, _ := newTestRouter(t)

	// Only the package arrives; name and category come from the catalog.
	rec := doJSON(t, router, http.MethodPost, "/api/apps/monitored", map[string]any{
		"packageName": "com.spotify.music",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[monitor.App](t, rec)
	if created.Name != "Spotify" || created.Category != "music" {
		t.Fatalf("catalog metadata not applied: %+v", created)
	}
	if created.DailyLimit != 180 {
		t.Fatalf("expected the music default of 180, got %d", created.DailyLimit)
	}
}

func TestChallengeGenerateAndSubmit(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/challenges/generate", map[string]string{"difficulty": "easy"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	generated := decode[challenge.Challenge](t, rec)
	if generated.Difficulty != challenge.DifficultyEasy || generated.TimeReward != 5 {
		t.Fatalf("unexpected challenge: %+v", generated)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/challenges/"+generated.ID+"/submit", map[string]int{"answer": generated.Answer})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	result := decode[challenge.Result](t, rec)
	if !result.Correct || result.MinutesEarned != 5 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestChallengeSubmit_Errors(t *testing.T) {
	router, _ := newTestRouter(t)

	// No challenge outstanding at all.
	rec := doJSON(t, router, http.MethodPost, "/api/challenges/ch-ghost/submit", map[string]int{"answer": 1})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	// Wrong id while a different challenge is outstanding.
	rec = doJSON(t, router, http.MethodPost, "/api/challenges/generate", map[string]string{"difficulty": "easy"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodPost, "/api/challenges/other-id/submit", map[string]int{"answer": 1})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a stale id, got %d", rec.Code)
	}

	// Missing answer.
	generated := decode[challenge.Challenge](t, doJSON(t, router, http.MethodPost, "/api/challenges/generate", map[string]string{"difficulty": "easy"}))
	rec = doJSON(t, router, http.MethodPost, "/api/challenges/"+generated.ID+"/submit", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without an answer, got %d", rec.Code)
	}
}

func TestUsageSessionRoute(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/usage/session", map[string]any{
		"packageName": "com.instagram.android",
		"appName":     "Instagram",
		"duration":    15,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	session := decode[state.UsageSession](t, rec)
	if session.Duration != 15 || session.Date != "2026-03-14" {
		t.Fatalf("unexpected session: %+v", session)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/usage/session", map[string]any{"duration": 0})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an invalid session, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/usage/sessions?days=7", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	listing := decode[map[string][]state.UsageSession](t, rec)
	if len(listing["sessions"]) != 1 {
		t.Fatalf("expected one session, got %+v", listing)
	}
}

func TestRegistryRoutes(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/apps/search?query=spotify", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	search := decode[map[string]any](t, rec)
	if search["count"].(float64) != 1 {
		t.Fatalf("expected one match, got %+v", search)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/apps/bulk-register", []registry.DetectedApp{
		{PackageName: "com.example.one", AppName: "One", Category: "games"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	bulk := decode[map[string]any](t, rec)
	if bulk["registered"].(float64) != 1 {
		t.Fatalf("expected one registration, got %+v", bulk)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/apps/categories", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	categories := decode[[]registry.CategoryCount](t, rec)
	if len(categories) == 0 {
		t.Fatalf("expected seeded categories")
	}
}

func TestSettingsRoutes(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPatch, "/api/settings", map[string]any{
		"difficultySetting": "hard",
		"dailyGoal":         90,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/api/settings", nil)
	got := decode[map[string]any](t, rec)
	if got["difficultySetting"] != "hard" || got["dailyGoal"].(float64) != 90 {
		t.Fatalf("patch not applied: %+v", got)
	}
}

func TestAnalyticsAndAchievementsRoutes(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/analytics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	analytics := decode[engine.Analytics](t, rec)
	if analytics.MostUsedApp != "None" {
		t.Fatalf("fresh install should report no most-used app: %+v", analytics)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/achievements", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	payload := decode[map[string]json.RawMessage](t, rec)
	if _, ok := payload["achievements"]; !ok {
		t.Fatalf("expected an achievements key: %s", rec.Body.String())
	}
}
