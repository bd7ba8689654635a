package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/screenwise/screentime-service/internal/challenge"
	"github.com/screenwise/screentime-service/internal/engine"
	"github.com/screenwise/screentime-service/internal/monitor"
	"github.com/screenwise/screentime-service/internal/registry"
	"github.com/screenwise/screentime-service/internal/settings"
)

const (
	serviceTimeout   = 8 * time.Second
	maxBodyBytes     = 256 * 1024
	defaultSearchCap = 50
)

// RegisterRoutes registers the full API surface against the engine and the
// detected-app registry.
func RegisterRoutes(r chi.Router, eng *engine.Engine, reg *registry.Registry, logger *slog.Logger) {
	r.Route("/api/challenges", func(r chi.Router) {
		r.Use(middleware.Recoverer)

		r.Post("/generate", generateChallenge(eng, logger))
		r.Post("/{id}/submit", submitChallenge(eng, logger))
		r.Get("/history", challengeHistory(eng))
	})

	r.Route("/api/apps", func(r chi.Router) {
		r.Use(middleware.Recoverer)

		r.Get("/monitored", listMonitoredApps(eng))
		r.Post("/monitored", addMonitoredApp(eng, reg, logger))
		r.Delete("/monitored/{id}", removeMonitoredApp(eng, logger))
		r.Put("/monitored/{id}/usage", updateAppUsage(eng, logger))

		r.Post("/bulk-register", bulkRegisterApps(reg))
		r.Get("/registry", appRegistry(reg))
		r.Get("/search", searchApps(reg))
		r.Get("/categories", appCategories(reg))
	})

	r.Route("/api/usage", func(r chi.Router) {
		r.Use(middleware.Recoverer)

		r.Post("/session", logSession(eng, logger))
		r.Get("/realtime", realtimeUsage(eng))
		r.Get("/sessions", usageSessions(eng))
	})

	r.Get("/api/analytics", analytics(eng))
	r.Get("/api/achievements", achievements(eng))
	r.Get("/api/settings", getSettings(eng))
	r.Patch("/api/settings", updateSettings(eng, logger))
}

// ===== Challenges =====

func generateChallenge(eng *engine.Engine, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Difficulty string `json:"difficulty"`
			AppID      string `json:"appId"`
		}
		if err := decodeBody(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		generated, err := eng.GenerateChallenge(ctx, body.Difficulty, body.AppID)
		if err != nil {
			writeDomainError(r.Context(), w, logger, "failed to generate challenge", err)
			return
		}
		writeJSON(w, http.StatusOK, generated)
	}
}

func submitChallenge(eng *engine.Engine, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		challengeID := chi.URLParam(r, "id")
		if strings.TrimSpace(challengeID) == "" {
			writeError(w, http.StatusBadRequest, "missing challenge id")
			return
		}

		var body struct {
			Answer *int `json:"answer"`
		}
		if err := decodeBody(w, r, &body); err != nil || body.Answer == nil {
			writeError(w, http.StatusBadRequest, "answer is required")
			return
		}

		current, ok := eng.CurrentChallenge()
		if !ok || current.ID != challengeID {
			writeError(w, http.StatusNotFound, "challenge not found")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		result, err := eng.SubmitAnswer(ctx, *body.Answer)
		if err != nil {
			writeDomainError(r.Context(), w, logger, "failed to submit answer", err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func challengeHistory(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"challenges": eng.History(),
			"streak":     eng.Streak(),
		})
	}
}

// ===== Monitored apps =====

func listMonitoredApps(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"apps": eng.Apps()})
	}
}

func addMonitoredApp(eng *engine.Engine, reg *registry.Registry, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			PackageName string `json:"packageName"`
			AppName     string `json:"appName"`
			Category    string `json:"category"`
			DailyLimit  int    `json:"dailyLimit"`
		}
		if err := decodeBody(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		descriptor := monitor.Descriptor{
			Name:        body.AppName,
			PackageName: body.PackageName,
			Category:    body.Category,
		}
		// Fill gaps from the detected-app catalog when only a package arrived.
		if detected, ok := reg.Get(strings.TrimSpace(body.PackageName)); ok {
			if descriptor.Name == "" {
				descriptor.Name = detected.AppName
			}
			if descriptor.Category == "" {
				descriptor.Category = detected.Category
			}
		}

		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		app, err := eng.AddApp(ctx, descriptor, body.DailyLimit)
		if err != nil {
			writeDomainError(r.Context(), w, logger, "failed to add monitored app", err)
			return
		}
		writeJSON(w, http.StatusCreated, app)
	}
}

func removeMonitoredApp(eng *engine.Engine, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if strings.TrimSpace(id) == "" {
			writeError(w, http.StatusBadRequest, "missing app id")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		if err := eng.RemoveApp(ctx, id); err != nil {
			writeDomainError(r.Context(), w, logger, "failed to remove monitored app", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

func updateAppUsage(eng *engine.Engine, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var body struct {
			TimeUsed *int `json:"timeUsed"`
		}
		if err := decodeBody(w, r, &body); err != nil || body.TimeUsed == nil {
			writeError(w, http.StatusBadRequest, "timeUsed is required")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		app, err := eng.RecordUsage(ctx, id, *body.TimeUsed)
		if err != nil {
			writeDomainError(r.Context(), w, logger, "failed to update usage", err)
			return
		}
		writeJSON(w, http.StatusOK, app)
	}
}

// ===== Registry =====

func bulkRegisterApps(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var apps []registry.DetectedApp
		if err := decodeBody(w, r, &apps); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		registered, updated := reg.BulkRegister(apps)
		writeJSON(w, http.StatusOK, map[string]any{
			"success":    true,
			"registered": registered,
			"updated":    updated,
			"total":      len(apps),
		})
	}
}

func appRegistry(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"apps": reg.All()})
	}
}

func searchApps(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("query")
		category := r.URL.Query().Get("category")
		limit := defaultSearchCap
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
				limit = parsed
			}
		}

		apps := reg.Search(query, category, limit)
		writeJSON(w, http.StatusOK, map[string]any{
			"apps":     apps,
			"count":    len(apps),
			"query":    query,
			"category": category,
		})
	}
}

func appCategories(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, reg.Categories())
	}
}

// ===== Usage =====

func logSession(eng *engine.Engine, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			PackageName string `json:"packageName"`
			AppName     string `json:"appName"`
			Duration    int    `json:"duration"`
		}
		if err := decodeBody(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		session, err := eng.LogSession(ctx, engine.SessionInput{
			PackageName: body.PackageName,
			AppName:     body.AppName,
			Duration:    body.Duration,
		})
		if err != nil {
			writeDomainError(r.Context(), w, logger, "failed to log session", err)
			return
		}
		writeJSON(w, http.StatusCreated, session)
	}
}

func realtimeUsage(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, eng.Apps())
	}
}

func usageSessions(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days := 30
		if raw := r.URL.Query().Get("days"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
				days = parsed
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"sessions": eng.Sessions(days)})
	}
}

// ===== Analytics / achievements / settings =====

func analytics(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, eng.Analytics())
	}
}

func achievements(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"achievements": eng.Achievements()})
	}
}

func getSettings(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, eng.Settings())
	}
}

func updateSettings(eng *engine.Engine, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch settings.Patch
		if err := decodeBody(w, r, &patch); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		writeJSON(w, http.StatusOK, eng.UpdateSettings(ctx, patch))
	}
}

// ===== Helpers =====

func decodeBody(w http.ResponseWriter, r *http.Request, out any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

// writeDomainError maps domain sentinel errors to HTTP statuses; everything
// else is a 500 with the detail kept server-side.
func writeDomainError(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, message string, err error) {
	switch {
	case errors.Is(err, monitor.ErrNotFound):
		writeError(w, http.StatusNotFound, monitor.ErrNotFound.Error())
	case errors.Is(err, monitor.ErrDuplicateApp):
		writeError(w, http.StatusBadRequest, monitor.ErrDuplicateApp.Error())
	case errors.Is(err, monitor.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, challenge.ErrNoActiveChallenge):
		writeError(w, http.StatusNotFound, challenge.ErrNoActiveChallenge.Error())
	default:
		logRequestError(ctx, logger, message, err)
		writeError(w, http.StatusInternalServerError, message)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func logRequestError(ctx context.Context, logger *slog.Logger, message string, err error) {
	if logger == nil || err == nil {
		return
	}
	attrs := []any{slog.Any("error", err)}
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		attrs = append(attrs, slog.String("requestId", reqID))
	}
	logger.Error(message, attrs...)
}
