package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/screenwise/screentime-service/internal/backend"
	"github.com/screenwise/screentime-service/internal/challenge"
	"github.com/screenwise/screentime-service/internal/config"
	"github.com/screenwise/screentime-service/internal/engine"
	"github.com/screenwise/screentime-service/internal/httpapi"
	"github.com/screenwise/screentime-service/internal/logging"
	"github.com/screenwise/screentime-service/internal/monitor"
	"github.com/screenwise/screentime-service/internal/registry"
	"github.com/screenwise/screentime-service/internal/server"
	"github.com/screenwise/screentime-service/internal/state"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Errorf("config error: %w", err))
	}

	logger := logging.NewLogger("screentime-service")

	store, cleanup, err := newStore(ctx, cfg)
	if err != nil {
		panic(fmt.Errorf("store init error: %w", err))
	}
	defer cleanup()

	clock := monitor.NewSystemClock()
	ids := monitor.NewUUIDGenerator()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	// The backend is optional: without it challenges come from the local pool
	// and usage comes from the on-device simulator.
	var client *backend.Client
	var oracle challenge.Oracle
	var source monitor.UsageSource
	if cfg.BackendBaseURL != "" {
		client = backend.NewClient(cfg.BackendBaseURL)
		oracle = client
		source = backend.NewUsageSource(client, 0)
	} else {
		source = monitor.NewSimulatedSource(rng, 0)
	}

	generator := challenge.NewGenerator(oracle, challenge.AccuracyStrategy, rng, clock, ids, logger)

	eng, err := engine.New(engine.Options{
		Store:           store,
		Client:          client,
		Source:          source,
		Generator:       generator,
		Clock:           clock,
		IDs:             ids,
		Logger:          logger,
		RefreshInterval: cfg.RefreshInterval,
		SyncInterval:    cfg.SyncInterval,
	})
	if err != nil {
		panic(fmt.Errorf("engine init error: %w", err))
	}

	if err := eng.Load(ctx); err != nil {
		panic(fmt.Errorf("snapshot load error: %w", err))
	}
	eng.Start(ctx)
	defer eng.Close()

	reg := registry.New()

	router := server.NewRouter("screentime-service", func(r chi.Router) {
		httpapi.RegisterRoutes(r, eng, reg, logger)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if err := server.Run(ctx, srv, logger); err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic(err)
	}
}

func newStore(ctx context.Context, cfg config.Config) (state.Store, func(), error) {
	switch cfg.DataStore {
	case "firestore":
		if cfg.Firestore.EmulatorHost != "" {
			if err := os.Setenv("FIRESTORE_EMULATOR_HOST", cfg.Firestore.EmulatorHost); err != nil {
				return nil, nil, fmt.Errorf("set FIRESTORE_EMULATOR_HOST: %w", err)
			}
		}

		client, err := firestore.NewClient(ctx, cfg.Firestore.ProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("firestore client: %w", err)
		}

		cleanup := func() {
			_ = client.Close()
		}
		return state.NewFirestoreStore(client), cleanup, nil
	case "memory":
		return state.NewMemoryStore(), func() {}, nil
	default:
		return state.NewFileStore(cfg.File.Path), func() {}, nil
	}
}
