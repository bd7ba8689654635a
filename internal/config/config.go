package config

import (
	"time"

	"github.com/screenwise/screentime-service/internal/envconfig"
)

type Config struct {
	Port      string `validate:"required"`
	DataStore string `validate:"required,oneof=memory file firestore"`

	// BackendBaseURL points at the remote challenge/usage API. Empty means the
	// engine runs fully local and every remote call is skipped.
	BackendBaseURL string

	RefreshInterval time.Duration `validate:"required,min=1s"`
	SyncInterval    time.Duration `validate:"required,min=1s"`

	File      FileConfig
	Firestore FirestoreConfig
}

type FileConfig struct {
	Path string
}

type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

func Load() (Config, error) {
	cfg := Config{
		Port:            envconfig.Get("PORT", "8080"),
		DataStore:       envconfig.Get("DATASTORE", "file"),
		BackendBaseURL:  envconfig.Get("BACKEND_BASE_URL", ""),
		RefreshInterval: envconfig.GetDuration("USAGE_REFRESH_INTERVAL", 45*time.Second),
		SyncInterval:    envconfig.GetDuration("BACKEND_SYNC_INTERVAL", 60*time.Second),
		File: FileConfig{
			Path: envconfig.Get("DATA_FILE", "screentime-data.json"),
		},
		Firestore: FirestoreConfig{
			ProjectID:    envconfig.Get("GCP_PROJECT_ID", "screenwise-dev"),
			EmulatorHost: envconfig.Get("FIRESTORE_EMULATOR_HOST", ""),
		},
	}
	return cfg, envconfig.Validate(cfg)
}
