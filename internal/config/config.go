package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Module provides the environment configuration and the hot-reloadable
// sync tuning.
var Module = fx.Provide(
	Load,
	NewSyncConfigHolder,
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	// DataDir is the directory holding per-tenant store files and
	// device-level state.
	DataDir string

	// ListenAddr is the local device API bind address.
	ListenAddr string

	// RequestTimeout bounds every outbound network call.
	RequestTimeout time.Duration

	SyncConfigPath string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	dataDir := getenv("SALESYNC_DATA_DIR", defaultDataDir())

	return Config{
		AppName:        getenv("APP_SERVICE", "salesync"),
		AppVersion:     getenv("APP_VERSION", "0.1.0"),
		Environment:    getenv("ENVIRONMENT", "development"),
		DataDir:        dataDir,
		ListenAddr:     getenv("SALESYNC_LISTEN_ADDR", ":8970"),
		RequestTimeout: getenvDuration("SALESYNC_REQUEST_TIMEOUT", 15*time.Second),
		SyncConfigPath: getenv("SALESYNC_SYNC_CONFIG", dataDir),
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".salesync")
}

func getenv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
		return parsed
	}
	if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}
