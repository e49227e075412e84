package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the client settings. Fields tagged env can be overridden
// with SHELF_* variables; DBPath and LogPath follow CacheDir.
type Config struct {
	BaseURL   string `env:"SHELF_API_URL"`
	CacheDir  string `env:"SHELF_CACHE_DIR"`
	DBPath    string
	LogPath   string
	LogLevel  string `env:"SHELF_LOG_LEVEL"`
	LogFormat string `env:"SHELF_LOG_FORMAT"`

	RequestTimeout time.Duration `env:"SHELF_REQUEST_TIMEOUT"`

	// Session verification.
	DebounceWindow         time.Duration `env:"SHELF_DEBOUNCE_WINDOW"`
	StatusRetries          int           `env:"SHELF_STATUS_RETRIES"`
	LogoutRetries          int           `env:"SHELF_LOGOUT_RETRIES"`
	RetryDelay             time.Duration `env:"SHELF_RETRY_DELAY"`
	RevalidateInterval     time.Duration `env:"SHELF_REVALIDATE_INTERVAL"`
	InitialCheckDelay      time.Duration `env:"SHELF_INITIAL_CHECK_DELAY"`
	MaxConsecutiveFailures int           `env:"SHELF_MAX_CONSECUTIVE_FAILURES"`

	SessionsInterval time.Duration `env:"SHELF_SESSIONS_INTERVAL"`
}

// Default returns the settings used when no environment overrides are set.
func Default() Config {
	cacheDir := filepath.Join(userConfigDir(), "shelf")
	return Config{
		BaseURL:                "http://localhost:8000/api/v1",
		CacheDir:               cacheDir,
		DBPath:                 filepath.Join(cacheDir, "cache.db"),
		LogPath:                filepath.Join(cacheDir, "debug.log"),
		LogLevel:               "info",
		LogFormat:              "text",
		RequestTimeout:         10 * time.Second,
		DebounceWindow:         2 * time.Second,
		StatusRetries:          2,
		LogoutRetries:          1,
		RetryDelay:             1 * time.Second,
		RevalidateInterval:     13 * time.Minute,
		InitialCheckDelay:      5 * time.Second,
		MaxConsecutiveFailures: 3,
		SessionsInterval:       30 * time.Second,
	}
}

// Load returns Default overlaid with SHELF_* environment variables.
// A .env file in the working directory is read first if present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	defaultDir := cfg.CacheDir
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.CacheDir != defaultDir {
		cfg.DBPath = filepath.Join(cfg.CacheDir, "cache.db")
		cfg.LogPath = filepath.Join(cfg.CacheDir, "debug.log")
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("SHELF_API_URL must not be empty")
	}
	if c.StatusRetries < 0 || c.LogoutRetries < 0 {
		return fmt.Errorf("retry counts must not be negative")
	}
	if c.RevalidateInterval <= 0 || c.SessionsInterval <= 0 {
		return fmt.Errorf("polling intervals must be positive")
	}
	if c.MaxConsecutiveFailures < 1 {
		return fmt.Errorf("SHELF_MAX_CONSECUTIVE_FAILURES must be at least 1")
	}
	return nil
}

func userConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config")
}
