package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the reminder engine and its API.
type AppConfig struct {
	DatabaseURL string
	HTTPAddr    string
	LogLevel    string
	Environment string

	// Cron specs for the externally owned triggers.
	CronSpecSweep   string
	CronSpecRetry   string
	CronSpecCleanup string

	// Engine tuning.
	SweepWorkers      int
	SweepBatchSize    int
	DispatchTimeout   time.Duration
	RetryLookback     time.Duration
	StaleClaimHorizon time.Duration
	CleanupMaxAgeDays int

	// Optional provider endpoints. Empty means the log-only sender is used.
	EmailProviderURL string
	EmailProviderKey string
	TextProviderURL  string
	TextProviderKey  string
}

// Load reads configuration from environment variables and .env file (if present).
// godotenv.Load will not override existing env variables.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	cfg := &AppConfig{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.HTTPAddr = envOr("HTTP_ADDR", ":8080")
	cfg.LogLevel = strings.ToLower(envOr("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(envOr("ENVIRONMENT", "development"))

	cfg.CronSpecSweep = envOr("CRON_SPEC_SWEEP", "*/5 * * * *")
	cfg.CronSpecRetry = envOr("CRON_SPEC_RETRY", "15 * * * *")
	cfg.CronSpecCleanup = envOr("CRON_SPEC_CLEANUP", "0 4 * * *")

	var err error
	if cfg.SweepWorkers, err = envInt("SWEEP_WORKERS", 8); err != nil {
		return nil, err
	}
	if cfg.SweepBatchSize, err = envInt("SWEEP_BATCH_SIZE", 200); err != nil {
		return nil, err
	}
	if cfg.CleanupMaxAgeDays, err = envInt("CLEANUP_MAX_AGE_DAYS", 90); err != nil {
		return nil, err
	}
	if cfg.DispatchTimeout, err = envDuration("DISPATCH_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.RetryLookback, err = envDuration("RETRY_LOOKBACK", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.StaleClaimHorizon, err = envDuration("STALE_CLAIM_HORIZON", 15*time.Minute); err != nil {
		return nil, err
	}

	cfg.EmailProviderURL = os.Getenv("EMAIL_PROVIDER_URL")
	cfg.EmailProviderKey = os.Getenv("EMAIL_PROVIDER_KEY")
	cfg.TextProviderURL = os.Getenv("TEXT_PROVIDER_URL")
	cfg.TextProviderKey = os.Getenv("TEXT_PROVIDER_KEY")

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
