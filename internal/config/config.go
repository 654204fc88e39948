package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string

	// Worker pool and claim loop.
	NumWorkers     int
	ClaimBatchSize int
	PollInterval   time.Duration

	// Per-attempt HTTP timeout.
	AttemptTimeout time.Duration

	// Retry backoff: min(base * 2^(n-1), cap) * (1 +/- jitter).
	BackoffBase   time.Duration
	BackoffCap    time.Duration
	BackoffJitter float64

	// Consecutive delivery failures before an endpoint is auto-disabled.
	BreakerThreshold int

	// Deliveries stuck in "sending" longer than StaleClaimTimeout are
	// returned to "retrying" by a sweep running every SweepInterval.
	StaleClaimTimeout time.Duration
	SweepInterval     time.Duration

	// Max attempts applied to endpoints created without an explicit value.
	DefaultMaxRetries int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		RedisURL:          getEnv("REDIS_URL", ""),
		NumWorkers:        getEnvInt("NUM_WORKERS", 50),
		ClaimBatchSize:    getEnvInt("CLAIM_BATCH_SIZE", 20),
		PollInterval:      getEnvDuration("POLL_INTERVAL", 500*time.Millisecond),
		AttemptTimeout:    getEnvDuration("ATTEMPT_TIMEOUT", 10*time.Second),
		BackoffBase:       getEnvDuration("BACKOFF_BASE", 30*time.Second),
		BackoffCap:        getEnvDuration("BACKOFF_CAP", time.Hour),
		BackoffJitter:     getEnvFloat("BACKOFF_JITTER", 0.2),
		BreakerThreshold:  getEnvInt("BREAKER_THRESHOLD", 10),
		StaleClaimTimeout: getEnvDuration("STALE_CLAIM_TIMEOUT", 5*time.Minute),
		SweepInterval:     getEnvDuration("SWEEP_INTERVAL", time.Minute),
		DefaultMaxRetries: getEnvInt("DEFAULT_MAX_RETRIES", 5),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	if cfg.BackoffJitter < 0 || cfg.BackoffJitter >= 1 {
		return nil, fmt.Errorf("BACKOFF_JITTER must be in [0, 1), got %v", cfg.BackoffJitter)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}
