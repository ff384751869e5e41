package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	DatabaseURL string
	Port        string

	// CacheURL points at Redis. Empty means the in-process cache.
	CacheURL string
	CacheTTL time.Duration

	// LockBackend is "local" (in-process) or "redis" (distributed).
	// LOCK_BACKEND also accepts the aliases "process" and "distributed".
	// Local locks are only safe when exactly one instance runs.
	LockBackend string
	LockTTL     time.Duration
	LockWait    time.Duration

	// MultiInstance declares that more than one instance serves traffic.
	// Requires the redis lock backend.
	MultiInstance bool

	JobConcurrency int
	JobMaxAttempts int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:    getEnv("STORE_URL", ""),
		Port:           getEnv("PORT", "8080"),
		CacheURL:       getEnv("CACHE_URL", ""),
		CacheTTL:       time.Duration(getEnvInt("CACHE_TTL_SECONDS", 300)) * time.Second,
		LockTTL:        time.Duration(getEnvInt("LOCK_TTL_MS", 10000)) * time.Millisecond,
		LockWait:       time.Duration(getEnvInt("LOCK_WAIT_MS", 5000)) * time.Millisecond,
		MultiInstance:  getEnv("MULTI_INSTANCE", "false") == "true",
		JobConcurrency: getEnvInt("JOB_CONCURRENCY", 5),
		JobMaxAttempts: getEnvInt("JOB_MAX_ATTEMPTS", 3),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("STORE_URL is required")
	}

	switch backend := getEnv("LOCK_BACKEND", "process"); backend {
	case "process", "local":
		cfg.LockBackend = "local"
	case "distributed", "redis":
		cfg.LockBackend = "redis"
	default:
		return nil, fmt.Errorf("unknown LOCK_BACKEND %q", backend)
	}
	if cfg.MultiInstance && cfg.LockBackend != "redis" {
		return nil, fmt.Errorf("multi-instance mode requires a distributed lock backend; process locks cannot serialize across instances")
	}
	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
