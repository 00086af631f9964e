// Package config loads daemon and CLI settings from ~/.cyberquest and the
// environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// applyEnv overrides file settings with environment variables
func applyEnv(cfg *LocalConfig) {
	cfg.Daemon.Port = getEnvInt("CYBERQUEST_PORT", cfg.Daemon.Port)
	cfg.Daemon.Bind = getEnv("CYBERQUEST_BIND", cfg.Daemon.Bind)
	cfg.Daemon.LogLevel = getEnv("LOG_LEVEL", cfg.Daemon.LogLevel)

	cfg.Storage.Driver = getEnv("STORAGE_DRIVER", cfg.Storage.Driver)
	cfg.Storage.SQLitePath = getEnv("CYBERQUEST_SQLITE_PATH", cfg.Storage.SQLitePath)
	cfg.Storage.PostgresURL = getEnv("DATABASE_URL", cfg.Storage.PostgresURL)

	if url := os.Getenv("RABBITMQ_URL"); url != "" {
		cfg.Queue.URL = url
		cfg.Queue.Enabled = true
	}
	cfg.Queue.Enabled = getEnvBool("CYBERQUEST_QUEUE_ENABLED", cfg.Queue.Enabled)

	cfg.Resilience.Enabled = getEnvBool("CYBERQUEST_RESILIENCE_ENABLED", cfg.Resilience.Enabled)
}

// InitialDelay returns the first retry delay
func (r ResilienceConfig) InitialDelay() time.Duration {
	return time.Duration(r.InitialDelayMS) * time.Millisecond
}

// MaxDelay returns the retry delay cap
func (r ResilienceConfig) MaxDelay() time.Duration {
	return time.Duration(r.MaxDelayMS) * time.Millisecond
}

// OpenTimeout returns how long the breaker stays open
func (r ResilienceConfig) OpenTimeout() time.Duration {
	return time.Duration(r.OpenTimeoutSeconds) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
