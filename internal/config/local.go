package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Storage drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// LocalConfig holds configuration for the daemon and CLI
type LocalConfig struct {
	Daemon       DaemonConfig      `yaml:"daemon"`
	Storage      StorageConfig     `yaml:"storage"`
	Learning     LearningConfig    `yaml:"learning"`
	Achievements AchievementConfig `yaml:"achievements"`
	Queue        QueueConfig       `yaml:"queue"`
	Resilience   ResilienceConfig  `yaml:"resilience"`
}

// DaemonConfig holds daemon server settings
type DaemonConfig struct {
	Port     int    `yaml:"port"`
	Bind     string `yaml:"bind"`
	LogLevel string `yaml:"log_level"`
	// RateLimit is the sustained number of requests per second per client.
	// Zero disables limiting.
	RateLimit int `yaml:"rate_limit"`
	RateBurst int `yaml:"rate_burst"`
}

// StorageConfig selects and configures the Store
type StorageConfig struct {
	Driver       string `yaml:"driver"`
	SQLitePath   string `yaml:"sqlite_path"`
	PostgresURL  string `yaml:"-"` // Loaded from secrets.yaml or DATABASE_URL
	SnapshotPath string `yaml:"snapshot_path"`
}

// LearningConfig holds scoring settings
type LearningConfig struct {
	// TierPolicy names the skill tier table: standard or strict.
	TierPolicy string `yaml:"tier_policy"`
}

// AchievementConfig tunes achievement awarding
type AchievementConfig struct {
	StreakMatch string `yaml:"streak_match"`
	AwardOnce   bool   `yaml:"award_once"`
}

// QueueConfig holds RabbitMQ settings
type QueueConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"-"` // Loaded from secrets.yaml or RABBITMQ_URL
	Workers  int    `yaml:"workers"`
	Prefetch int    `yaml:"prefetch"`
}

// ResilienceConfig tunes the store decorator
type ResilienceConfig struct {
	Enabled            bool `yaml:"enabled"`
	MaxAttempts        int  `yaml:"max_attempts"`
	InitialDelayMS     int  `yaml:"initial_delay_ms"`
	MaxDelayMS         int  `yaml:"max_delay_ms"`
	FailureThreshold   int  `yaml:"failure_threshold"`
	OpenTimeoutSeconds int  `yaml:"open_timeout_seconds"`
	MaxConcurrent      int  `yaml:"max_concurrent"`
}

// SecretsConfig holds connection strings loaded from secrets.yaml
type SecretsConfig struct {
	DatabaseURL string `yaml:"database_url,omitempty"`
	RabbitMQURL string `yaml:"rabbitmq_url,omitempty"`
}

// Dir returns the path to ~/.cyberquest
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".cyberquest"), nil
}

// EnsureDir creates ~/.cyberquest and subdirectories if they don't exist
func EnsureDir() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}

	for _, subdir := range []string{"", "logs", "data"} {
		path := filepath.Join(dir, subdir)
		if err := os.MkdirAll(path, 0755); err != nil {
			return "", fmt.Errorf("create dir %s: %w", path, err)
		}
	}

	return dir, nil
}

// DefaultLocalConfig returns sensible defaults rooted at dir
func DefaultLocalConfig(dir string) *LocalConfig {
	return &LocalConfig{
		Daemon: DaemonConfig{
			Port:      7433,
			Bind:      "127.0.0.1",
			LogLevel:  "info",
			RateLimit: 20,
			RateBurst: 40,
		},
		Storage: StorageConfig{
			Driver:       DriverSQLite,
			SQLitePath:   filepath.Join(dir, "data", "cyberquest.db"),
			SnapshotPath: filepath.Join(dir, "data", "snapshot.json"),
		},
		Learning: LearningConfig{
			TierPolicy: "standard",
		},
		Achievements: AchievementConfig{
			StreakMatch: "exact",
		},
		Queue: QueueConfig{
			Workers:  3,
			Prefetch: 1,
		},
		Resilience: ResilienceConfig{
			Enabled:            true,
			MaxAttempts:        3,
			InitialDelayMS:     50,
			MaxDelayMS:         1000,
			FailureThreshold:   5,
			OpenTimeoutSeconds: 30,
			MaxConcurrent:      16,
		},
	}
}

// Validate checks values that cannot be defaulted
func (c *LocalConfig) Validate() error {
	if c.Daemon.Port <= 0 || c.Daemon.Port > 65535 {
		return fmt.Errorf("daemon.port %d out of range", c.Daemon.Port)
	}
	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Learning.TierPolicy {
	case "", "standard", "strict":
	default:
		return fmt.Errorf("unknown tier policy %q", c.Learning.TierPolicy)
	}
	switch c.Achievements.StreakMatch {
	case "", "exact", "at_least":
	default:
		return fmt.Errorf("unknown streak match %q", c.Achievements.StreakMatch)
	}
	if c.Queue.Enabled && c.Queue.URL == "" {
		return fmt.Errorf("RABBITMQ_URL is required when the queue is enabled")
	}
	return nil
}

// LoadLocalConfig loads configuration from ~/.cyberquest/config.yaml and
// applies environment overrides
func LoadLocalConfig() (*LocalConfig, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return LoadLocalConfigFrom(dir)
}

// LoadLocalConfigFrom loads config.yaml and secrets.yaml from dir
func LoadLocalConfigFrom(dir string) (*LocalConfig, error) {
	cfg := DefaultLocalConfig(dir)

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadSecrets(dir, cfg); err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}

	applyEnv(cfg)
	cfg.Daemon.LogLevel = strings.ToLower(cfg.Daemon.LogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// loadSecrets loads connection strings from secrets.yaml
func loadSecrets(dir string, cfg *LocalConfig) error {
	data, err := os.ReadFile(filepath.Join(dir, "secrets.yaml"))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read secrets: %w", err)
	}

	var secrets SecretsConfig
	if err := yaml.Unmarshal(data, &secrets); err != nil {
		return fmt.Errorf("parse secrets: %w", err)
	}

	if secrets.DatabaseURL != "" {
		cfg.Storage.PostgresURL = secrets.DatabaseURL
	}
	if secrets.RabbitMQURL != "" {
		cfg.Queue.URL = secrets.RabbitMQURL
	}
	return nil
}

// SaveLocalConfig saves configuration to ~/.cyberquest/config.yaml
func SaveLocalConfig(cfg *LocalConfig) error {
	dir, err := EnsureDir()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// SaveSecrets saves connection strings to ~/.cyberquest/secrets.yaml
func SaveSecrets(secrets SecretsConfig) error {
	dir, err := EnsureDir()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(secrets)
	if err != nil {
		return fmt.Errorf("marshal secrets: %w", err)
	}

	// Owner read/write only
	if err := os.WriteFile(filepath.Join(dir, "secrets.yaml"), data, 0600); err != nil {
		return fmt.Errorf("write secrets: %w", err)
	}
	return nil
}
