// Package config loads the engine configuration from YAML and applies
// environment overrides. The resulting Config is a plain value constructed
// once in main and passed down by parameter; nothing reads configuration
// from ambient state after startup.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the sync engine.
type Config struct {
	Storage  Storage  `yaml:"storage"`
	Provider Provider `yaml:"provider"`
	Sync     Sync     `yaml:"sync"`
	Buffer   Buffer   `yaml:"buffer"`
	Server   Server   `yaml:"server"`
	Schedule Schedule `yaml:"schedule"`
	Logging  Logging  `yaml:"logging"`
}

// Storage selects and locates the database backend.
type Storage struct {
	// Backend is "sqlite" or "mysql".
	Backend    string `yaml:"backend"`
	SQLitePath string `yaml:"sqlite_path"`
	MySQLDSN   string `yaml:"mysql_dsn"`
	// CacheDir holds write-buffer spill files.
	CacheDir string `yaml:"cache_dir"`
}

// Provider configures the market-data gateway and its rate limits.
type Provider struct {
	Endpoint string `yaml:"endpoint"`
	// RateLimitMS is the minimum delay between provider calls, in
	// milliseconds, measured end-of-call to start-of-next.
	RateLimitMS      int `yaml:"rate_limit_ms"`
	RetryMaxAttempts int `yaml:"retry_max_attempts"`
	RetryBaseMS      int `yaml:"retry_base_ms"`
	RetryMaxMS       int `yaml:"retry_max_ms"`
	TimeoutSec       int `yaml:"timeout_sec"`
}

// Sync controls the incremental pass.
type Sync struct {
	// StartDate bounds the initial backfill window (YYYY-MM-DD).
	StartDate string `yaml:"start_date"`
	// BackfillDays is used to derive StartDate when it is empty.
	BackfillDays int `yaml:"backfill_days"`
	// BatchSize caps the instruments processed per pass; 0 means all
	// (full resync).
	BatchSize int `yaml:"batch_size"`
	// ProgressEvery controls how often per-instrument progress is logged.
	ProgressEvery int `yaml:"progress_every"`
}

// Buffer configures the async write buffer.
type Buffer struct {
	Enabled          bool `yaml:"enabled"`
	MaxRows          int  `yaml:"max_rows"`
	FlushIntervalSec int  `yaml:"flush_interval_sec"`
	Workers          int  `yaml:"workers"`
	DrainTimeoutSec  int  `yaml:"drain_timeout_sec"`
}

// Server holds the read-only HTTP API listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Schedule holds cron expressions for the sync daemon.
type Schedule struct {
	Daily    string `yaml:"daily"`
	Extended string `yaml:"extended"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns the configuration used when no file is present: SQLite
// storage, a three-year backfill window, and the provider pacing the
// original engine ran with.
func Default() *Config {
	return &Config{
		Storage: Storage{
			Backend:    "sqlite",
			SQLitePath: "data/stock_database.db",
			CacheDir:   "data/db_cache",
		},
		Provider: Provider{
			RateLimitMS:      200,
			RetryMaxAttempts: 5,
			RetryBaseMS:      1000,
			RetryMaxMS:       30000,
			TimeoutSec:       10,
		},
		Sync: Sync{
			BackfillDays:  365 * 3,
			BatchSize:     400,
			ProgressEvery: 20,
		},
		Buffer: Buffer{
			MaxRows:          10000,
			FlushIntervalSec: 60,
			Workers:          2,
			DrainTimeoutSec:  300,
		},
		Server: Server{Host: "0.0.0.0", Port: 8099},
		Schedule: Schedule{
			Daily:    "0 30 17 * * 1-5",
			Extended: "0 0 20 * * 5",
		},
		Logging: Logging{Level: "info", Format: "json"},
	}
}

// Load reads the YAML configuration file at the given path over the
// defaults, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to defaults (plus env
// overrides) when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if os.IsNotExist(err) {
		cfg = Default()
		applyEnvOverrides(cfg)
		return cfg, nil
	}
	return cfg, err
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DB_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("STOCK_DB_URL"); v != "" {
		cfg.Storage.MySQLDSN = v
	}
	if v := os.Getenv("PROVIDER_ENDPOINT"); v != "" {
		cfg.Provider.Endpoint = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SYNC_BATCH_SIZE"); v != "" {
		// "full" and "none" mean no cap, matching the historical knob.
		if v == "full" || v == "none" {
			cfg.Sync.BatchSize = 0
		} else if n, err := strconv.Atoi(v); err == nil {
			cfg.Sync.BatchSize = n
		}
	}
}
