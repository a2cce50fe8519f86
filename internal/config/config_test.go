package config

import (
	"os"
	"testing"
)

func TestLoadFile(t *testing.T) {
	yamlContent := []byte(`
storage:
  backend: "mysql"
  mysql_dsn: "root:pw@tcp(localhost:3306)/stock_db?charset=utf8mb4"
  cache_dir: "/tmp/newhigh/cache"
provider:
  endpoint: "http://localhost:8765"
  rate_limit_ms: 350
  retry_max_attempts: 6
  retry_base_ms: 500
sync:
  start_date: "2022-01-01"
  batch_size: 400
buffer:
  enabled: true
  max_rows: 5000
  flush_interval_sec: 30
  workers: 2
  drain_timeout_sec: 120
logging:
  level: "debug"
  format: "text"
`)

	tmpFile, err := os.CreateTemp("", "newhigh-config-*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write(yamlContent); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	if err := tmpFile.Close(); err != nil {
		t.Fatalf("failed to close temp file: %v", err)
	}

	// Clear any environment overrides that might interfere.
	os.Unsetenv("DB_BACKEND")
	os.Unsetenv("STOCK_DB_URL")
	os.Unsetenv("SYNC_BATCH_SIZE")
	os.Unsetenv("LOG_LEVEL")

	cfg, err := Load(tmpFile.Name())
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Storage.Backend != "mysql" {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, "mysql")
	}
	if cfg.Provider.Endpoint != "http://localhost:8765" {
		t.Errorf("Provider.Endpoint = %q, want %q", cfg.Provider.Endpoint, "http://localhost:8765")
	}
	if cfg.Provider.RateLimitMS != 350 {
		t.Errorf("Provider.RateLimitMS = %d, want 350", cfg.Provider.RateLimitMS)
	}
	if cfg.Provider.RetryMaxAttempts != 6 {
		t.Errorf("Provider.RetryMaxAttempts = %d, want 6", cfg.Provider.RetryMaxAttempts)
	}
	if cfg.Sync.StartDate != "2022-01-01" {
		t.Errorf("Sync.StartDate = %q, want %q", cfg.Sync.StartDate, "2022-01-01")
	}
	if cfg.Sync.BatchSize != 400 {
		t.Errorf("Sync.BatchSize = %d, want 400", cfg.Sync.BatchSize)
	}
	if !cfg.Buffer.Enabled {
		t.Error("Buffer.Enabled = false, want true")
	}
	if cfg.Buffer.MaxRows != 5000 {
		t.Errorf("Buffer.MaxRows = %d, want 5000", cfg.Buffer.MaxRows)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}

	// Fields absent from the file keep their defaults.
	if cfg.Provider.RetryMaxMS != 30000 {
		t.Errorf("Provider.RetryMaxMS = %d, want default 30000", cfg.Provider.RetryMaxMS)
	}
	if cfg.Buffer.DrainTimeoutSec != 120 {
		t.Errorf("Buffer.DrainTimeoutSec = %d, want 120", cfg.Buffer.DrainTimeoutSec)
	}
}

func TestEnvOverrides(t *testing.T) {
	yamlContent := []byte(`
storage:
  backend: "sqlite"
  sqlite_path: "/original/stock.db"
sync:
  batch_size: 400
`)

	tmpFile, err := os.CreateTemp("", "newhigh-config-env-*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write(yamlContent); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	tmpFile.Close()

	os.Setenv("DB_BACKEND", "mysql")
	os.Setenv("STOCK_DB_URL", "root:pw@tcp(db:3306)/stock_db")
	os.Setenv("SYNC_BATCH_SIZE", "full")
	defer os.Unsetenv("DB_BACKEND")
	defer os.Unsetenv("STOCK_DB_URL")
	defer os.Unsetenv("SYNC_BATCH_SIZE")

	cfg, err := Load(tmpFile.Name())
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Storage.Backend != "mysql" {
		t.Errorf("Storage.Backend = %q, want %q (env override)", cfg.Storage.Backend, "mysql")
	}
	if cfg.Storage.MySQLDSN != "root:pw@tcp(db:3306)/stock_db" {
		t.Errorf("Storage.MySQLDSN = %q, want env value", cfg.Storage.MySQLDSN)
	}
	// sqlite_path should remain from YAML since no env override was set.
	if cfg.Storage.SQLitePath != "/original/stock.db" {
		t.Errorf("Storage.SQLitePath = %q, want %q (from YAML)", cfg.Storage.SQLitePath, "/original/stock.db")
	}
	// "full" is the no-limit sentinel.
	if cfg.Sync.BatchSize != 0 {
		t.Errorf("Sync.BatchSize = %d, want 0 (full resync sentinel)", cfg.Sync.BatchSize)
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	os.Unsetenv("DB_BACKEND")
	os.Unsetenv("SYNC_BATCH_SIZE")

	cfg, err := LoadOrDefault("/nonexistent/newhigh.yaml")
	if err != nil {
		t.Fatalf("LoadOrDefault() returned error: %v", err)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("default backend = %q, want sqlite", cfg.Storage.Backend)
	}
	if cfg.Provider.RetryMaxAttempts != 5 {
		t.Errorf("default retry attempts = %d, want 5", cfg.Provider.RetryMaxAttempts)
	}
}
