package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("defaults should load: %v", err)
	}
	if cfg.Detector.SurgeMultiplier != 1.5 {
		t.Fatalf("unexpected surge multiplier %v", cfg.Detector.SurgeMultiplier)
	}
	if cfg.Storage.Backend != "file" || cfg.Market.Source != "demo" {
		t.Fatalf("unexpected backend/source %q/%q", cfg.Storage.Backend, cfg.Market.Source)
	}
	if cfg.Scheduler.Interval != time.Minute {
		t.Fatalf("unexpected interval %s", cfg.Scheduler.Interval)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trustscan.yaml")
	doc := `detector:
  surge_multiplier: 2
  strict: true
ledger:
  hash: keccak256
storage:
  backend: sqlite
  sqlite_path: /tmp/ledger.db
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TRUSTSCAN_STORAGE_MEMORY_DELAY", "250ms")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("config should load: %v", err)
	}
	if cfg.Detector.SurgeMultiplier != 2 || !cfg.Detector.Strict {
		t.Fatalf("detector section not applied: %+v", cfg.Detector)
	}
	if cfg.Ledger.Hash != "keccak256" || cfg.Storage.Backend != "sqlite" {
		t.Fatalf("ledger/storage not applied: %+v %+v", cfg.Ledger, cfg.Storage)
	}
	if cfg.Storage.MemoryDelay != 250*time.Millisecond {
		t.Fatalf("env override not applied: %s", cfg.Storage.MemoryDelay)
	}
}

func TestValidateRejects(t *testing.T) {
	base, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	cases := map[string]func(c *Config){
		"negative weight":     func(c *Config) { c.Detector.PriceWeight = -1 },
		"zero surge":          func(c *Config) { c.Detector.SurgeMultiplier = 0 },
		"unknown hash":        func(c *Config) { c.Ledger.Hash = "md5" },
		"unknown backend":     func(c *Config) { c.Storage.Backend = "s3" },
		"postgres sans dsn":   func(c *Config) { c.Storage.Backend = "postgres" },
		"file source no path": func(c *Config) { c.Market.Source = "file" },
		"telegram no token":   func(c *Config) { c.Alerting.Telegram.Enabled = true },
		"min strength range":  func(c *Config) { c.Alerting.MinStrength = 11 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := *base
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("%s should fail validation", name)
			}
		})
	}
}

func TestResolveMaxRecords(t *testing.T) {
	cfg := &Config{Export: ExportConfig{MaxRecords: 50}}
	if cfg.ResolveMaxRecords(0) != 50 || cfg.ResolveMaxRecords(7) != 7 {
		t.Fatal("override resolution incorrect")
	}
}
