package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	g := cfg.Generate
	if g.Tags != 50 || g.Feeds != 1000 || g.Articles != 100000 || g.BatchSize != 1000 {
		t.Errorf("unexpected reference sizing: %+v", g)
	}
	if cfg.DatabaseURL() != "sqlite:///tmp/fluxfeed-stress-test.db" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL())
	}
	if cfg.Snapshot.Storage.Path != filepath.Join("/tmp", "snapshots") {
		t.Errorf("snapshot path = %q", cfg.Snapshot.Storage.Path)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty path", func(c *Config) { c.DBPath = "" }},
		{"unknown driver", func(c *Config) { c.Driver = "postgres" }},
		{"too many tags", func(c *Config) { c.Generate.Tags = 1000 }},
		{"negative feeds", func(c *Config) { c.Generate.Feeds = -1 }},
		{"articles without feeds", func(c *Config) { c.Generate.Feeds = 0 }},
		{"zero batch", func(c *Config) { c.Generate.BatchSize = 0 }},
		{"batch over parameter limit", func(c *Config) { c.Generate.BatchSize = MaxBatchSize + 1 }},
		{"zero lookback", func(c *Config) { c.Generate.LookbackDays = 0 }},
		{"read probability", func(c *Config) { c.Generate.ReadProbability = 1.5 }},
		{"starred probability", func(c *Config) { c.Generate.StarredProbability = -0.1 }},
		{"bad storage type", func(c *Config) { c.Snapshot.Storage.Type = "gcs" }},
		{"s3 without bucket", func(c *Config) { c.Snapshot.Storage.Type = "s3" }},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}

func TestLoadFromFile_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stress.yaml")
	content := `
db_path: /var/tmp/seed.db
driver: sqlite3
seed: 42
generate:
  feeds: 10
  articles: 250
  batch_size: 100
snapshot:
  enabled: true
  storage:
    type: s3
    s3:
      bucket: fixtures
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.DBPath != "/var/tmp/seed.db" || cfg.Driver != DriverMattn || cfg.Seed != 42 {
		t.Errorf("top-level fields not loaded: %+v", cfg)
	}
	if cfg.Generate.Feeds != 10 || cfg.Generate.Articles != 250 || cfg.Generate.BatchSize != 100 {
		t.Errorf("generate section not loaded: %+v", cfg.Generate)
	}
	// Unset keys keep their defaults
	if cfg.Generate.Tags != 50 || cfg.Generate.ReadProbability != 0.3 {
		t.Errorf("defaults lost: %+v", cfg.Generate)
	}
	if !cfg.Snapshot.Enabled || cfg.Snapshot.Storage.S3.Bucket != "fixtures" {
		t.Errorf("snapshot section not loaded: %+v", cfg.Snapshot)
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stress.json")
	if err := os.WriteFile(path, []byte(`{"generate":{"tags":5}}`), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Generate.Tags != 5 {
		t.Errorf("tags = %d, want 5", cfg.Generate.Tags)
	}
}

func TestLoadFromFile_UnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stress.toml")
	if err := os.WriteFile(path, []byte(""), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected error for .toml config")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FLUXFEED_STRESS_DB_PATH", "/data/x.db")
	t.Setenv("FLUXFEED_STRESS_SEED", "7")
	t.Setenv("FLUXFEED_STRESS_ARTICLES", "123")
	t.Setenv("FLUXFEED_STRESS_READ_PROBABILITY", "0.5")
	t.Setenv("FLUXFEED_STRESS_SNAPSHOT_ENABLED", "1")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	if cfg.DBPath != "/data/x.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.Seed != 7 {
		t.Errorf("Seed = %d", cfg.Seed)
	}
	if cfg.Generate.Articles != 123 {
		t.Errorf("Articles = %d", cfg.Generate.Articles)
	}
	if cfg.Generate.ReadProbability != 0.5 {
		t.Errorf("ReadProbability = %g", cfg.Generate.ReadProbability)
	}
	if !cfg.Snapshot.Enabled {
		t.Error("snapshot should be enabled")
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.DBPath = filepath.Join(dir, "nested", "seed.db")
	cfg.Snapshot.Enabled = true
	cfg.Snapshot.Storage.Path = filepath.Join(dir, "snaps")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, d := range []string{filepath.Join(dir, "nested"), filepath.Join(dir, "snaps")} {
		if info, err := os.Stat(d); err != nil || !info.IsDir() {
			t.Errorf("directory %s not created", d)
		}
	}
}
