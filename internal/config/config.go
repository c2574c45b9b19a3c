// Package config provides configuration for the fluxfeed stress seeder.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fluxfeed/stressdb/pkg/types"
)

// Driver names accepted by the store.
const (
	DriverModernc = "sqlite"
	DriverMattn   = "sqlite3"
)

// DefaultDBPath is where the seeded database is written unless overridden.
const DefaultDBPath = "/tmp/fluxfeed-stress-test.db"

// MaxBatchSize keeps a multi-row article insert under SQLite's
// 32766 bound-parameter limit (12 columns per row).
const MaxBatchSize = 32766 / 12

// Config holds the full configuration for a seeding run.
type Config struct {
	// DBPath is the SQLite file to (re)create
	DBPath string `json:"db_path" yaml:"db_path"`

	// Driver selects the database/sql driver: sqlite (pure Go) or sqlite3 (cgo)
	Driver string `json:"driver" yaml:"driver"`

	// MigrationsDir overrides the embedded migrations when set
	MigrationsDir string `json:"migrations_dir" yaml:"migrations_dir"`

	// Seed is the master random seed; 0 derives one from the clock
	Seed int64 `json:"seed" yaml:"seed"`

	// LogLevel is a logrus level name
	LogLevel string `json:"log_level" yaml:"log_level"`

	// VerifyAfterSeed runs the verifier at the end of a seed run
	VerifyAfterSeed bool `json:"verify_after_seed" yaml:"verify_after_seed"`

	// Generate holds dataset sizing and distribution
	Generate GenerateConfig `json:"generate" yaml:"generate"`

	// Snapshot holds snapshot publishing configuration
	Snapshot SnapshotConfig `json:"snapshot" yaml:"snapshot"`
}

// GenerateConfig controls the shape of the synthetic dataset.
type GenerateConfig struct {
	Tags     int `json:"tags" yaml:"tags"`
	Feeds    int `json:"feeds" yaml:"feeds"`
	Articles int `json:"articles" yaml:"articles"`

	// BatchSize is the number of articles per insert transaction
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// MaxTagsPerFeed is the inclusive upper bound of tags attached to a feed
	MaxTagsPerFeed int `json:"max_tags_per_feed" yaml:"max_tags_per_feed"`

	// LookbackDays bounds how far in the past timestamps are placed
	LookbackDays int `json:"lookback_days" yaml:"lookback_days"`

	ReadProbability    float64 `json:"read_probability" yaml:"read_probability"`
	StarredProbability float64 `json:"starred_probability" yaml:"starred_probability"`

	// FeedProgressEvery prints a progress line every N feeds
	FeedProgressEvery int `json:"feed_progress_every" yaml:"feed_progress_every"`
}

// SnapshotConfig holds snapshot publishing configuration.
type SnapshotConfig struct {
	// Enabled publishes a snapshot at the end of a seed run
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Name is the object name stem, e.g. fluxfeed-stress
	Name string `json:"name" yaml:"name"`

	// Prefix is prepended to object keys
	Prefix string `json:"prefix" yaml:"prefix"`

	// Storage configuration
	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle forces path-style addressing (MinIO)
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// DefaultConfig returns the configuration of the reference stress dataset:
// 50 tags, 1000 feeds and 100000 articles.
func DefaultConfig() *Config {
	return &Config{
		DBPath:   DefaultDBPath,
		Driver:   DriverModernc,
		LogLevel: "info",
		Generate: GenerateConfig{
			Tags:               50,
			Feeds:              1000,
			Articles:           100000,
			BatchSize:          1000,
			MaxTagsPerFeed:     5,
			LookbackDays:       365,
			ReadProbability:    0.3,
			StarredProbability: 0.05,
			FeedProgressEvery:  100,
		},
		Snapshot: SnapshotConfig{
			Name: "fluxfeed-stress",
			Storage: StorageConfig{
				Type: "local",
			},
		},
	}
}

// Resolve fills in derived defaults.
func (c *Config) Resolve() {
	if c.DBPath == "" {
		c.DBPath = DefaultDBPath
	}
	if c.Driver == "" {
		c.Driver = DriverModernc
	}
	if c.Snapshot.Name == "" {
		c.Snapshot.Name = "fluxfeed-stress"
	}
	if c.Snapshot.Storage.Type == "" {
		c.Snapshot.Storage.Type = "local"
	}
	if c.Snapshot.Storage.Path == "" {
		c.Snapshot.Storage.Path = filepath.Join(filepath.Dir(c.DBPath), "snapshots")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}

	if c.Driver != DriverModernc && c.Driver != DriverMattn {
		return fmt.Errorf("invalid driver: %s (must be %s or %s)", c.Driver, DriverModernc, DriverMattn)
	}

	g := c.Generate
	if g.Tags < 0 || g.Tags > len(types.TagNames) {
		return fmt.Errorf("generate.tags must be between 0 and %d, got %d", len(types.TagNames), g.Tags)
	}
	if g.Feeds < 0 {
		return fmt.Errorf("generate.feeds must not be negative, got %d", g.Feeds)
	}
	if g.Articles < 0 {
		return fmt.Errorf("generate.articles must not be negative, got %d", g.Articles)
	}
	if g.Articles > 0 && g.Feeds == 0 {
		return fmt.Errorf("generate.articles requires at least one feed")
	}
	if g.BatchSize < 1 || g.BatchSize > MaxBatchSize {
		return fmt.Errorf("generate.batch_size must be between 1 and %d, got %d", MaxBatchSize, g.BatchSize)
	}
	if g.MaxTagsPerFeed < 0 {
		return fmt.Errorf("generate.max_tags_per_feed must not be negative, got %d", g.MaxTagsPerFeed)
	}
	if g.LookbackDays < 1 {
		return fmt.Errorf("generate.lookback_days must be at least 1, got %d", g.LookbackDays)
	}
	if g.ReadProbability < 0 || g.ReadProbability > 1 {
		return fmt.Errorf("generate.read_probability must be within [0, 1], got %g", g.ReadProbability)
	}
	if g.StarredProbability < 0 || g.StarredProbability > 1 {
		return fmt.Errorf("generate.starred_probability must be within [0, 1], got %g", g.StarredProbability)
	}

	s := c.Snapshot.Storage
	if s.Type != "local" && s.Type != "s3" {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", s.Type)
	}
	if s.Type == "s3" && s.S3.Bucket == "" {
		return fmt.Errorf("snapshot.storage.s3.bucket is required when storage type is s3")
	}

	return nil
}

// DatabaseURL returns the connection string a feed-reader instance would use
// to open the seeded file.
func (c *Config) DatabaseURL() string {
	return "sqlite://" + c.DBPath
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// EnvPrefix is the prefix of every environment variable read by LoadFromEnv.
const EnvPrefix = "FLUXFEED_STRESS_"

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv(cfg *Config) {
	if v := getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := getenv("DRIVER"); v != "" {
		cfg.Driver = v
	}
	if v := getenv("MIGRATIONS_DIR"); v != "" {
		cfg.MigrationsDir = v
	}
	if v := getenv("SEED"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Seed)
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("VERIFY"); v != "" {
		cfg.VerifyAfterSeed = v == "true" || v == "1"
	}

	// Dataset configuration
	if v := getenv("TAGS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Generate.Tags)
	}
	if v := getenv("FEEDS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Generate.Feeds)
	}
	if v := getenv("ARTICLES"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Generate.Articles)
	}
	if v := getenv("BATCH_SIZE"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Generate.BatchSize)
	}
	if v := getenv("LOOKBACK_DAYS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Generate.LookbackDays)
	}
	if v := getenv("READ_PROBABILITY"); v != "" {
		fmt.Sscanf(v, "%g", &cfg.Generate.ReadProbability)
	}
	if v := getenv("STARRED_PROBABILITY"); v != "" {
		fmt.Sscanf(v, "%g", &cfg.Generate.StarredProbability)
	}

	// Snapshot configuration
	if v := getenv("SNAPSHOT_ENABLED"); v != "" {
		cfg.Snapshot.Enabled = v == "true" || v == "1"
	}
	if v := getenv("SNAPSHOT_PREFIX"); v != "" {
		cfg.Snapshot.Prefix = v
	}
	if v := getenv("STORAGE_TYPE"); v != "" {
		cfg.Snapshot.Storage.Type = v
	}
	if v := getenv("STORAGE_PATH"); v != "" {
		cfg.Snapshot.Storage.Path = v
	}
	if v := getenv("S3_BUCKET"); v != "" {
		cfg.Snapshot.Storage.S3.Bucket = v
	}
	if v := getenv("S3_REGION"); v != "" {
		cfg.Snapshot.Storage.S3.Region = v
	}
	if v := getenv("S3_ENDPOINT"); v != "" {
		cfg.Snapshot.Storage.S3.Endpoint = v
	}
	if v := getenv("S3_PATH_STYLE"); v != "" {
		cfg.Snapshot.Storage.S3.UsePathStyle = v == "true" || v == "1"
	}
}

func getenv(key string) string {
	return os.Getenv(EnvPrefix + key)
}

// EnsureDirectories creates the parent directory of the database and the
// local snapshot directory when snapshots are enabled.
func (c *Config) EnsureDirectories() error {
	dirs := []string{filepath.Dir(c.DBPath)}
	if c.Snapshot.Enabled && c.Snapshot.Storage.Type == "local" {
		dirs = append(dirs, c.Snapshot.Storage.Path)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
