package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fluxfeed/stressdb/internal/config"
	"github.com/fluxfeed/stressdb/internal/logging"
	"github.com/fluxfeed/stressdb/internal/pipeline"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configFile string
	dbPath     string
	driver     string
	logLevel   string
}

// load builds the configuration: defaults, then file, then environment,
// then flags.
func (o *rootOptions) load() (*config.Config, error) {
	var cfg *config.Config
	var err error

	if o.configFile != "" {
		cfg, err = config.LoadFromFile(o.configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)

	if o.dbPath != "" {
		cfg.DBPath = o.dbPath
	}
	if o.driver != "" {
		cfg.Driver = o.driver
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return cfg, nil
}

// pipeline builds the pipeline for cfg with logs on stderr and progress on
// the command's stdout.
func (o *rootOptions) pipeline(cmd *cobra.Command, cfg *config.Config) (*pipeline.Pipeline, error) {
	logger, err := logging.New(cfg.LogLevel, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	return pipeline.New(cfg, logger, cmd.OutOrStdout())
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "fluxfeed-stress",
		Short: "Build a synthetic feed-reader database for load testing",
		Long: `fluxfeed-stress recreates a SQLite database, applies the feed-reader
schema migrations and fills it with synthetic tags, feeds and articles.

Example usage:
  fluxfeed-stress seed                         # 50 tags, 1000 feeds, 100000 articles
  fluxfeed-stress seed --articles 1000000      # a bigger dataset
  fluxfeed-stress seed --seed 42 --verify      # reproducible, then checked
  fluxfeed-stress stats --db /tmp/stress.db    # row counts of an existing file

Environment variables use the FLUXFEED_STRESS_ prefix, e.g.
FLUXFEED_STRESS_DB_PATH, FLUXFEED_STRESS_ARTICLES, FLUXFEED_STRESS_STORAGE_TYPE.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "configuration file (YAML or JSON)")
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "database file (default "+config.DefaultDBPath+")")
	root.PersistentFlags().StringVar(&opts.driver, "driver", "", "database driver: sqlite (pure Go) or sqlite3 (cgo)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newSeedCmd(opts),
		newMigrateCmd(opts),
		newStatsCmd(opts),
		newVerifyCmd(opts),
		newPublishCmd(opts),
		newVersionCmd(),
	)
	return root
}
