package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newSeedCmd(opts *rootOptions) *cobra.Command {
	var (
		feeds, articles, tags, batchSize int
		seed                             int64
		migrationsDir                    string
		verify, publish                  bool
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Recreate the database and fill it with synthetic data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("feeds") {
				cfg.Generate.Feeds = feeds
			}
			if flags.Changed("articles") {
				cfg.Generate.Articles = articles
			}
			if flags.Changed("tags") {
				cfg.Generate.Tags = tags
			}
			if flags.Changed("batch-size") {
				cfg.Generate.BatchSize = batchSize
			}
			if flags.Changed("seed") {
				cfg.Seed = seed
			}
			if migrationsDir != "" {
				cfg.MigrationsDir = migrationsDir
			}
			if flags.Changed("verify") {
				cfg.VerifyAfterSeed = verify
			}
			if flags.Changed("publish") {
				cfg.Snapshot.Enabled = publish
			}

			p, err := opts.pipeline(cmd, cfg)
			if err != nil {
				return err
			}
			result, err := p.Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seed %d, finished in %s\n", result.Seed, result.Elapsed.Round(time.Millisecond))
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&feeds, "feeds", 0, "number of feeds (default 1000)")
	f.IntVar(&articles, "articles", 0, "number of articles (default 100000)")
	f.IntVar(&tags, "tags", 0, "number of tags (default 50)")
	f.IntVar(&batchSize, "batch-size", 0, "articles per insert transaction (default 1000)")
	f.Int64Var(&seed, "seed", 0, "master random seed, 0 picks one from the clock")
	f.StringVar(&migrationsDir, "migrations", "", "directory of <version>_<description>.sql files (default: embedded schema)")
	f.BoolVar(&verify, "verify", false, "check the dataset after seeding")
	f.BoolVar(&publish, "publish", false, "publish a snapshot after seeding")
	return cmd
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	var migrationsDir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Recreate the database and apply migrations only",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if migrationsDir != "" {
				cfg.MigrationsDir = migrationsDir
			}
			p, err := opts.pipeline(cmd, cfg)
			if err != nil {
				return err
			}
			_, err = p.Migrate(cmd.Context())
			return err
		},
	}
	cmd.Flags().StringVar(&migrationsDir, "migrations", "", "directory of <version>_<description>.sql files (default: embedded schema)")
	return cmd
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print row counts of an existing database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			p, err := opts.pipeline(cmd, cfg)
			if err != nil {
				return err
			}
			_, err = p.Stats(cmd.Context())
			return err
		},
	}
}

func newVerifyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check an existing database against the configured dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			p, err := opts.pipeline(cmd, cfg)
			if err != nil {
				return err
			}
			if _, err := p.Verify(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All checks passed")
			return nil
		},
	}
}

func newPublishCmd(opts *rootOptions) *cobra.Command {
	var seed int64

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Upload a compressed snapshot of an existing database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			p, err := opts.pipeline(cmd, cfg)
			if err != nil {
				return err
			}
			meta, err := p.Publish(cmd.Context(), seed)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published %s (sha256 %s)\n", meta.DataKey, meta.SourceSHA256)
			return nil
		},
	}
	cmd.Flags().Int64Var(&seed, "seed", 0, "seed the database was built with, recorded in the sidecar")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fluxfeed-stress version %s (commit: %s)\n", version, commit)
		},
	}
}
