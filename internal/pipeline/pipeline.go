// Package pipeline runs the seeding stages in order: recreate the store,
// migrate, create tags, feeds and articles, then report. Every stage
// commits before the next starts and nothing is rolled back across stages.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/fluxfeed/stressdb/internal/config"
	stresserrors "github.com/fluxfeed/stressdb/internal/errors"
	"github.com/fluxfeed/stressdb/internal/fts"
	"github.com/fluxfeed/stressdb/internal/generate"
	"github.com/fluxfeed/stressdb/internal/logging"
	"github.com/fluxfeed/stressdb/internal/migrate"
	"github.com/fluxfeed/stressdb/internal/randsrc"
	"github.com/fluxfeed/stressdb/internal/snapshot"
	"github.com/fluxfeed/stressdb/internal/stats"
	"github.com/fluxfeed/stressdb/internal/storage"
	"github.com/fluxfeed/stressdb/internal/store"
	"github.com/fluxfeed/stressdb/internal/verify"
	"github.com/fluxfeed/stressdb/migrations"
	"github.com/fluxfeed/stressdb/pkg/types"
)

// Result summarizes a seed run.
type Result struct {
	Seed       int64
	Migrations []types.MigrationRecord
	TagIDs     []int64
	Feeds      *generate.FeedResult
	Articles   *generate.LoadResult
	Counts     *stats.Counts
	Report     *verify.Report
	Snapshot   *snapshot.Metadata
	Elapsed    time.Duration
}

// Pipeline seeds one database file according to a Config.
type Pipeline struct {
	cfg *config.Config
	log logrus.FieldLogger
	out io.Writer

	// Now anchors generated timestamps; nil means time.Now
	Now func() time.Time
}

// New validates cfg and returns a Pipeline printing progress to out.
func New(cfg *config.Config, logger logrus.FieldLogger, out io.Writer) (*Pipeline, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, stresserrors.Wrap(stresserrors.ErrCategoryConfig, stresserrors.CodeInvalidConfig,
			"invalid configuration", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, stresserrors.NewStoreError(stresserrors.CodeStoreUnavailable,
			"failed to create directories", err)
	}
	if out == nil {
		out = io.Discard
	}
	return &Pipeline{
		cfg: cfg,
		log: logging.Component(logger, "pipeline"),
		out: out,
	}, nil
}

// MigrationSource returns the configured migrations directory, or the
// embedded schema when none is set.
func (p *Pipeline) MigrationSource() fs.FS {
	if p.cfg.MigrationsDir != "" {
		return os.DirFS(p.cfg.MigrationsDir)
	}
	return migrations.FS
}

// Expectations derives verifier expectations from the configuration.
func (p *Pipeline) Expectations() verify.Expectations {
	g := p.cfg.Generate
	return verify.Expectations{
		CheckCounts:        true,
		Tags:               int64(g.Tags),
		Feeds:              int64(g.Feeds),
		Articles:           int64(g.Articles),
		MaxTagsPerFeed:     g.MaxTagsPerFeed,
		ReadProbability:    g.ReadProbability,
		StarredProbability: g.StarredProbability,
	}
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Pipeline) printf(format string, args ...interface{}) {
	fmt.Fprintf(p.out, format, args...)
}

// recreate deletes the target file and opens a fresh store on it.
func (p *Pipeline) recreate(ctx context.Context) (*store.Store, error) {
	if _, err := os.Stat(p.cfg.DBPath); err == nil {
		p.printf("Removing existing database at %s\n", p.cfg.DBPath)
	}
	if err := store.Recreate(p.cfg.DBPath); err != nil {
		return nil, err
	}
	p.printf("Creating stress test database at %s\n", p.cfg.DBPath)

	s, err := store.Open(ctx, p.cfg.DBPath, p.cfg.Driver)
	if err != nil {
		return nil, err
	}

	ok, err := s.HasFTS5(ctx)
	if err != nil {
		s.Close()
		return nil, err
	}
	if !ok {
		s.Close()
		return nil, stresserrors.New(stresserrors.ErrCategoryFTS, stresserrors.CodeFTSUnavailable,
			fmt.Sprintf("driver %s was built without FTS5", p.cfg.Driver))
	}
	return s, nil
}

func (p *Pipeline) migrate(ctx context.Context, s *store.Store) ([]types.MigrationRecord, error) {
	p.printf("\nRunning migrations...\n")
	runner := migrate.NewRunner(s.DB, p.MigrationSource(), p.log)
	runner.OnApply(func(m migrate.Migration) {
		p.printf("  Running migration: %s\n", m.Filename)
	})
	return runner.Run(ctx)
}

// Migrate recreates the store and applies migrations without seeding.
func (p *Pipeline) Migrate(ctx context.Context) ([]types.MigrationRecord, error) {
	s, err := p.recreate(ctx)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	records, err := p.migrate(ctx, s)
	if err != nil {
		return nil, err
	}
	p.printf("Applied %d migrations\n", len(records))
	return records, nil
}

// Run executes the full seed. The store is recreated first, so a previous
// database at the same path never affects the result.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	g := p.cfg.Generate
	src := randsrc.New(p.cfg.Seed)
	result := &Result{Seed: src.Seed()}
	p.log.WithField("seed", result.Seed).Info("seeding")

	s, err := p.recreate(ctx)
	if err != nil {
		return nil, err
	}
	closed := false
	defer func() {
		if !closed {
			s.Close()
		}
	}()

	if result.Migrations, err = p.migrate(ctx, s); err != nil {
		return result, err
	}

	p.printf("\nCreating tags...\n")
	result.TagIDs, err = generate.CreateTags(ctx, s.DB, src.For("tags"), types.TagNames, g.Tags)
	if err != nil {
		return result, err
	}
	p.printf("  Created %d tags\n", len(result.TagIDs))

	p.printf("\nCreating feeds...\n")
	p.printf("  Creating %s feeds...\n", humanize.Comma(int64(g.Feeds)))
	result.Feeds, err = generate.CreateFeeds(ctx, s.DB, src.For("feeds"), generate.FeedOptions{
		Count:         g.Feeds,
		MaxTags:       g.MaxTagsPerFeed,
		LookbackDays:  g.LookbackDays,
		Now:           p.now(),
		ProgressEvery: g.FeedProgressEvery,
		Progress: func(done, total int) {
			p.printf("    Created %d/%d feeds\n", done, total)
		},
		Logger: p.log,
	}, result.TagIDs)
	if err != nil {
		return result, err
	}

	p.printf("\nCreating articles...\n")
	p.printf("  Creating %s articles...\n", humanize.Comma(int64(g.Articles)))
	loader := generate.NewArticleLoader(s.DB, fts.NewManager(s.DB, p.log), src.For("articles"), generate.ArticleOptions{
		Count:              g.Articles,
		BatchSize:          g.BatchSize,
		LookbackDays:       g.LookbackDays,
		ReadProbability:    g.ReadProbability,
		StarredProbability: g.StarredProbability,
		Now:                p.now(),
		Progress: func(done, total int) {
			p.printf("    Created %d/%d articles\n", done, total)
		},
		Stage: func(msg string) {
			p.printf("    %s\n", msg)
		},
	}, p.log)
	if result.Articles, err = loader.Load(ctx, result.Feeds.IDs); err != nil {
		return result, err
	}

	if result.Counts, err = stats.Collect(ctx, s.DB); err != nil {
		return result, err
	}
	p.printf("\nDatabase statistics:\n")
	if err := stats.Render(p.out, result.Counts); err != nil {
		return result, stresserrors.NewInternalError("failed to render statistics", err)
	}

	if p.cfg.VerifyAfterSeed {
		if result.Report, err = p.verify(ctx, s); err != nil {
			return result, err
		}
	}

	if err := s.Checkpoint(ctx); err != nil {
		return result, err
	}
	closed = true
	if err := s.Close(); err != nil {
		return result, stresserrors.NewStoreError(stresserrors.CodeStoreUnavailable, "failed to close database", err)
	}

	if p.cfg.Snapshot.Enabled {
		meta := &snapshot.Metadata{Seed: result.Seed, Counts: result.Counts}
		for _, rec := range result.Migrations {
			meta.Migrations = append(meta.Migrations, snapshot.MigrationInfo{
				Version:     rec.Version,
				Description: rec.Description,
				Checksum:    fmt.Sprintf("%x", rec.Checksum),
			})
		}
		if result.Snapshot, err = p.publish(ctx, meta); err != nil {
			return result, err
		}
	}

	result.Elapsed = time.Since(start)
	p.printf("\nStress test database created successfully at %s\n", p.cfg.DBPath)
	p.printf("To use it, set the DATABASE_URL environment variable:\n")
	p.printf("  export DATABASE_URL=%s\n", p.cfg.DatabaseURL())

	p.log.WithFields(logrus.Fields{
		"seed":    result.Seed,
		"elapsed": result.Elapsed,
	}).Info("seed complete")
	return result, nil
}

func (p *Pipeline) verify(ctx context.Context, s *store.Store) (*verify.Report, error) {
	p.printf("\nVerifying...\n")
	report, err := verify.Run(ctx, s.DB, p.MigrationSource(), p.Expectations())
	if err != nil {
		return nil, err
	}
	for _, c := range report.Checks {
		status := "ok"
		if !c.OK {
			status = "FAILED"
		}
		p.printf("  %-24s %-6s %s\n", c.Name, status, c.Detail)
	}
	if !report.Valid {
		return report, stresserrors.Newf(stresserrors.ErrCategoryInternal, stresserrors.CodeVerificationFailed,
			"%d verification checks failed", len(report.Failed()))
	}
	return report, nil
}

// Stats counts the rows of the existing store and prints them.
func (p *Pipeline) Stats(ctx context.Context) (*stats.Counts, error) {
	s, err := store.OpenExisting(ctx, p.cfg.DBPath, p.cfg.Driver)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	counts, err := stats.Collect(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	p.printf("Database statistics for %s:\n", p.cfg.DBPath)
	if err := stats.Render(p.out, counts); err != nil {
		return nil, stresserrors.NewInternalError("failed to render statistics", err)
	}
	return counts, nil
}

// Verify checks the existing store against the configured dataset.
func (p *Pipeline) Verify(ctx context.Context) (*verify.Report, error) {
	s, err := store.OpenExisting(ctx, p.cfg.DBPath, p.cfg.Driver)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return p.verify(ctx, s)
}

// Publish snapshots the existing store. seed is recorded in the sidecar.
func (p *Pipeline) Publish(ctx context.Context, seed int64) (*snapshot.Metadata, error) {
	s, err := store.OpenExisting(ctx, p.cfg.DBPath, p.cfg.Driver)
	if err != nil {
		return nil, err
	}
	meta, err := snapshot.Describe(ctx, s.DB, seed)
	if err == nil {
		err = s.Checkpoint(ctx)
	}
	if closeErr := s.Close(); err == nil && closeErr != nil {
		err = stresserrors.NewStoreError(stresserrors.CodeStoreUnavailable, "failed to close database", closeErr)
	}
	if err != nil {
		return nil, err
	}
	return p.publish(ctx, meta)
}

func (p *Pipeline) publish(ctx context.Context, meta *snapshot.Metadata) (*snapshot.Metadata, error) {
	sc := p.cfg.Snapshot
	backend, err := storage.New(ctx, sc.Storage)
	if err != nil {
		return nil, stresserrors.NewSnapshotError(stresserrors.CodeUploadFailed, "failed to open snapshot storage", err)
	}

	p.printf("\nPublishing snapshot %s...\n", snapshot.DataKey(sc.Prefix, sc.Name))
	published, err := snapshot.NewPublisher(backend, sc.Prefix, sc.Name, p.log).Publish(ctx, p.cfg.DBPath, meta)
	if err != nil {
		return nil, err
	}
	p.printf("  %s -> %s\n",
		humanize.Bytes(uint64(published.SourceSize)), humanize.Bytes(uint64(published.CompressedSize)))
	return published, nil
}
