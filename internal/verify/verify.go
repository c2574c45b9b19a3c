// Package verify checks a seeded store against the properties every run
// must satisfy: migration records match their files, counts match the
// configuration, associations are consistent and the FTS mirror is exact.
package verify

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"math"

	"github.com/fluxfeed/stressdb/internal/fts"
	"github.com/fluxfeed/stressdb/internal/migrate"
	"github.com/fluxfeed/stressdb/internal/store"
)

// MinSampleForRates is the article count below which flag rates are
// reported but never fail.
const MinSampleForRates = 1000

// Expectations describes the dataset the store should contain.
type Expectations struct {
	// CheckCounts compares table sizes with Tags, Feeds and Articles
	CheckCounts bool
	Tags        int64
	Feeds       int64
	Articles    int64

	MaxTagsPerFeed int

	ReadProbability    float64
	StarredProbability float64
}

// Check is the outcome of one property.
type Check struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// Report collects every check of a run.
type Report struct {
	Valid  bool    `json:"valid"`
	Checks []Check `json:"checks"`
}

func (r *Report) add(name string, ok bool, format string, args ...interface{}) {
	r.Checks = append(r.Checks, Check{Name: name, OK: ok, Detail: fmt.Sprintf(format, args...)})
	if !ok {
		r.Valid = false
	}
}

// Failed returns the checks that did not pass.
func (r *Report) Failed() []Check {
	var failed []Check
	for _, c := range r.Checks {
		if !c.OK {
			failed = append(failed, c)
		}
	}
	return failed
}

// Run checks db. migrationsFS is the set of files the store was migrated
// from. An error means the store could not be queried; property failures
// are reported in the Report.
func Run(ctx context.Context, db *sql.DB, migrationsFS fs.FS, expect Expectations) (*Report, error) {
	r := &Report{Valid: true}

	if err := checkMigrations(ctx, db, migrationsFS, r); err != nil {
		return nil, err
	}

	counts := map[string]int64{}
	for _, table := range []string{"tags", "feeds", "articles", "feed_tags", fts.Table} {
		n, err := store.CountRows(ctx, db, table)
		if err != nil {
			return nil, err
		}
		counts[table] = n
	}

	if expect.CheckCounts {
		for _, c := range []struct {
			table string
			want  int64
		}{
			{"tags", expect.Tags},
			{"feeds", expect.Feeds},
			{"articles", expect.Articles},
		} {
			r.add("count_"+c.table, counts[c.table] == c.want, "%d rows, expected %d", counts[c.table], c.want)
		}
	}

	zeroChecks := []struct {
		name  string
		query string
	}{
		{"feed_tags_integrity", `
			SELECT COUNT(*) FROM feed_tags ft
			LEFT JOIN feeds f ON f.id = ft.feed_id
			LEFT JOIN tags t ON t.id = ft.tag_id
			WHERE f.id IS NULL OR t.id IS NULL`},
		{"feed_tags_unique", `
			SELECT COUNT(*) FROM (
				SELECT feed_id, tag_id FROM feed_tags
				GROUP BY feed_id, tag_id HAVING COUNT(*) > 1)`},
		{"article_feed_integrity", `
			SELECT COUNT(*) FROM articles a
			LEFT JOIN feeds f ON f.id = a.feed_id
			WHERE f.id IS NULL`},
		{"article_timestamps", `
			SELECT COUNT(*) FROM articles
			WHERE created_at < published_at`},
		{"fts_content", `
			SELECT COUNT(*) FROM articles a
			LEFT JOIN articles_fts f ON f.rowid = a.id
			WHERE f.rowid IS NULL
			   OR f.article_id IS NOT a.id
			   OR f.title IS NOT a.title
			   OR f.content IS NOT a.content
			   OR f.summary IS NOT a.summary
			   OR f.author IS NOT a.author`},
	}
	for _, zc := range zeroChecks {
		var n int64
		if err := db.QueryRowContext(ctx, zc.query).Scan(&n); err != nil {
			return nil, fmt.Errorf("verify: %s: %w", zc.name, err)
		}
		r.add(zc.name, n == 0, "%d offending rows", n)
	}

	var maxTags int64
	if err := db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(n), 0) FROM (SELECT COUNT(*) AS n FROM feed_tags GROUP BY feed_id)`,
	).Scan(&maxTags); err != nil {
		return nil, fmt.Errorf("verify: feed tag cardinality: %w", err)
	}
	r.add("feed_tag_cardinality", maxTags <= int64(expect.MaxTagsPerFeed),
		"at most %d tags per feed, limit %d", maxTags, expect.MaxTagsPerFeed)

	r.add("fts_count", counts[fts.Table] == counts["articles"],
		"%d fts rows for %d articles", counts[fts.Table], counts["articles"])

	mode, err := fts.NewManager(db, nil).Mode(ctx)
	if err != nil {
		return nil, err
	}
	r.add("fts_mode", mode == fts.Maintained, "index is %s", mode)

	if err := checkRates(ctx, db, counts["articles"], expect, r); err != nil {
		return nil, err
	}

	return r, nil
}

func checkMigrations(ctx context.Context, db *sql.DB, source fs.FS, r *Report) error {
	files, err := migrate.Discover(source)
	if err != nil {
		return err
	}
	records, err := migrate.Applied(ctx, db)
	if err != nil {
		return err
	}

	if len(records) != len(files) {
		r.add("migration_records", false, "%d records for %d files", len(records), len(files))
		return nil
	}
	for i, f := range files {
		rec := records[i]
		switch {
		case rec.Version != f.Version:
			r.add("migration_records", false, "record %d has version %d, file has %d", i, rec.Version, f.Version)
			return nil
		case !bytes.Equal(rec.Checksum, f.Checksum):
			r.add("migration_records", false, "checksum mismatch for %s", f.Filename)
			return nil
		case !rec.Success:
			r.add("migration_records", false, "migration %d recorded as failed", rec.Version)
			return nil
		}
	}
	r.add("migration_records", true, "%d migrations recorded with matching checksums", len(files))
	return nil
}

func checkRates(ctx context.Context, db *sql.DB, articles int64, expect Expectations, r *Report) error {
	if articles == 0 {
		r.add("read_rate", true, "no articles")
		r.add("starred_rate", true, "no articles")
		return nil
	}

	var read, starred int64
	if err := db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(is_read), 0), COALESCE(SUM(is_starred), 0) FROM articles",
	).Scan(&read, &starred); err != nil {
		return fmt.Errorf("verify: flag rates: %w", err)
	}

	for _, c := range []struct {
		name string
		hits int64
		p    float64
	}{
		{"read_rate", read, expect.ReadProbability},
		{"starred_rate", starred, expect.StarredProbability},
	} {
		rate := float64(c.hits) / float64(articles)
		ok := articles < MinSampleForRates || math.Abs(rate-c.p) <= Tolerance(c.p, articles)
		r.add(c.name, ok, "%.4f observed, %.4f expected over %d articles", rate, c.p, articles)
	}
	return nil
}

// Tolerance is the accepted deviation of an observed Bernoulli rate: four
// standard deviations plus half a percent.
func Tolerance(p float64, n int64) float64 {
	return 4*math.Sqrt(p*(1-p)/float64(n)) + 0.005
}
