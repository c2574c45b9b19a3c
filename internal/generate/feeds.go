package generate

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	stresserrors "github.com/fluxfeed/stressdb/internal/errors"
	"github.com/fluxfeed/stressdb/internal/logging"
	"github.com/fluxfeed/stressdb/internal/lorem"
	"github.com/fluxfeed/stressdb/internal/randsrc"
	"github.com/fluxfeed/stressdb/pkg/types"
)

const insertFeedSQL = `
INSERT INTO feeds (url, title, description, site_url, color, fetch_frequency, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

const insertFeedTagSQL = `INSERT OR IGNORE INTO feed_tags (feed_id, tag_id) VALUES (?, ?)`

// FeedOptions configures CreateFeeds.
type FeedOptions struct {
	Count        int
	MaxTags      int
	LookbackDays int

	// Now anchors generated timestamps; zero means time.Now
	Now time.Time

	// ProgressEvery calls Progress after every N feeds (0 disables)
	ProgressEvery int
	Progress      func(done, total int)

	Logger logrus.FieldLogger
}

// FeedResult reports what CreateFeeds wrote.
type FeedResult struct {
	IDs []int64

	// TagLinks is the number of feed_tags rows inserted
	TagLinks int

	// IgnoredLinks counts associations skipped because the pair existed
	IgnoredLinks int
}

// FeedURL returns the non-resolvable feed URL for sequence number i.
func FeedURL(i int) string {
	return fmt.Sprintf("https://invalid-feed-%d.example.invalid/rss.xml", i)
}

// FeedSiteURL returns the site URL for sequence number i.
func FeedSiteURL(i int) string {
	return fmt.Sprintf("https://invalid-feed-%d.example.invalid", i)
}

// NewFeed builds feed number seq (1-based) without storing it.
func NewFeed(rng *rand.Rand, text *lorem.Generator, seq, lookbackDays int, now time.Time) types.Feed {
	created := now.AddDate(0, 0, -randsrc.IntRange(rng, 0, lookbackDays))
	return types.Feed{
		URL:            FeedURL(seq),
		Title:          fmt.Sprintf("Feed #%d: %s", seq, text.TitleWords(3)),
		Description:    text.Sentence(),
		SiteURL:        FeedSiteURL(seq),
		Color:          types.Palette[rng.Intn(len(types.Palette))],
		FetchFrequency: types.FetchFrequencies[rng.Intn(len(types.FetchFrequencies))],
		CreatedAt:      created,
		UpdatedAt:      created,
	}
}

// CreateFeeds inserts opts.Count feeds and links each to 0..MaxTags
// distinct tags drawn from tagIDs. A pair that already exists is skipped
// and counted, never treated as a failure. Everything commits in one
// transaction.
func CreateFeeds(ctx context.Context, db *sql.DB, rng *rand.Rand, opts FeedOptions, tagIDs []int64) (*FeedResult, error) {
	if opts.Count < 0 {
		return nil, stresserrors.NewGenerateError(stresserrors.CodeInvalidCount,
			fmt.Sprintf("feed count must not be negative, got %d", opts.Count), nil)
	}
	log := logging.Component(opts.Logger, "feeds")
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	text := lorem.New(rng)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, stresserrors.NewStoreError(stresserrors.CodeStoreUnavailable, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	feedStmt, err := tx.PrepareContext(ctx, insertFeedSQL)
	if err != nil {
		return nil, stresserrors.NewGenerateError(stresserrors.CodeInsertFailed, "failed to prepare feed insert", err)
	}
	defer feedStmt.Close()

	linkStmt, err := tx.PrepareContext(ctx, insertFeedTagSQL)
	if err != nil {
		return nil, stresserrors.NewGenerateError(stresserrors.CodeInsertFailed, "failed to prepare feed tag insert", err)
	}
	defer linkStmt.Close()

	result := &FeedResult{IDs: make([]int64, 0, opts.Count)}
	for i := 1; i <= opts.Count; i++ {
		feed := NewFeed(rng, text, i, opts.LookbackDays, now)
		res, err := feedStmt.ExecContext(ctx,
			feed.URL, feed.Title, feed.Description, feed.SiteURL, feed.Color,
			string(feed.FetchFrequency), types.FormatTime(feed.CreatedAt), types.FormatTime(feed.UpdatedAt))
		if err != nil {
			return nil, stresserrors.NewGenerateError(stresserrors.CodeInsertFailed,
				fmt.Sprintf("failed to insert feed %d", i), err)
		}
		feedID, err := res.LastInsertId()
		if err != nil {
			return nil, stresserrors.NewGenerateError(stresserrors.CodeInsertFailed, "failed to read feed id", err)
		}
		result.IDs = append(result.IDs, feedID)

		k := randsrc.IntRange(rng, 0, opts.MaxTags)
		for _, tagID := range randsrc.Sample(rng, tagIDs, k) {
			res, err := linkStmt.ExecContext(ctx, feedID, tagID)
			if err != nil {
				return nil, stresserrors.NewGenerateError(stresserrors.CodeInsertFailed,
					fmt.Sprintf("failed to link feed %d to tag %d", feedID, tagID), err)
			}
			if n, err := res.RowsAffected(); err == nil && n == 0 {
				result.IgnoredLinks++
				log.WithFields(logrus.Fields{"feed_id": feedID, "tag_id": tagID}).
					Debug("duplicate feed tag ignored")
				continue
			}
			result.TagLinks++
		}

		if opts.Progress != nil && opts.ProgressEvery > 0 && i%opts.ProgressEvery == 0 {
			opts.Progress(i, opts.Count)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, stresserrors.NewStoreError(stresserrors.CodeStoreUnavailable, "failed to commit feeds", err)
	}

	log.WithFields(logrus.Fields{
		"feeds":   len(result.IDs),
		"links":   result.TagLinks,
		"ignored": result.IgnoredLinks,
	}).Info("feeds created")
	return result, nil
}
