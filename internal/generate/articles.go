package generate

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	stresserrors "github.com/fluxfeed/stressdb/internal/errors"
	"github.com/fluxfeed/stressdb/internal/fts"
	"github.com/fluxfeed/stressdb/internal/logging"
	"github.com/fluxfeed/stressdb/internal/lorem"
	"github.com/fluxfeed/stressdb/internal/randsrc"
	"github.com/fluxfeed/stressdb/pkg/types"
)

// ArticleOptions configures an ArticleLoader.
type ArticleOptions struct {
	Count              int
	BatchSize          int
	LookbackDays       int
	ReadProbability    float64
	StarredProbability float64

	// Now anchors generated timestamps; zero means time.Now
	Now time.Time

	// Progress is called after each committed batch
	Progress func(done, total int)

	// Stage is called with a short description before the FTS phases
	Stage func(msg string)
}

// LoadResult reports what a Load wrote.
type LoadResult struct {
	Articles int
	Batches  int
	Read     int
	Starred  int

	// Indexed is the number of rows placed in the FTS mirror
	Indexed int64
}

// ArticleLoader bulk-inserts articles with the FTS mirror suspended.
type ArticleLoader struct {
	db    *sql.DB
	index *fts.Manager
	rng   *rand.Rand
	text  *lorem.Generator
	opts  ArticleOptions
	log   logrus.FieldLogger

	// insert statements keyed by row count
	queries map[int]string
}

// NewArticleLoader creates a loader writing to db.
func NewArticleLoader(db *sql.DB, index *fts.Manager, rng *rand.Rand, opts ArticleOptions, logger logrus.FieldLogger) *ArticleLoader {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	return &ArticleLoader{
		db:      db,
		index:   index,
		rng:     rng,
		text:    lorem.New(rng),
		opts:    opts,
		log:     logging.Component(logger, "articles"),
		queries: make(map[int]string),
	}
}

// NewArticle builds article number seq (1-based) for a random feed.
func (l *ArticleLoader) NewArticle(seq int, feedIDs []int64, now time.Time) (types.Article, error) {
	rng := l.rng
	id, err := uuid.NewRandomFromReader(rng)
	if err != nil {
		return types.Article{}, stresserrors.NewGenerateError(stresserrors.CodeInsertFailed, "failed to generate guid", err)
	}
	guid := id.String()

	published := now.
		AddDate(0, 0, -randsrc.IntRange(rng, 0, l.opts.LookbackDays)).
		Add(-time.Duration(randsrc.IntRange(rng, 0, 23)) * time.Hour).
		Add(-time.Duration(randsrc.IntRange(rng, 0, 59)) * time.Minute)
	created := published.Add(time.Duration(randsrc.IntRange(rng, 1, 60)) * time.Minute)

	return types.Article{
		FeedID:      feedIDs[rng.Intn(len(feedIDs))],
		GUID:        guid,
		Title:       fmt.Sprintf("Article #%d: %s", seq, l.text.TitleWords(randsrc.IntRange(rng, 4, 10))),
		URL:         "https://example.invalid/article/" + guid,
		Content:     l.text.HTMLParagraphs(randsrc.IntRange(rng, 2, 6)),
		Summary:     l.text.Paragraph(),
		Author:      l.text.TitleWords(2),
		PublishedAt: published,
		IsRead:      randsrc.Bernoulli(rng, l.opts.ReadProbability),
		IsStarred:   randsrc.Bernoulli(rng, l.opts.StarredProbability),
		CreatedAt:   created,
		UpdatedAt:   created,
	}, nil
}

// Load suspends the FTS mirror, inserts opts.Count articles spread over
// feedIDs in batches of opts.BatchSize, then rebuilds the mirror. Each
// batch commits on its own; a failure leaves committed batches in place.
func (l *ArticleLoader) Load(ctx context.Context, feedIDs []int64) (*LoadResult, error) {
	total := l.opts.Count
	if total < 0 {
		return nil, stresserrors.NewGenerateError(stresserrors.CodeInvalidCount,
			fmt.Sprintf("article count must not be negative, got %d", total), nil)
	}
	if total > 0 && len(feedIDs) == 0 {
		return nil, stresserrors.NewGenerateError(stresserrors.CodeNoFeeds,
			"articles need at least one feed", nil)
	}

	now := l.opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	l.stage("Disabling FTS triggers...")
	if err := l.index.Suspend(ctx); err != nil {
		return nil, err
	}

	result := &LoadResult{}
	batch := make([]types.Article, 0, l.opts.BatchSize)
	for i := 1; i <= total; i++ {
		a, err := l.NewArticle(i, feedIDs, now)
		if err != nil {
			return result, err
		}
		if a.IsRead {
			result.Read++
		}
		if a.IsStarred {
			result.Starred++
		}
		batch = append(batch, a)

		if len(batch) == l.opts.BatchSize {
			if err := l.flush(ctx, batch); err != nil {
				return result, err
			}
			result.Articles += len(batch)
			result.Batches++
			batch = batch[:0]
			if l.opts.Progress != nil {
				l.opts.Progress(i, total)
			}
		}
	}
	if len(batch) > 0 {
		if err := l.flush(ctx, batch); err != nil {
			return result, err
		}
		result.Articles += len(batch)
		result.Batches++
		if l.opts.Progress != nil {
			l.opts.Progress(total, total)
		}
	}

	l.stage("Populating FTS index...")
	indexed, err := l.index.Rebuild(ctx)
	if err != nil {
		return result, err
	}
	result.Indexed = indexed
	l.stage("Recreated FTS triggers")

	l.log.WithFields(logrus.Fields{
		"articles": result.Articles,
		"batches":  result.Batches,
		"read":     result.Read,
		"starred":  result.Starred,
		"indexed":  result.Indexed,
	}).Info("articles loaded")
	return result, nil
}

func (l *ArticleLoader) stage(msg string) {
	if l.opts.Stage != nil {
		l.opts.Stage(msg)
	}
}

// flush writes batch as one multi-row INSERT in its own transaction.
func (l *ArticleLoader) flush(ctx context.Context, batch []types.Article) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return stresserrors.NewStoreError(stresserrors.CodeStoreUnavailable, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	args := make([]interface{}, 0, len(batch)*len(types.ArticleColumns))
	for i := range batch {
		args = append(args, batch[i].Values()...)
	}

	if _, err := tx.ExecContext(ctx, l.insertSQL(len(batch)), args...); err != nil {
		return stresserrors.NewGenerateError(stresserrors.CodeInsertFailed,
			fmt.Sprintf("failed to insert batch of %d articles", len(batch)), err)
	}

	if err := tx.Commit(); err != nil {
		return stresserrors.NewStoreError(stresserrors.CodeStoreUnavailable, "failed to commit article batch", err)
	}
	return nil
}

func (l *ArticleLoader) insertSQL(rows int) string {
	if q, ok := l.queries[rows]; ok {
		return q
	}
	q := buildInsertSQL(rows)
	l.queries[rows] = q
	return q
}

func buildInsertSQL(rows int) string {
	cols := len(types.ArticleColumns)
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", cols), ", ") + ")"

	var b strings.Builder
	b.WriteString("INSERT INTO articles (")
	b.WriteString(strings.Join(types.ArticleColumns, ", "))
	b.WriteString(") VALUES ")
	for i := 0; i < rows; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(tuple)
	}
	return b.String()
}
