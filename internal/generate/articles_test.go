package generate

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stresserrors "github.com/fluxfeed/stressdb/internal/errors"
	"github.com/fluxfeed/stressdb/internal/fts"
	"github.com/fluxfeed/stressdb/internal/randsrc"
	"github.com/fluxfeed/stressdb/pkg/types"
)

func TestBuildInsertSQL(t *testing.T) {
	q := buildInsertSQL(2)
	assert.True(t, strings.HasPrefix(q, "INSERT INTO articles (feed_id, guid, title, url, content, summary, author, published_at, is_read, is_starred, created_at, updated_at) VALUES "))
	assert.Equal(t, 24, strings.Count(q, "?"))
	assert.Equal(t, 2, strings.Count(q, "("+strings.Repeat("?, ", 11)+"?)"))
}

func TestArticleLoader_Load(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	src := testSource()

	tagIDs, err := CreateTags(ctx, db, src.For("tags"), types.TagNames, 5)
	require.NoError(t, err)
	feeds, err := CreateFeeds(ctx, db, src.For("feeds"), FeedOptions{Count: 20, MaxTags: 5, LookbackDays: 365}, tagIDs)
	require.NoError(t, err)

	var progress []int
	var stages []string
	loader := NewArticleLoader(db, fts.NewManager(db, nil), src.For("articles"), ArticleOptions{
		Count:              2500,
		BatchSize:          1000,
		LookbackDays:       365,
		ReadProbability:    0.3,
		StarredProbability: 0.05,
		Progress:           func(done, total int) { progress = append(progress, done) },
		Stage:              func(msg string) { stages = append(stages, msg) },
	}, nil)

	result, err := loader.Load(ctx, feeds.IDs)
	require.NoError(t, err)

	assert.Equal(t, 2500, result.Articles)
	assert.Equal(t, 3, result.Batches)
	assert.Equal(t, int64(2500), result.Indexed)
	assert.Equal(t, []int{1000, 2000, 2500}, progress)
	assert.Len(t, stages, 3)

	assert.Equal(t, int64(2500), count(t, db, "SELECT COUNT(*) FROM articles"))
	assert.Equal(t, int64(2500), count(t, db, "SELECT COUNT(*) FROM articles_fts"))
	assert.Equal(t, int64(result.Read), count(t, db, "SELECT COUNT(*) FROM articles WHERE is_read = 1"))
	assert.Equal(t, int64(result.Starred), count(t, db, "SELECT COUNT(*) FROM articles WHERE is_starred = 1"))

	assert.Zero(t, count(t, db, "SELECT COUNT(*) FROM articles WHERE created_at < published_at"))
	assert.Zero(t, count(t, db, "SELECT COUNT(*) FROM articles WHERE created_at != updated_at"))
	assert.Zero(t, count(t, db, "SELECT COUNT(*) FROM articles a LEFT JOIN feeds f ON f.id = a.feed_id WHERE f.id IS NULL"))
	assert.Zero(t, count(t, db, "SELECT COUNT(*) FROM articles WHERE url != 'https://example.invalid/article/' || guid"))
	assert.Equal(t, int64(2500), count(t, db, "SELECT COUNT(DISTINCT guid) FROM articles"))

	readRate := float64(result.Read) / 2500
	assert.InDelta(t, 0.3, readRate, 0.05)

	mode, err := fts.NewManager(db, nil).Mode(ctx)
	require.NoError(t, err)
	assert.Equal(t, fts.Maintained, mode)
}

func TestArticleLoader_NoFeeds(t *testing.T) {
	db := setupDB(t)
	loader := NewArticleLoader(db, fts.NewManager(db, nil), testSource().For("articles"),
		ArticleOptions{Count: 10, BatchSize: 5, LookbackDays: 1}, nil)

	_, err := loader.Load(context.Background(), nil)
	assert.Equal(t, stresserrors.CodeNoFeeds, stresserrors.GetCode(err))
}

func TestArticleLoader_ZeroArticles(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	loader := NewArticleLoader(db, fts.NewManager(db, nil), testSource().For("articles"),
		ArticleOptions{Count: 0, BatchSize: 5, LookbackDays: 1}, nil)

	result, err := loader.Load(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, result.Articles)
	assert.Zero(t, result.Batches)

	mode, err := fts.NewManager(db, nil).Mode(ctx)
	require.NoError(t, err)
	assert.Equal(t, fts.Maintained, mode)
}

func TestNewArticle_Deterministic(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	opts := ArticleOptions{LookbackDays: 365, ReadProbability: 0.3, StarredProbability: 0.05}
	feeds := []int64{1, 2, 3}

	a := NewArticleLoader(nil, nil, randsrc.New(5).For("articles"), opts, nil)
	b := NewArticleLoader(nil, nil, randsrc.New(5).For("articles"), opts, nil)
	for i := 1; i <= 20; i++ {
		x, err := a.NewArticle(i, feeds, now)
		require.NoError(t, err)
		y, err := b.NewArticle(i, feeds, now)
		require.NoError(t, err)
		assert.Equal(t, x, y)
	}
}

func TestProperty_ArticleInvariants(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	feeds := []int64{10, 20, 30}

	properties.Property("generated articles respect timestamp and shape invariants", prop.ForAll(
		func(seed int64, seq int) bool {
			loader := NewArticleLoader(nil, nil, randsrc.New(seed).For("articles"),
				ArticleOptions{LookbackDays: 365, ReadProbability: 0.3, StarredProbability: 0.05}, nil)
			a, err := loader.NewArticle(seq, feeds, now)
			if err != nil {
				return false
			}

			lag := a.CreatedAt.Sub(a.PublishedAt)
			if lag < time.Minute || lag > 60*time.Minute || !a.UpdatedAt.Equal(a.CreatedAt) {
				return false
			}
			oldest := now.AddDate(0, 0, -365).Add(-23*time.Hour - 59*time.Minute)
			if a.PublishedAt.After(now) || a.PublishedAt.Before(oldest) {
				return false
			}
			if types.FormatTime(a.CreatedAt) < types.FormatTime(a.PublishedAt) {
				return false
			}

			parsed, err := uuid.Parse(a.GUID)
			if err != nil || parsed.Version() != 4 {
				return false
			}
			if a.URL != "https://example.invalid/article/"+a.GUID {
				return false
			}
			words := len(strings.Fields(a.Title)) - 2 // "Article", "#n:"
			if words < 4 || words > 10 {
				return false
			}
			paragraphs := strings.Count(a.Content, "<p>")
			if paragraphs < 2 || paragraphs > 6 {
				return false
			}
			if len(strings.Fields(a.Author)) != 2 {
				return false
			}
			return a.FeedID == 10 || a.FeedID == 20 || a.FeedID == 30
		},
		gen.Int64Range(1, 1<<40),
		gen.IntRange(1, 100000),
	))

	properties.TestingRun(t)
}
