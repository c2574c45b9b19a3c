package stats

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stresserrors "github.com/fluxfeed/stressdb/internal/errors"
	"github.com/fluxfeed/stressdb/internal/migrate"
	"github.com/fluxfeed/stressdb/internal/store"
	"github.com/fluxfeed/stressdb/migrations"
)

func TestCollect(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(ctx, filepath.Join(t.TempDir(), "stats.db"), "sqlite")
	require.NoError(t, err)
	defer s.Close()

	records, err := migrate.NewRunner(s.DB, migrations.FS, nil).Run(ctx)
	require.NoError(t, err)

	for _, q := range []string{
		"INSERT INTO feeds (id, url, title) VALUES (1, 'https://a.invalid', 'a'), (2, 'https://b.invalid', 'b')",
		"INSERT INTO tags (id, name, color) VALUES (1, 'tech', '#3B82F6')",
		"INSERT INTO feed_tags (feed_id, tag_id) VALUES (1, 1)",
		"INSERT INTO articles (feed_id, guid, title) VALUES (1, 'g1', 't1'), (2, 'g2', 't2'), (2, 'g3', 't3')",
	} {
		_, err := s.ExecContext(ctx, q)
		require.NoError(t, err)
	}

	before, err := Collect(ctx, s.DB)
	require.NoError(t, err)
	assert.Equal(t, &Counts{
		Feeds:      2,
		Articles:   3,
		Tags:       1,
		FeedTags:   1,
		FTSEntries: 3,
		Migrations: int64(len(records)),
	}, before)

	// Read-only: a second pass sees the same numbers.
	after, err := Collect(ctx, s.DB)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestCollect_StoreUnavailable(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(ctx, filepath.Join(t.TempDir(), "empty.db"), "sqlite")
	require.NoError(t, err)
	defer s.Close()

	_, err = Collect(ctx, s.DB)
	assert.Equal(t, stresserrors.CodeStoreUnavailable, stresserrors.GetCode(err))
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, &Counts{Feeds: 1000, Articles: 100000, Tags: 50, FeedTags: 2503, FTSEntries: 100000, Migrations: 6})
	require.NoError(t, err)

	out := buf.String()
	for _, want := range []string{"Feeds", "1,000", "100,000", "Feed-tag associations", "2,503", "FTS entries"} {
		assert.True(t, strings.Contains(out, want), "output missing %q:\n%s", want, out)
	}
}
