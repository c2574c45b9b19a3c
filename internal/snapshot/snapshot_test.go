package snapshot

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stresserrors "github.com/fluxfeed/stressdb/internal/errors"
	"github.com/fluxfeed/stressdb/internal/generate"
	"github.com/fluxfeed/stressdb/internal/migrate"
	"github.com/fluxfeed/stressdb/internal/randsrc"
	"github.com/fluxfeed/stressdb/internal/storage"
	"github.com/fluxfeed/stressdb/internal/store"
	"github.com/fluxfeed/stressdb/migrations"
	"github.com/fluxfeed/stressdb/pkg/types"
)

// seededDB builds a small migrated database with a few tags and returns its
// path and sidecar metadata. The database is closed on return.
func seededDB(t *testing.T) (string, *Metadata) {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "seed.db")

	s, err := store.Open(ctx, path, "sqlite")
	require.NoError(t, err)
	defer s.Close()

	_, err = migrate.NewRunner(s.DB, migrations.FS, nil).Run(ctx)
	require.NoError(t, err)
	_, err = generate.CreateTags(ctx, s.DB, randsrc.New(7).For("tags"), types.TagNames, 5)
	require.NoError(t, err)

	meta, err := Describe(ctx, s.DB, 7)
	require.NoError(t, err)
	require.NoError(t, s.Checkpoint(ctx))
	return path, meta
}

func TestDescribe(t *testing.T) {
	_, meta := seededDB(t)

	assert.Equal(t, int64(7), meta.Seed)
	assert.Equal(t, int64(5), meta.Counts.Tags)

	files, err := migrate.Discover(migrations.FS)
	require.NoError(t, err)
	require.Len(t, meta.Migrations, len(files))
	for i, f := range files {
		assert.Equal(t, f.Version, meta.Migrations[i].Version)
		assert.Equal(t, hex.EncodeToString(f.Checksum), meta.Migrations[i].Checksum)
	}
}

func TestPublishAndFetch(t *testing.T) {
	ctx := context.Background()
	dbPath, meta := seededDB(t)

	backend, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	published, err := NewPublisher(backend, "nightly", "stress", nil).Publish(ctx, dbPath, meta)
	require.NoError(t, err)
	assert.Equal(t, "nightly/stress.sqlite.sz", published.DataKey)
	assert.Equal(t, "stress", published.Name)
	assert.False(t, published.CreatedAt.IsZero())

	info, err := os.Stat(dbPath)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), published.SourceSize)
	assert.Greater(t, published.CompressedSize, int64(0))

	objects, err := backend.ListObjects(ctx, "nightly")
	require.NoError(t, err)
	assert.Equal(t, []string{"nightly/stress.meta.json", "nightly/stress.sqlite.sz"}, objects)

	dest := filepath.Join(t.TempDir(), "restored", "stress.db")
	fetched, err := Fetch(ctx, backend, "nightly", "stress", dest)
	require.NoError(t, err)
	assert.Equal(t, published.SourceSHA256, fetched.SourceSHA256)
	assert.Equal(t, int64(5), fetched.Counts.Tags)

	original, err := os.ReadFile(dbPath)
	require.NoError(t, err)
	restored, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, original, restored)

	s, err := store.OpenExisting(ctx, dest, "sqlite")
	require.NoError(t, err)
	defer s.Close()
	n, err := s.Count(ctx, "tags")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestFetch_Missing(t *testing.T) {
	backend, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = Fetch(context.Background(), backend, "", "absent", filepath.Join(t.TempDir(), "x.db"))
	assert.Equal(t, stresserrors.CodeObjectNotFound, stresserrors.GetCode(err))
}

func TestFetch_CorruptData(t *testing.T) {
	ctx := context.Background()
	dbPath, meta := seededDB(t)

	backend, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	_, err = NewPublisher(backend, "", "stress", nil).Publish(ctx, dbPath, meta)
	require.NoError(t, err)

	// Replace the data object with a valid snappy stream of other bytes.
	other := filepath.Join(t.TempDir(), "other.db")
	require.NoError(t, os.WriteFile(other, []byte("not the seeded database"), 0644))
	_, _, _, err = compressFile(other, filepath.Join(backend.BasePath(), "stress.sqlite.sz"))
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "restored.db")
	_, err = Fetch(ctx, backend, "", "stress", dest)
	assert.Equal(t, stresserrors.CodeDownloadFailed, stresserrors.GetCode(err))
	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}
