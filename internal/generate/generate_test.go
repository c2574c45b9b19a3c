package generate

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fluxfeed/stressdb/internal/migrate"
	"github.com/fluxfeed/stressdb/internal/randsrc"
	"github.com/fluxfeed/stressdb/internal/store"
	"github.com/fluxfeed/stressdb/migrations"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(ctx, filepath.Join(t.TempDir(), "generate.db"), "sqlite")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = migrate.NewRunner(s.DB, migrations.FS, nil).Run(ctx)
	require.NoError(t, err)
	return s.DB
}

func count(t *testing.T, db *sql.DB, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.QueryRow(query, args...).Scan(&n))
	return n
}

func testSource() *randsrc.Source {
	return randsrc.New(20260102)
}
