// Package store opens the SQLite file that the seeder writes into.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	stresserrors "github.com/fluxfeed/stressdb/internal/errors"
)

// pragmas are applied to every connection after open.
var pragmas = []string{
	"PRAGMA foreign_keys=ON",
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA cache_size=-64000",
}

// Store wraps the sql.DB of the seeded database.
type Store struct {
	*sql.DB
	path   string
	driver string
}

// Recreate removes the database file and its WAL companions so the next
// Open starts from an empty store.
func Recreate(path string) error {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return stresserrors.NewStoreError(stresserrors.CodeStoreUnavailable,
				fmt.Sprintf("failed to remove %s", p), err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return stresserrors.NewStoreError(stresserrors.CodeStoreUnavailable,
			"failed to create database directory", err)
	}
	return nil
}

// Open opens path with the named database/sql driver ("sqlite" or "sqlite3").
func Open(ctx context.Context, path, driver string) (*Store, error) {
	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, stresserrors.NewStoreError(stresserrors.CodeStoreUnavailable,
			fmt.Sprintf("failed to open %s with driver %s", path, driver), err)
	}

	// Single writer, single reader for the whole run.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, stresserrors.NewStoreError(stresserrors.CodeStoreUnavailable,
				fmt.Sprintf("failed to apply %q", p), err)
		}
	}

	return &Store{DB: db, path: path, driver: driver}, nil
}

// OpenExisting opens a store that must already exist on disk.
func OpenExisting(ctx context.Context, path, driver string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, stresserrors.NewStoreError(stresserrors.CodeStoreUnavailable,
			fmt.Sprintf("database %s not found", path), err)
	}
	return Open(ctx, path, driver)
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Driver returns the database/sql driver name.
func (s *Store) Driver() string {
	return s.driver
}

// HasFTS5 reports whether the linked SQLite build includes FTS5.
func (s *Store) HasFTS5(ctx context.Context) (bool, error) {
	var enabled bool
	err := s.QueryRowContext(ctx,
		"SELECT COUNT(*) > 0 FROM pragma_compile_options WHERE compile_options = 'ENABLE_FTS5'").Scan(&enabled)
	if err != nil {
		return false, stresserrors.NewStoreError(stresserrors.CodeStoreUnavailable,
			"failed to read compile options", err)
	}
	return enabled, nil
}

// Checkpoint folds the WAL back into the main file so it can be copied alone.
func (s *Store) Checkpoint(ctx context.Context) error {
	if _, err := s.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return stresserrors.NewStoreError(stresserrors.CodeStoreUnavailable,
			"wal checkpoint failed", err)
	}
	return nil
}

// Count returns SELECT COUNT(*) FROM table.
func (s *Store) Count(ctx context.Context, table string) (int64, error) {
	return CountRows(ctx, s.DB, table)
}

// Queryer is the read side of *sql.DB and *sql.Tx.
type Queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// CountRows returns SELECT COUNT(*) FROM table on q. table must be a
// trusted identifier.
func CountRows(ctx context.Context, q Queryer, table string) (int64, error) {
	var n int64
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, stresserrors.NewStoreError(stresserrors.CodeStoreUnavailable,
			fmt.Sprintf("failed to count %s", table), err)
	}
	return n, nil
}
