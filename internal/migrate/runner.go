package migrate

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	stresserrors "github.com/fluxfeed/stressdb/internal/errors"
	"github.com/fluxfeed/stressdb/internal/logging"
	"github.com/fluxfeed/stressdb/pkg/types"
)

// TrackingTable is the sqlx migration bookkeeping table.
const TrackingTable = "_sqlx_migrations"

const createTrackingTableSQL = `
CREATE TABLE IF NOT EXISTS _sqlx_migrations (
    version BIGINT PRIMARY KEY,
    description TEXT NOT NULL,
    installed_on TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    success BOOLEAN NOT NULL,
    checksum BLOB NOT NULL,
    execution_time BIGINT NOT NULL
)`

const insertRecordSQL = `
INSERT INTO _sqlx_migrations (version, description, success, checksum, execution_time)
VALUES (?, ?, 1, ?, ?)`

// Runner applies migrations from a filesystem to a database.
type Runner struct {
	db      *sql.DB
	source  fs.FS
	log     logrus.FieldLogger
	onApply func(Migration)
}

// NewRunner creates a runner reading *.sql files from source.
func NewRunner(db *sql.DB, source fs.FS, logger logrus.FieldLogger) *Runner {
	return &Runner{
		db:     db,
		source: source,
		log:    logging.Component(logger, "migrate"),
	}
}

// OnApply registers a callback invoked before each migration executes.
func (r *Runner) OnApply(fn func(Migration)) {
	r.onApply = fn
}

// Discover lists the runner's migrations in version order.
func (r *Runner) Discover() ([]Migration, error) {
	return Discover(r.source)
}

// EnsureTrackingTable creates _sqlx_migrations if it does not exist.
func (r *Runner) EnsureTrackingTable(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createTrackingTableSQL); err != nil {
		return stresserrors.NewStoreError(stresserrors.CodeStoreUnavailable,
			"failed to create migration tracking table", err)
	}
	return nil
}

// Run applies every migration not yet recorded, in version order, and
// returns the records it wrote. Each migration and its tracking row commit
// together; a failure stops the run and leaves earlier migrations applied.
func (r *Runner) Run(ctx context.Context) ([]types.MigrationRecord, error) {
	migrations, err := r.Discover()
	if err != nil {
		return nil, err
	}

	if err := r.EnsureTrackingTable(ctx); err != nil {
		return nil, err
	}

	applied, err := r.Applied(ctx)
	if err != nil {
		return nil, err
	}
	done := make(map[int64][]byte, len(applied))
	for _, rec := range applied {
		done[rec.Version] = rec.Checksum
	}

	var records []types.MigrationRecord
	for _, m := range migrations {
		if sum, ok := done[m.Version]; ok {
			if !bytes.Equal(sum, m.Checksum) {
				return records, stresserrors.Newf(stresserrors.ErrCategoryMigration,
					stresserrors.CodeChecksumMismatch,
					"migration %d was applied with a different checksum", m.Version)
			}
			r.log.WithField("version", m.Version).Debug("migration already applied")
			continue
		}

		if r.onApply != nil {
			r.onApply(m)
		}

		rec, err := r.apply(ctx, m)
		if err != nil {
			return records, err
		}
		records = append(records, rec)

		r.log.WithFields(logrus.Fields{
			"version":  m.Version,
			"file":     m.Filename,
			"duration": time.Duration(rec.ExecutionTime),
		}).Info("migration applied")
	}

	return records, nil
}

func (r *Runner) apply(ctx context.Context, m Migration) (types.MigrationRecord, error) {
	fail := func(err error) (types.MigrationRecord, error) {
		return types.MigrationRecord{}, stresserrors.NewMigrationError(
			stresserrors.CodeMigrationExecutionFailed,
			fmt.Sprintf("migration %d (%s) failed", m.Version, m.Filename), err,
		).WithDetails(map[string]interface{}{"version": m.Version, "file": m.Filename})
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fail(err)
	}
	defer tx.Rollback()

	start := time.Now()
	if strings.TrimSpace(string(m.SQL)) != "" {
		if _, err := tx.ExecContext(ctx, string(m.SQL)); err != nil {
			return fail(err)
		}
	}
	elapsed := time.Since(start).Nanoseconds()

	if _, err := tx.ExecContext(ctx, insertRecordSQL, m.Version, m.Description, m.Checksum, elapsed); err != nil {
		return fail(err)
	}

	if err := tx.Commit(); err != nil {
		return fail(err)
	}

	return types.MigrationRecord{
		Version:       m.Version,
		Description:   m.Description,
		InstalledOn:   time.Now().UTC(),
		Success:       true,
		Checksum:      m.Checksum,
		ExecutionTime: elapsed,
	}, nil
}

// Applied reads the tracking table in version order. A missing table
// yields no records.
func (r *Runner) Applied(ctx context.Context) ([]types.MigrationRecord, error) {
	return Applied(ctx, r.db)
}

// Applied reads the tracking table of db in version order.
func Applied(ctx context.Context, db *sql.DB) ([]types.MigrationRecord, error) {
	var exists int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", TrackingTable,
	).Scan(&exists)
	if err != nil {
		return nil, stresserrors.NewStoreError(stresserrors.CodeStoreUnavailable,
			"failed to inspect schema", err)
	}
	if exists == 0 {
		return nil, nil
	}

	rows, err := db.QueryContext(ctx, `
		SELECT version, description, installed_on, success, checksum, execution_time
		FROM _sqlx_migrations ORDER BY version`)
	if err != nil {
		return nil, stresserrors.NewStoreError(stresserrors.CodeStoreUnavailable,
			"failed to read migration records", err)
	}
	defer rows.Close()

	var records []types.MigrationRecord
	for rows.Next() {
		var rec types.MigrationRecord
		var installed timestamp
		if err := rows.Scan(&rec.Version, &rec.Description, &installed, &rec.Success, &rec.Checksum, &rec.ExecutionTime); err != nil {
			return nil, stresserrors.NewStoreError(stresserrors.CodeStoreUnavailable,
				"failed to scan migration record", err)
		}
		rec.InstalledOn = installed.Time
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, stresserrors.NewStoreError(stresserrors.CodeStoreUnavailable,
			"failed to read migration records", err)
	}
	return records, nil
}

// timestamp scans installed_on whether the driver hands back a time.Time
// or the raw CURRENT_TIMESTAMP text.
type timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z",
}

func (t *timestamp) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	default:
		return fmt.Errorf("migrate: cannot scan %T into timestamp", src)
	}
}

func (t *timestamp) parse(s string) error {
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("migrate: unrecognized timestamp %q", s)
}
