// Package fts controls the articles_fts mirror during bulk loads.
//
// The mirror is kept in step with articles by three triggers. Dropping them
// puts the index in bulk-load mode: inserts into articles no longer pay for
// tokenization. Rebuild repopulates the mirror from articles in one pass and
// restores the triggers.
package fts

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	stresserrors "github.com/fluxfeed/stressdb/internal/errors"
	"github.com/fluxfeed/stressdb/internal/logging"
)

// Table is the FTS5 mirror of articles.
const Table = "articles_fts"

// Trigger names.
const (
	TriggerInsert = "articles_fts_insert"
	TriggerUpdate = "articles_fts_update"
	TriggerDelete = "articles_fts_delete"
)

// Triggers lists the maintenance triggers.
var Triggers = []string{TriggerInsert, TriggerUpdate, TriggerDelete}

// TriggerSQL holds the DDL that recreates each trigger.
var TriggerSQL = map[string]string{
	TriggerInsert: `CREATE TRIGGER articles_fts_insert AFTER INSERT ON articles BEGIN
    INSERT INTO articles_fts(rowid, article_id, title, content, summary, author)
    VALUES (new.id, new.id, new.title, new.content, new.summary, new.author);
END`,
	TriggerDelete: `CREATE TRIGGER articles_fts_delete AFTER DELETE ON articles BEGIN
    DELETE FROM articles_fts WHERE rowid = old.id;
END`,
	TriggerUpdate: `CREATE TRIGGER articles_fts_update AFTER UPDATE ON articles BEGIN
    DELETE FROM articles_fts WHERE rowid = old.id;
    INSERT INTO articles_fts(rowid, article_id, title, content, summary, author)
    VALUES (new.id, new.id, new.title, new.content, new.summary, new.author);
END`,
}

const populateSQL = `
INSERT INTO articles_fts(rowid, article_id, title, content, summary, author)
SELECT id, id, title, content, summary, author FROM articles`

// Mode is the maintenance state of the mirror.
type Mode int

const (
	// Maintained means every trigger is installed.
	Maintained Mode = iota
	// Suspended means at least one trigger is missing.
	Suspended
)

func (m Mode) String() string {
	switch m {
	case Maintained:
		return "maintained"
	case Suspended:
		return "suspended"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Manager switches the mirror between maintained and suspended.
type Manager struct {
	db  *sql.DB
	log logrus.FieldLogger
}

// NewManager creates a Manager for db.
func NewManager(db *sql.DB, logger logrus.FieldLogger) *Manager {
	return &Manager{db: db, log: logging.Component(logger, "fts")}
}

func (m *Manager) installedTriggers(ctx context.Context) (int, error) {
	var n int
	err := m.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'trigger' AND name IN (?, ?, ?)",
		TriggerInsert, TriggerUpdate, TriggerDelete,
	).Scan(&n)
	if err != nil {
		return 0, stresserrors.NewStoreError(stresserrors.CodeStoreUnavailable,
			"failed to read trigger state", err)
	}
	return n, nil
}

// Mode reads the current state from sqlite_master.
func (m *Manager) Mode(ctx context.Context) (Mode, error) {
	n, err := m.installedTriggers(ctx)
	if err != nil {
		return Suspended, err
	}
	if n == len(Triggers) {
		return Maintained, nil
	}
	return Suspended, nil
}

// Suspend drops the maintenance triggers. Calling it when no trigger is
// installed is a no-op.
func (m *Manager) Suspend(ctx context.Context) error {
	n, err := m.installedTriggers(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		m.log.Debug("fts already suspended")
		return nil
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return stresserrors.NewStoreError(stresserrors.CodeStoreUnavailable, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	for _, name := range Triggers {
		if _, err := tx.ExecContext(ctx, "DROP TRIGGER IF EXISTS "+name); err != nil {
			return stresserrors.NewFTSError(stresserrors.CodeFTSUnavailable,
				fmt.Sprintf("failed to drop trigger %s", name), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return stresserrors.NewStoreError(stresserrors.CodeStoreUnavailable, "failed to commit", err)
	}

	m.log.Info("fts triggers dropped for bulk load")
	return nil
}

// Rebuild repopulates the mirror from articles and reinstalls the triggers
// in one transaction. It refuses to run while the mirror is maintained,
// since the triggers have already indexed every row. Returns the number of
// rows indexed.
func (m *Manager) Rebuild(ctx context.Context) (int64, error) {
	mode, err := m.Mode(ctx)
	if err != nil {
		return 0, err
	}
	if mode == Maintained {
		return 0, stresserrors.New(stresserrors.ErrCategoryFTS, stresserrors.CodeFTSNotSuspended,
			"rebuild requires the fts index to be suspended")
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, stresserrors.NewStoreError(stresserrors.CodeStoreUnavailable, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	// Clears anything a partial trigger set may have written.
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+Table); err != nil {
		return 0, stresserrors.NewFTSError(stresserrors.CodeFTSRebuildFailed, "failed to clear fts table", err)
	}

	res, err := tx.ExecContext(ctx, populateSQL)
	if err != nil {
		return 0, stresserrors.NewFTSError(stresserrors.CodeFTSRebuildFailed, "failed to populate fts table", err)
	}
	indexed, err := res.RowsAffected()
	if err != nil {
		return 0, stresserrors.NewFTSError(stresserrors.CodeFTSRebuildFailed, "failed to read indexed row count", err)
	}

	for _, name := range Triggers {
		if _, err := tx.ExecContext(ctx, "DROP TRIGGER IF EXISTS "+name); err != nil {
			return 0, stresserrors.NewFTSError(stresserrors.CodeFTSRebuildFailed,
				fmt.Sprintf("failed to replace trigger %s", name), err)
		}
		if _, err := tx.ExecContext(ctx, TriggerSQL[name]); err != nil {
			return 0, stresserrors.NewFTSError(stresserrors.CodeFTSRebuildFailed,
				fmt.Sprintf("failed to create trigger %s", name), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, stresserrors.NewStoreError(stresserrors.CodeStoreUnavailable, "failed to commit", err)
	}

	m.log.WithField("rows", indexed).Info("fts index rebuilt")
	return indexed, nil
}
