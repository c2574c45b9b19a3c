// Package generate writes the synthetic tags, feeds and articles of a
// stress dataset.
package generate

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"

	stresserrors "github.com/fluxfeed/stressdb/internal/errors"
	"github.com/fluxfeed/stressdb/pkg/types"
)

const insertTagSQL = `INSERT INTO tags (name, color, style) VALUES (?, ?, ?)`

// CreateTags inserts the first n names of the vocabulary as tags, each with
// a random palette color and style, in one transaction. It returns the new
// ids in vocabulary order.
func CreateTags(ctx context.Context, db *sql.DB, rng *rand.Rand, names []string, n int) ([]int64, error) {
	if n < 0 || n > len(names) {
		return nil, stresserrors.NewGenerateError(stresserrors.CodeInvalidCount,
			fmt.Sprintf("cannot create %d tags from a vocabulary of %d", n, len(names)), nil)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, stresserrors.NewStoreError(stresserrors.CodeStoreUnavailable, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertTagSQL)
	if err != nil {
		return nil, stresserrors.NewGenerateError(stresserrors.CodeInsertFailed, "failed to prepare tag insert", err)
	}
	defer stmt.Close()

	ids := make([]int64, 0, n)
	for _, name := range names[:n] {
		tag := types.Tag{
			Name:  name,
			Color: types.Palette[rng.Intn(len(types.Palette))],
			Style: types.TagStyles[rng.Intn(len(types.TagStyles))],
		}
		res, err := stmt.ExecContext(ctx, tag.Name, tag.Color, string(tag.Style))
		if err != nil {
			return nil, stresserrors.NewGenerateError(stresserrors.CodeInsertFailed,
				fmt.Sprintf("failed to insert tag %q", name), err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, stresserrors.NewGenerateError(stresserrors.CodeInsertFailed, "failed to read tag id", err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, stresserrors.NewStoreError(stresserrors.CodeStoreUnavailable, "failed to commit tags", err)
	}
	return ids, nil
}
