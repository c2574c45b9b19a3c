// Package migrate replays versioned SQL files against the store and records
// each one in the _sqlx_migrations table, byte-compatible with sqlx so the
// feed reader treats a seeded database as already migrated.
package migrate

import (
	"crypto/sha512"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	stresserrors "github.com/fluxfeed/stressdb/internal/errors"
)

var filenamePattern = regexp.MustCompile(`^(\d+)_(.+)\.sql$`)

// Migration is one parsed migration file.
type Migration struct {
	Version     int64
	Description string
	Filename    string
	SQL         []byte
	Checksum    []byte
}

// ParseFilename extracts the version and description from a file name of
// the form <digits>_<description>.sql. Underscores in the description
// become spaces.
func ParseFilename(name string) (int64, string, error) {
	m := filenamePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, "", stresserrors.Newf(stresserrors.ErrCategoryMigration,
			stresserrors.CodeMalformedMigrationName,
			"migration file %q does not match <version>_<description>.sql", name)
	}

	version, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, "", stresserrors.NewMigrationError(stresserrors.CodeMalformedMigrationName,
			fmt.Sprintf("migration file %q has an out of range version", name), err)
	}

	return version, strings.ReplaceAll(m[2], "_", " "), nil
}

// Checksum returns the SHA-384 digest of the exact file contents.
func Checksum(contents []byte) []byte {
	sum := sha512.Sum384(contents)
	return sum[:]
}

// Discover reads every *.sql file at the root of source and returns them
// ordered by numeric version. Nothing is executed; a malformed name or a
// repeated version fails the whole set.
func Discover(source fs.FS) ([]Migration, error) {
	names, err := fs.Glob(source, "*.sql")
	if err != nil {
		return nil, stresserrors.NewMigrationError(stresserrors.CodeMigrationExecutionFailed,
			"failed to list migrations", err)
	}

	migrations := make([]Migration, 0, len(names))
	byVersion := make(map[int64]string, len(names))
	for _, name := range names {
		base := path.Base(name)
		version, description, err := ParseFilename(base)
		if err != nil {
			return nil, err
		}
		if prev, ok := byVersion[version]; ok {
			return nil, stresserrors.Newf(stresserrors.ErrCategoryMigration,
				stresserrors.CodeDuplicateMigrationVersion,
				"migrations %q and %q share version %d", prev, base, version)
		}
		byVersion[version] = base

		contents, err := fs.ReadFile(source, name)
		if err != nil {
			return nil, stresserrors.NewMigrationError(stresserrors.CodeMigrationExecutionFailed,
				fmt.Sprintf("failed to read %s", base), err)
		}

		migrations = append(migrations, Migration{
			Version:     version,
			Description: description,
			Filename:    base,
			SQL:         contents,
			Checksum:    Checksum(contents),
		})
	}

	// Numeric order: 9_x.sql runs before 10_x.sql.
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}
