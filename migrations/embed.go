// Package migrations embeds the feed-reader schema, one file per version.
package migrations

import "embed"

// FS holds every <version>_<description>.sql file of the schema.
//
//go:embed *.sql
var FS embed.FS
