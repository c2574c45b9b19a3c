// Package stats counts the rows of a seeded store.
package stats

import (
	"context"
	"database/sql"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/fluxfeed/stressdb/internal/store"
)

// Counts holds the row count of every seeded table.
type Counts struct {
	Feeds      int64 `json:"feeds"`
	Articles   int64 `json:"articles"`
	Tags       int64 `json:"tags"`
	FeedTags   int64 `json:"feed_tags"`
	FTSEntries int64 `json:"fts_entries"`
	Migrations int64 `json:"migrations"`
}

// Collect runs one COUNT(*) per table. It never writes.
func Collect(ctx context.Context, db *sql.DB) (*Counts, error) {
	c := &Counts{}
	targets := []struct {
		table string
		dst   *int64
	}{
		{"feeds", &c.Feeds},
		{"articles", &c.Articles},
		{"tags", &c.Tags},
		{"feed_tags", &c.FeedTags},
		{"articles_fts", &c.FTSEntries},
		{"_sqlx_migrations", &c.Migrations},
	}
	for _, t := range targets {
		n, err := store.CountRows(ctx, db, t.table)
		if err != nil {
			return nil, err
		}
		*t.dst = n
	}
	return c, nil
}

// Rows returns the counts as label/value pairs in display order.
func (c *Counts) Rows() [][]string {
	return [][]string{
		{"Feeds", humanize.Comma(c.Feeds)},
		{"Articles", humanize.Comma(c.Articles)},
		{"Tags", humanize.Comma(c.Tags)},
		{"Feed-tag associations", humanize.Comma(c.FeedTags)},
		{"FTS entries", humanize.Comma(c.FTSEntries)},
		{"Migrations", humanize.Comma(c.Migrations)},
	}
}

// Render writes the counts to w as a borderless table.
func Render(w io.Writer, c *Counts) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{
					AutoWrap: tw.WrapNone,
				},
				Alignment: tw.CellAlignment{
					Global: tw.AlignLeft,
				},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{
					AutoFormat: tw.On,
				},
				Alignment: tw.CellAlignment{
					Global: tw.AlignLeft,
				},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{
					ShowHeader: tw.Off,
				},
			},
		}),
	)

	table.Header([]string{"Table", "Rows"})
	if err := table.Bulk(c.Rows()); err != nil {
		return err
	}
	return table.Render()
}
