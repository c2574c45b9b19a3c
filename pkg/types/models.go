package types

import "time"

// TagStyle is the presentation style of a tag chip.
type TagStyle string

const (
	TagStyleSolid   TagStyle = "solid"
	TagStyleOutline TagStyle = "outline"
	TagStyleSubtle  TagStyle = "subtle"
)

// TagStyles lists every TagStyle.
var TagStyles = []TagStyle{TagStyleSolid, TagStyleOutline, TagStyleSubtle}

// FetchFrequency controls how often the reader polls a feed.
type FetchFrequency string

const (
	FetchSmart    FetchFrequency = "smart"
	FetchFrequent FetchFrequency = "frequent"
	FetchNormal   FetchFrequency = "normal"
	FetchRare     FetchFrequency = "rare"
)

// FetchFrequencies lists every FetchFrequency.
var FetchFrequencies = []FetchFrequency{FetchSmart, FetchFrequent, FetchNormal, FetchRare}

// Tag is a categorical label that can be attached to feeds.
type Tag struct {
	ID    int64    `json:"id"`
	Name  string   `json:"name"`
	Color string   `json:"color"`
	Style TagStyle `json:"style"`
}

// Feed is a subscribed source. Seeded feeds point at non-resolvable hosts.
type Feed struct {
	ID             int64          `json:"id"`
	URL            string         `json:"url"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	SiteURL        string         `json:"site_url"`
	Color          string         `json:"color"`
	FetchFrequency FetchFrequency `json:"fetch_frequency"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// FeedTag associates a feed with a tag. The pair is unique.
type FeedTag struct {
	FeedID int64 `json:"feed_id"`
	TagID  int64 `json:"tag_id"`
}

// Article is an entry of a feed.
type Article struct {
	ID          int64     `json:"id"`
	FeedID      int64     `json:"feed_id"`
	GUID        string    `json:"guid"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Content     string    `json:"content"`
	Summary     string    `json:"summary"`
	Author      string    `json:"author"`
	PublishedAt time.Time `json:"published_at"`
	IsRead      bool      `json:"is_read"`
	IsStarred   bool      `json:"is_starred"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ArticleColumns is the column list of a seeded article row, in insert order.
var ArticleColumns = []string{
	"feed_id", "guid", "title", "url", "content", "summary", "author",
	"published_at", "is_read", "is_starred", "created_at", "updated_at",
}

// Values returns the article's bind parameters in ArticleColumns order.
func (a *Article) Values() []interface{} {
	return []interface{}{
		a.FeedID, a.GUID, a.Title, a.URL, a.Content, a.Summary, a.Author,
		FormatTime(a.PublishedAt), a.IsRead, a.IsStarred,
		FormatTime(a.CreatedAt), FormatTime(a.UpdatedAt),
	}
}

// MigrationRecord is one row of the _sqlx_migrations tracking table.
type MigrationRecord struct {
	Version     int64     `json:"version"`
	Description string    `json:"description"`
	InstalledOn time.Time `json:"installed_on"`
	Success     bool      `json:"success"`
	Checksum    []byte    `json:"checksum"`
	// ExecutionTime is in nanoseconds
	ExecutionTime int64 `json:"execution_time"`
}
