package types

import "time"

// Palette is the fixed set of colors assigned to tags and feeds.
var Palette = []string{
	"#3B82F6", "#EF4444", "#10B981", "#F59E0B", "#8B5CF6",
	"#EC4899", "#06B6D4", "#84CC16", "#F97316", "#6366F1",
}

// TagNames is the tag vocabulary. Names are unique; tags are always taken
// from the front of the list.
var TagNames = []string{
	"tech", "news", "science", "politics", "sports", "entertainment",
	"gaming", "programming", "rust", "python", "javascript", "linux",
	"open-source", "security", "ai", "machine-learning", "data-science",
	"web-dev", "mobile", "devops", "cloud", "database", "networking",
	"hardware", "software", "tutorials", "reviews", "opinion", "analysis",
	"breaking", "daily", "weekly", "monthly", "featured", "popular",
	"trending", "archived", "important", "bookmarked", "read-later",
	"favorites", "must-read", "recommended", "community", "official",
	"indie", "mainstream", "international", "local", "podcasts",
}

// TimeLayout is the stored timestamp format. Fixed width UTC values sort
// lexically in chronological order.
const TimeLayout = "2006-01-02T15:04:05Z"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a TimeLayout timestamp.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, s)
}
