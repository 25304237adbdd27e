package domain

import "time"

// SourceKind selects the ingestion strategy for a feed.
type SourceKind string

const (
	KindRSS        SourceKind = "rss"
	KindReddit     SourceKind = "reddit"
	KindGoogleNews SourceKind = "google_news"
)

// Status is the lifecycle state of a feed or article. Rows are soft-deleted,
// never removed.
type Status string

const (
	StatusPublished Status = "published"
	StatusDraft     Status = "draft"
	StatusDeleted   Status = "deleted"
)

// Feed is a user's subscription to one remote content origin.
type Feed struct {
	ID              int64
	UserID          int64
	URL             string
	Title           string
	Description     string
	ImageURL        string
	Slug            string
	Kind            SourceKind
	LastRefreshedAt *time.Time
	Status          Status
	CreatedAt       time.Time
}

// Article is one normalized piece of content belonging to exactly one feed.
type Article struct {
	ID              int64
	UserID          int64
	FeedID          int64
	Title           string
	Slug            string
	Description     string
	Content         string
	Link            string
	ImageURL        string
	PublishedAt     time.Time
	SourceLabel     string
	RedditPostID    string
	RedditPermalink string
	Subreddit       string
	Read            bool
	Starred         bool
	ReadLater       bool
	Status          Status
}

// Candidate is a parsed-but-not-yet-deduplicated article produced by the
// parser. The slug is assigned later, during deduplication.
type Candidate struct {
	Title           string
	Slug            string
	Description     string
	Content         string
	Link            string
	ImageURL        string
	PublishedAt     time.Time
	SourceLabel     string
	RedditPostID    string
	RedditPermalink string
	Subreddit       string
}

// ParsedFeed is the normalized result of one fetch+parse pass.
type ParsedFeed struct {
	Title       string
	Description string
	ImageURL    string
	Articles    []Candidate
}

type UserSettings struct {
	UserID               int64
	AutoRefreshEnabled   bool
	RefreshIntervalHours int64
}

// RefreshOutcome aggregates one refresh batch. It is transient and never
// persisted.
type RefreshOutcome struct {
	FeedsAttempted int
	FeedsSucceeded int
	FeedsFailed    int
	NewArticles    int
}

// SweepOutcome aggregates one cron sweep across all opted-in users.
type SweepOutcome struct {
	UsersSwept  int
	UsersFailed int
	Feeds       RefreshOutcome
}
