package domain

import (
	"context"
	"time"
)

// Storage is the relational collaborator consumed by the ingestion engine.
// Lookups exclude soft-deleted rows unless stated otherwise.
type Storage interface {
	CreateFeed(ctx context.Context, feed *Feed) error
	FeedByID(ctx context.Context, userID int64, feedID int64) (*Feed, error)
	FeedByURL(ctx context.Context, userID int64, feedURL string) (*Feed, error)
	UserFeeds(ctx context.Context, userID int64) ([]Feed, error)
	FeedSlugs(ctx context.Context, userID int64) (map[string]struct{}, error)
	TouchFeedRefreshedAt(ctx context.Context, feedID int64, at time.Time) error
	SoftDeleteFeed(ctx context.Context, feedID int64) error

	// ArticleKeys returns the identity keys of a feed's stored articles:
	// links, and Reddit post IDs where present.
	ArticleKeys(ctx context.Context, feedID int64) (links map[string]struct{}, postIDs map[string]struct{}, err error)
	ArticleSlugs(ctx context.Context, feedID int64) (map[string]struct{}, error)
	InsertArticles(ctx context.Context, articles []Article) error

	UserSettingsWithDefault(ctx context.Context, userID int64) (*UserSettings, error)
	AutoRefreshUsers(ctx context.Context) ([]UserSettings, error)

	OwnedTagIDs(ctx context.Context, userID int64, tagIDs []int64) (map[int64]struct{}, error)
	ReplaceFeedTags(ctx context.Context, feedID int64, tagIDs []int64) error
}

// Cache memoizes read queries. The engine only invalidates: single keys after
// targeted mutations, whole user-scoped prefixes after refreshes.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
	Delete(key string)
	DeletePrefix(prefix string)
}

// Limiter is a token bucket keyed by an arbitrary string.
type Limiter interface {
	Consume(key string, cost int) bool
}
