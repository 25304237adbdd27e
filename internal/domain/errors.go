package domain

import "errors"

// Error kinds surfaced by the ingestion engine, grouped by origin. Callers
// discriminate with errors.Is; messages are suitable for direct display.
var (
	// Fetch.
	ErrFetchFailed        = errors.New("failed to fetch feed")
	ErrTimeout            = errors.New("feed request timed out")
	ErrSourceRateLimited  = errors.New("rate limited by source, try again later")
	ErrSubredditNotFound  = errors.New("subreddit not found")
	ErrSubredditForbidden = errors.New("subreddit is private or banned")

	// Parse.
	ErrMissingTitle = errors.New("feed has missing or empty title")
	ErrNoArticles   = errors.New("no valid articles found in feed")
	ErrNotAFeed     = errors.New("not a valid RSS or Atom feed")
	ErrNoPosts      = errors.New("no posts found in subreddit")

	// Orchestration.
	ErrDuplicateFeed      = errors.New("feed with this URL already exists")
	ErrFeedNotFound       = errors.New("feed not found")
	ErrTagNotFound        = errors.New("tag not found")
	ErrRefreshRateLimited = errors.New("refresh rate limit exceeded, try again later")
	ErrBadCronSecret      = errors.New("cron secret is missing or invalid")
)
