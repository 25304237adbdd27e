// Package ingest orchestrates the feed lifecycle: subscription, refresh,
// scheduled sweeps, and the deduplication bookkeeping between them.
package ingest

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"feedkeeper/internal/dedup"
	"feedkeeper/internal/domain"
	"feedkeeper/internal/source"
	"feedkeeper/internal/textutil"
)

const (
	// loadTimeout bounds one fetch+parse pass. A slow origin must not stall
	// a whole refresh batch.
	loadTimeout = 15 * time.Second

	// refreshConcurrency caps parallel feed loads within one batch.
	refreshConcurrency = 4

	feedListTTL = 5 * time.Minute
)

type Service struct {
	store      domain.Storage
	cache      domain.Cache
	limiter    domain.Limiter
	loader     Loader
	log        *slog.Logger
	cronSecret string

	now         func() time.Time
	loadTimeout time.Duration
}

func New(
	store domain.Storage,
	cache domain.Cache,
	limiter domain.Limiter,
	loader Loader,
	log *slog.Logger,
	cronSecret string,
) *Service {
	return &Service{
		store:       store,
		cache:       cache,
		limiter:     limiter,
		loader:      loader,
		log:         log,
		cronSecret:  cronSecret,
		now:         func() time.Time { return time.Now().UTC() },
		loadTimeout: loadTimeout,
	}
}

// CreateFeed subscribes a user to a source. The URL is classified, fetched
// and parsed up front so a dead source is rejected instead of stored.
func (s *Service) CreateFeed(
	ctx context.Context,
	userID int64,
	rawURL string,
) (*domain.Feed, error) {
	classified := source.Classify(rawURL)

	existing, err := s.store.FeedByURL(ctx, userID, classified.URL)
	if err != nil {
		return nil, fmt.Errorf("look up feed by URL: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrDuplicateFeed
	}

	parsed, err := s.load(ctx, classified.Kind, classified.URL)
	if err != nil {
		return nil, err
	}

	title := classified.Title
	if title == "" {
		title = parsed.Title
	}
	if title == "" {
		title = classified.URL
	}

	slugs, err := s.store.FeedSlugs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load feed slugs: %w", err)
	}

	feed := &domain.Feed{
		UserID:      userID,
		URL:         classified.URL,
		Title:       title,
		Description: parsed.Description,
		ImageURL:    parsed.ImageURL,
		Slug:        dedup.UniqueSlug(textutil.Slugify(title), slugs),
		Kind:        classified.Kind,
	}

	if err = s.store.CreateFeed(ctx, feed); err != nil {
		return nil, fmt.Errorf("create feed: %w", err)
	}

	at := s.now()
	if err = s.store.TouchFeedRefreshedAt(ctx, feed.ID, at); err != nil {
		return nil, fmt.Errorf("stamp refresh time: %w", err)
	}
	feed.LastRefreshedAt = &at

	// A brand-new feed has no stored articles, so no keys and no slugs to
	// collide with.
	stored, err := s.storeCandidates(ctx, feed, parsed.Articles,
		dedup.Keys{}, map[string]struct{}{})
	if err != nil {
		return nil, err
	}

	s.cache.DeletePrefix(userPrefix(userID))

	s.log.InfoContext(ctx, "Feed created",
		"userID", userID,
		"feedID", feed.ID,
		"kind", feed.Kind,
		"articles", stored)

	return feed, nil
}

// Feeds lists a user's live feeds, memoized briefly because the list backs
// every page render.
func (s *Service) Feeds(ctx context.Context, userID int64) ([]domain.Feed, error) {
	key := userPrefix(userID) + "feeds"

	if cached, ok := s.cache.Get(key); ok {
		if feeds, ok := cached.([]domain.Feed); ok {
			return feeds, nil
		}
	}

	feeds, err := s.store.UserFeeds(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user feeds: %w", err)
	}

	s.cache.Set(key, feeds, feedListTTL)

	return feeds, nil
}

// RefreshFeed re-ingests one feed on demand and returns the number of newly
// stored articles.
func (s *Service) RefreshFeed(ctx context.Context, userID, feedID int64) (int, error) {
	feed, err := s.store.FeedByID(ctx, userID, feedID)
	if err != nil {
		return 0, fmt.Errorf("look up feed: %w", err)
	}
	if feed == nil {
		return 0, domain.ErrFeedNotFound
	}

	fresh, err := s.refreshOne(ctx, feed)
	if err != nil {
		return 0, err
	}

	s.cache.DeletePrefix(userPrefix(userID))

	return fresh, nil
}

// RefreshAllFeeds refreshes every live feed of a user, subject to the
// per-user rate limit. A denied request has no side effects at all.
func (s *Service) RefreshAllFeeds(
	ctx context.Context,
	userID int64,
) (domain.RefreshOutcome, error) {
	if !s.limiter.Consume(refreshAllKey(userID), 1) {
		return domain.RefreshOutcome{}, domain.ErrRefreshRateLimited
	}

	feeds, err := s.store.UserFeeds(ctx, userID)
	if err != nil {
		return domain.RefreshOutcome{}, fmt.Errorf("load user feeds: %w", err)
	}

	outcome := s.refreshFeeds(ctx, feeds)

	if outcome.FeedsAttempted > 0 {
		s.cache.DeletePrefix(userPrefix(userID))
	}

	s.log.InfoContext(ctx, "All feeds refreshed",
		"userID", userID,
		"attempted", outcome.FeedsAttempted,
		"succeeded", outcome.FeedsSucceeded,
		"failed", outcome.FeedsFailed,
		"newArticles", outcome.NewArticles)

	return outcome, nil
}

// AutoRefreshStaleFeeds refreshes only the feeds whose last refresh is older
// than the user's configured interval. Users who never opted in are skipped.
func (s *Service) AutoRefreshStaleFeeds(
	ctx context.Context,
	userID int64,
) (domain.RefreshOutcome, error) {
	settings, err := s.store.UserSettingsWithDefault(ctx, userID)
	if err != nil {
		return domain.RefreshOutcome{}, fmt.Errorf("load user settings: %w", err)
	}
	if !settings.AutoRefreshEnabled {
		return domain.RefreshOutcome{}, nil
	}

	feeds, err := s.store.UserFeeds(ctx, userID)
	if err != nil {
		return domain.RefreshOutcome{}, fmt.Errorf("load user feeds: %w", err)
	}

	interval := time.Duration(settings.RefreshIntervalHours) * time.Hour
	now := s.now()

	stale := make([]domain.Feed, 0, len(feeds))
	for _, feed := range feeds {
		if feed.LastRefreshedAt == nil || now.Sub(*feed.LastRefreshedAt) >= interval {
			stale = append(stale, feed)
		}
	}

	outcome := s.refreshFeeds(ctx, stale)

	if outcome.NewArticles > 0 {
		s.cache.DeletePrefix(userPrefix(userID))
	}

	return outcome, nil
}

// CronSweep runs the scheduled refresh across every opted-in user. One
// failing user never aborts the sweep.
func (s *Service) CronSweep(ctx context.Context, secret string) (domain.SweepOutcome, error) {
	if s.cronSecret == "" ||
		subtle.ConstantTimeCompare([]byte(secret), []byte(s.cronSecret)) != 1 {
		return domain.SweepOutcome{}, domain.ErrBadCronSecret
	}

	users, err := s.store.AutoRefreshUsers(ctx)
	if err != nil {
		return domain.SweepOutcome{}, fmt.Errorf("load auto-refresh users: %w", err)
	}

	var outcome domain.SweepOutcome

	for _, user := range users {
		userOutcome, err := s.AutoRefreshStaleFeeds(ctx, user.UserID)
		if err != nil {
			outcome.UsersFailed++

			s.log.WarnContext(ctx, "Failed to sweep user",
				"error", err,
				"userID", user.UserID)

			continue
		}

		outcome.UsersSwept++
		outcome.Feeds.FeedsAttempted += userOutcome.FeedsAttempted
		outcome.Feeds.FeedsSucceeded += userOutcome.FeedsSucceeded
		outcome.Feeds.FeedsFailed += userOutcome.FeedsFailed
		outcome.Feeds.NewArticles += userOutcome.NewArticles
	}

	s.log.InfoContext(ctx, "Cron sweep finished",
		"usersSwept", outcome.UsersSwept,
		"usersFailed", outcome.UsersFailed,
		"feedsAttempted", outcome.Feeds.FeedsAttempted,
		"newArticles", outcome.Feeds.NewArticles)

	return outcome, nil
}

// DeleteFeed soft-deletes a feed. Its articles stop appearing but stay in
// storage.
func (s *Service) DeleteFeed(ctx context.Context, userID, feedID int64) error {
	feed, err := s.store.FeedByID(ctx, userID, feedID)
	if err != nil {
		return fmt.Errorf("look up feed: %w", err)
	}
	if feed == nil {
		return domain.ErrFeedNotFound
	}

	if err = s.store.SoftDeleteFeed(ctx, feedID); err != nil {
		return fmt.Errorf("delete feed: %w", err)
	}

	s.cache.DeletePrefix(userPrefix(userID))

	return nil
}

// AssignTags replaces a feed's tag set. Every tag must belong to the caller.
func (s *Service) AssignTags(
	ctx context.Context,
	userID, feedID int64,
	tagIDs []int64,
) error {
	feed, err := s.store.FeedByID(ctx, userID, feedID)
	if err != nil {
		return fmt.Errorf("look up feed: %w", err)
	}
	if feed == nil {
		return domain.ErrFeedNotFound
	}

	owned, err := s.store.OwnedTagIDs(ctx, userID, tagIDs)
	if err != nil {
		return fmt.Errorf("look up tags: %w", err)
	}
	for _, tagID := range tagIDs {
		if _, ok := owned[tagID]; !ok {
			return domain.ErrTagNotFound
		}
	}

	if err = s.store.ReplaceFeedTags(ctx, feedID, tagIDs); err != nil {
		return fmt.Errorf("replace feed tags: %w", err)
	}

	s.cache.DeletePrefix(userPrefix(userID))

	return nil
}

type refreshResult struct {
	feedID int64
	fresh  int
	err    error
}

// refreshFeeds runs one refresh batch with bounded concurrency. Failures are
// counted and logged, never propagated: one dead source must not poison its
// neighbors.
func (s *Service) refreshFeeds(ctx context.Context, feeds []domain.Feed) domain.RefreshOutcome {
	outcome := domain.RefreshOutcome{FeedsAttempted: len(feeds)}
	if len(feeds) == 0 {
		return outcome
	}

	concurrency := min(refreshConcurrency, len(feeds))
	semaphore := make(chan struct{}, concurrency)
	results := make(chan refreshResult, len(feeds))

	var wg sync.WaitGroup

	for _, feed := range feeds {
		wg.Add(1)

		go func(feed domain.Feed) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			fresh, err := s.refreshOne(ctx, &feed)
			results <- refreshResult{feedID: feed.ID, fresh: fresh, err: err}
		}(feed)
	}

	wg.Wait()
	close(results)

	for result := range results {
		if result.err != nil {
			outcome.FeedsFailed++

			s.log.WarnContext(ctx, "Failed to refresh feed",
				"error", result.err,
				"feedID", result.feedID)

			continue
		}

		outcome.FeedsSucceeded++
		outcome.NewArticles += result.fresh
	}

	return outcome
}

// refreshOne re-ingests one feed. The refresh timestamp is stamped before
// loading so a persistently broken source is not retried as stale forever.
func (s *Service) refreshOne(ctx context.Context, feed *domain.Feed) (int, error) {
	if err := s.store.TouchFeedRefreshedAt(ctx, feed.ID, s.now()); err != nil {
		return 0, fmt.Errorf("stamp refresh time: %w", err)
	}

	parsed, err := s.load(ctx, feed.Kind, feed.URL)
	if err != nil {
		return 0, err
	}

	links, postIDs, err := s.store.ArticleKeys(ctx, feed.ID)
	if err != nil {
		return 0, fmt.Errorf("load article keys: %w", err)
	}

	return s.storeCandidates(ctx, feed, parsed.Articles,
		dedup.Keys{Links: links, PostIDs: postIDs}, nil)
}

// storeCandidates filters, slugs and persists a batch of candidates. A nil
// slug set is loaded from storage on demand; new feeds pass an empty one.
func (s *Service) storeCandidates(
	ctx context.Context,
	feed *domain.Feed,
	candidates []domain.Candidate,
	existing dedup.Keys,
	takenSlugs map[string]struct{},
) (int, error) {
	fresh := dedup.FilterNew(feed.Kind, candidates, existing)
	if len(fresh) == 0 {
		return 0, nil
	}

	if takenSlugs == nil {
		var err error

		takenSlugs, err = s.store.ArticleSlugs(ctx, feed.ID)
		if err != nil {
			return 0, fmt.Errorf("load article slugs: %w", err)
		}
	}

	fresh = dedup.AssignSlugs(fresh, takenSlugs)

	articles := make([]domain.Article, len(fresh))
	for i, candidate := range fresh {
		articles[i] = domain.Article{
			UserID:          feed.UserID,
			FeedID:          feed.ID,
			Title:           candidate.Title,
			Slug:            candidate.Slug,
			Description:     candidate.Description,
			Content:         candidate.Content,
			Link:            candidate.Link,
			ImageURL:        candidate.ImageURL,
			PublishedAt:     candidate.PublishedAt,
			SourceLabel:     candidate.SourceLabel,
			RedditPostID:    candidate.RedditPostID,
			RedditPermalink: candidate.RedditPermalink,
			Subreddit:       candidate.Subreddit,
		}
	}

	if err := s.store.InsertArticles(ctx, articles); err != nil {
		return 0, fmt.Errorf("insert articles: %w", err)
	}

	return len(articles), nil
}

// load runs one bounded fetch+parse pass.
func (s *Service) load(
	ctx context.Context,
	kind domain.SourceKind,
	feedURL string,
) (*domain.ParsedFeed, error) {
	loadCtx, cancel := context.WithTimeout(ctx, s.loadTimeout)
	defer cancel()

	parsed, err := s.loader.Load(loadCtx, kind, feedURL)
	if err != nil {
		// The fetcher folds transport errors into one ErrFetchFailed, so the
		// deadline is checked on the context itself, not the error chain.
		if errors.Is(err, context.DeadlineExceeded) ||
			errors.Is(loadCtx.Err(), context.DeadlineExceeded) {
			return nil, domain.ErrTimeout
		}

		return nil, err
	}

	return parsed, nil
}

func userPrefix(userID int64) string {
	return "user:" + strconv.FormatInt(userID, 10) + ":"
}

func refreshAllKey(userID int64) string {
	return "refresh-all:" + strconv.FormatInt(userID, 10)
}
