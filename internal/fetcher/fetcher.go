// Package fetcher retrieves raw feed content over the network. Standard
// sources get a direct attempt with a proxy-relay fallback; Reddit gets its
// own JSON listing path with source-specific status handling.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"feedkeeper/internal/domain"
)

const (
	clientTimeout = 20 * time.Second

	userAgent = "feedkeeper/1.0 (personal feed reader)"

	acceptFeed = "application/rss+xml, application/atom+xml, " +
		"application/xml;q=0.9, text/xml;q=0.8, */*;q=0.7"

	redditListingLimit = 25

	defaultRedditBase = "https://www.reddit.com"
)

type Fetcher struct {
	client     *http.Client
	proxyBase  string
	redditBase string
	log        *slog.Logger
}

// New creates a Fetcher. proxyBase is the CORS-relay prefix the raw feed URL
// is appended to (query-escaped) when the direct fetch fails.
func New(proxyBase string, log *slog.Logger) *Fetcher {
	return &Fetcher{
		client:     &http.Client{Timeout: clientTimeout},
		proxyBase:  proxyBase,
		redditBase: defaultRedditBase,
		log:        log,
	}
}

// FetchFeed retrieves raw feed bytes: direct GET first, proxy relay on any
// failure. Both failing is a network error.
func (f *Fetcher) FetchFeed(ctx context.Context, feedURL string) ([]byte, error) {
	body, directErr := f.get(ctx, feedURL)
	if directErr == nil {
		return body, nil
	}

	f.log.WarnContext(ctx, "Direct fetch failed, trying proxy relay",
		"error", directErr,
		"feedURL", feedURL)

	body, proxyErr := f.get(ctx, f.proxyBase+url.QueryEscape(feedURL))
	if proxyErr != nil {
		return nil, fmt.Errorf("%w: direct: %v; proxy: %v",
			domain.ErrFetchFailed, directErr, proxyErr)
	}

	return body, nil
}

// FetchSubreddit retrieves the public JSON listing of a subreddit. There is
// no proxy fallback; status codes map to user-facing error kinds.
func (f *Fetcher) FetchSubreddit(ctx context.Context, name string) ([]byte, error) {
	listingURL := fmt.Sprintf("%s/r/%s.json?limit=%d", f.redditBase, name, redditListingLimit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listingURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}
	defer f.closeBody(ctx, resp, listingURL)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w (r/%s)", domain.ErrSourceRateLimited, name)
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w (r/%s)", domain.ErrSubredditNotFound, name)
	case http.StatusForbidden:
		return nil, fmt.Errorf("%w (r/%s)", domain.ErrSubredditForbidden, name)
	default:
		return nil, fmt.Errorf("%w: unexpected status %d", domain.ErrFetchFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return body, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptFeed)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer f.closeBody(ctx, resp, rawURL)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("do request: unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return body, nil
}

func (f *Fetcher) closeBody(ctx context.Context, resp *http.Response, rawURL string) {
	if err := resp.Body.Close(); err != nil {
		f.log.ErrorContext(ctx, "Failed to close response body",
			"error", err,
			"url", rawURL)
	}
}
