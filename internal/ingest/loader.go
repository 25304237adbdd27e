package ingest

import (
	"context"

	"feedkeeper/internal/domain"
	"feedkeeper/internal/source"
)

// Loader turns a feed URL into a normalized ParsedFeed. Split out as an
// interface so the service can be tested without network access.
type Loader interface {
	Load(ctx context.Context, kind domain.SourceKind, feedURL string) (*domain.ParsedFeed, error)
}

type feedFetcher interface {
	FetchFeed(ctx context.Context, feedURL string) ([]byte, error)
	FetchSubreddit(ctx context.Context, name string) ([]byte, error)
}

type feedParser interface {
	Parse(ctx context.Context, kind domain.SourceKind, raw []byte) (*domain.ParsedFeed, error)
}

// Pipeline is the production Loader: fetch the raw payload with the strategy
// the kind dictates, then parse it.
type Pipeline struct {
	fetcher feedFetcher
	parser  feedParser
}

func NewPipeline(fetcher feedFetcher, parser feedParser) *Pipeline {
	return &Pipeline{fetcher: fetcher, parser: parser}
}

func (p *Pipeline) Load(
	ctx context.Context,
	kind domain.SourceKind,
	feedURL string,
) (*domain.ParsedFeed, error) {
	var (
		raw []byte
		err error
	)

	if kind == domain.KindReddit {
		// Stored Reddit URLs are canonical, so the subreddit name is
		// recoverable from the URL itself.
		classified := source.Classify(feedURL)
		raw, err = p.fetcher.FetchSubreddit(ctx, classified.Subreddit)
	} else {
		raw, err = p.fetcher.FetchFeed(ctx, feedURL)
	}
	if err != nil {
		return nil, err
	}

	return p.parser.Parse(ctx, kind, raw)
}
