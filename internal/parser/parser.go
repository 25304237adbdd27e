// Package parser transforms raw feed bytes (RSS 2.0, Atom, or a Reddit JSON
// listing) into one normalized article shape. Items that cannot be used are
// skipped and logged; only structural problems or an empty result fail the
// whole parse.
package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"feedkeeper/internal/domain"
	"feedkeeper/internal/textutil"

	"github.com/mmcdole/gofeed"
)

type Parser struct {
	lib *gofeed.Parser
	log *slog.Logger
}

func New(log *slog.Logger) *Parser {
	return &Parser{
		lib: gofeed.NewParser(),
		log: log,
	}
}

// Parse normalizes raw bytes according to the source kind. All branches
// converge on the same ParsedFeed shape.
func (p *Parser) Parse(
	ctx context.Context,
	kind domain.SourceKind,
	raw []byte,
) (*domain.ParsedFeed, error) {
	if kind == domain.KindReddit {
		return p.parseRedditListing(ctx, raw)
	}

	return p.parseSyndication(ctx, raw)
}

// parseSyndication handles RSS 2.0 and Atom; gofeed detects the dialect and
// maps both onto one item shape (Atom summary→Description, content→Content,
// RSS content:encoded→Content).
func (p *Parser) parseSyndication(
	ctx context.Context,
	raw []byte,
) (*domain.ParsedFeed, error) {
	feed, err := p.lib.Parse(bytes.NewReader(raw))
	if err != nil {
		if errors.Is(err, gofeed.ErrFeedTypeNotDetected) {
			return nil, domain.ErrNotAFeed
		}

		return nil, fmt.Errorf("parse feed: %w", err)
	}

	title := strings.TrimSpace(feed.Title)
	if title == "" {
		return nil, domain.ErrMissingTitle
	}

	parsed := &domain.ParsedFeed{
		Title:       title,
		Description: textutil.StripHTML(feed.Description),
	}
	if feed.Image != nil {
		parsed.ImageURL = strings.TrimSpace(feed.Image.URL)
	}

	now := time.Now().UTC()

	for _, item := range feed.Items {
		candidate, ok := p.parseItem(ctx, item, title, now)
		if !ok {
			continue
		}

		parsed.Articles = append(parsed.Articles, candidate)
	}

	if len(parsed.Articles) == 0 {
		return nil, domain.ErrNoArticles
	}

	return parsed, nil
}

func (p *Parser) parseItem(
	ctx context.Context,
	item *gofeed.Item,
	feedTitle string,
	now time.Time,
) (domain.Candidate, bool) {
	title := strings.TrimSpace(item.Title)
	link := strings.TrimSpace(item.Link)

	if title == "" || link == "" {
		p.log.WarnContext(ctx, "Skipping item without title or link",
			"feedTitle", feedTitle,
			"itemTitle", title,
			"itemLink", link)

		return domain.Candidate{}, false
	}

	published := now
	if item.PublishedParsed != nil {
		published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		published = *item.UpdatedParsed
	}

	descSource := item.Description
	if strings.TrimSpace(descSource) == "" {
		descSource = item.Content
	}

	content := item.Content
	if strings.TrimSpace(content) == "" {
		content = item.Description
	}

	return domain.Candidate{
		Title:       title,
		Link:        link,
		Description: textutil.Truncate(textutil.StripHTML(descSource), textutil.DescriptionMaxChars),
		Content:     textutil.SanitizeHTML(content),
		ImageURL:    itemImage(item),
		PublishedAt: published,
		SourceLabel: feedTitle,
	}, true
}

// itemImage searches the known image carriers in priority order; the HTML
// scan of description/content is a last resort.
func itemImage(item *gofeed.Item) string {
	for _, enc := range item.Enclosures {
		if enc == nil || strings.TrimSpace(enc.URL) == "" {
			continue
		}
		if enc.Type == "" || strings.HasPrefix(enc.Type, "image/") {
			return strings.TrimSpace(enc.URL)
		}
	}

	if media, ok := item.Extensions["media"]; ok {
		for _, key := range []string{"thumbnail", "content"} {
			for _, ext := range media[key] {
				if u := strings.TrimSpace(ext.Attrs["url"]); u != "" {
					return u
				}
			}
		}
	}

	if item.Image != nil && strings.TrimSpace(item.Image.URL) != "" {
		return strings.TrimSpace(item.Image.URL)
	}

	if item.ITunesExt != nil && strings.TrimSpace(item.ITunesExt.Image) != "" {
		return strings.TrimSpace(item.ITunesExt.Image)
	}

	if src, ok := textutil.FirstImageSrc(item.Description); ok {
		return src
	}
	if src, ok := textutil.FirstImageSrc(item.Content); ok {
		return src
	}

	return ""
}
