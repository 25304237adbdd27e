// Package source decides which ingestion strategy applies to a URL and
// derives canonical identifiers for non-standard sources. Classification
// never fails: anything unrecognized is treated as a plain RSS/Atom source
// and only errors later, at fetch or parse time.
package source

import (
	"fmt"
	"regexp"
	"strings"

	"feedkeeper/internal/domain"

	"mvdan.cc/xurls/v2"
)

const (
	redditHost          = "www.reddit.com"
	genericGoogleNews   = "Google News"
	googleNewsRSSMarker = "news.google.com/rss"
)

var (
	redditRe   = regexp.MustCompile(`^(?:https?://)?(?:www\.)?reddit\.com/r/([A-Za-z0-9_]+)`)
	whenRe     = regexp.MustCompile(`(?i)\bwhen:\d+[a-z]*`)
	allinurlRe = regexp.MustCompile(`allinurl:([^\s&]+)`)

	relaxedURLRe = xurls.Relaxed()
)

// Known Google News topic feeds, keyed by the opaque topic ID that appears
// in /rss/topics/<id> URLs.
var googleNewsTopics = map[string]string{
	"CAAqJggKIiBDQkFTRWdvSUwyMHZNRFZxYUdjU0FtVnVHZ0pWVXlnQVAB": "World",
	"CAAqJggKIiBDQkFTRWdvSUwyMHZNRGx6TVdZU0FtVnVHZ0pWVXlnQVAB": "Business",
	"CAAqJggKIiBDQkFTRWdvSUwyMHZNRGRqTVhZU0FtVnVHZ0pWVXlnQVAB": "Technology",
	"CAAqJggKIiBDQkFTRWdvSUwyMHZNREpxYW5RU0FtVnVHZ0pWVXlnQVAB": "Entertainment",
	"CAAqJggKIiBDQkFTRWdvSUwyMHZNRFp1ZEdvU0FtVnVHZ0pWVXlnQVAB": "Sports",
	"CAAqJggKIiBDQkFTRWdvSUwyMHZNRFp0Y1RjU0FtVnVHZ0pWVXlnQVAB": "Science",
	"CAAqIQgKIhtDQkFTRGdvSUwyMHZNR3QwTlRFU0FtVnVLQUFQAQ":       "Health",
}

// Classified is the result of inspecting one raw URL.
type Classified struct {
	Kind      domain.SourceKind
	URL       string // canonical
	Title     string // derived; empty for plain RSS (the parser supplies it)
	Subreddit string // set for Reddit sources
}

// Classify inspects a raw URL string and picks the ingestion strategy.
func Classify(raw string) Classified {
	trimmed := strings.TrimSpace(raw)

	if m := redditRe.FindStringSubmatch(trimmed); m != nil {
		name := m[1]

		// Protocol and www. spelling variants collapse to one canonical
		// identity so the same subreddit cannot be subscribed twice.
		return Classified{
			Kind:      domain.KindReddit,
			URL:       fmt.Sprintf("https://%s/r/%s", redditHost, name),
			Title:     "r/" + name,
			Subreddit: name,
		}
	}

	normalized := normalizeURL(trimmed)

	if strings.Contains(normalized, googleNewsRSSMarker) {
		return Classified{
			Kind:  domain.KindGoogleNews,
			URL:   normalized,
			Title: googleNewsTitle(normalized),
		}
	}

	return Classified{Kind: domain.KindRSS, URL: normalized}
}

// normalizeURL pulls the first URL out of possibly messy subscribe input and
// ensures it carries a scheme.
func normalizeURL(raw string) string {
	if m := relaxedURLRe.FindString(raw); m != "" {
		raw = m
	}

	if raw != "" && !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	return raw
}
