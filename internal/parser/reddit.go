package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"time"

	"feedkeeper/internal/domain"
	"feedkeeper/internal/textutil"

	"mvdan.cc/xurls/v2"
)

const redditSelfPostPlaceholder = "Self post on Reddit"

var absoluteURLRe = xurls.Strict()

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Author     string  `json:"author"`
	Selftext   string  `json:"selftext"`
	Permalink  string  `json:"permalink"`
	URL        string  `json:"url"`
	IsSelf     bool    `json:"is_self"`
	Thumbnail  string  `json:"thumbnail"`
	Subreddit  string  `json:"subreddit"`
	CreatedUTC float64 `json:"created_utc"`
}

func (p *Parser) parseRedditListing(
	ctx context.Context,
	raw []byte,
) (*domain.ParsedFeed, error) {
	var listing redditListing
	if err := json.Unmarshal(raw, &listing); err != nil {
		return nil, fmt.Errorf("decode subreddit listing: %w", err)
	}

	if len(listing.Data.Children) == 0 {
		return nil, domain.ErrNoPosts
	}

	parsed := &domain.ParsedFeed{}
	now := time.Now().UTC()

	for _, child := range listing.Data.Children {
		candidate, ok := p.parseRedditPost(ctx, child.Data, now)
		if !ok {
			continue
		}

		if parsed.Title == "" && child.Data.Subreddit != "" {
			parsed.Title = "r/" + child.Data.Subreddit
		}

		parsed.Articles = append(parsed.Articles, candidate)
	}

	if len(parsed.Articles) == 0 {
		return nil, domain.ErrNoArticles
	}

	return parsed, nil
}

func (p *Parser) parseRedditPost(
	ctx context.Context,
	post redditPost,
	now time.Time,
) (domain.Candidate, bool) {
	title := strings.TrimSpace(post.Title)

	permalink := ""
	if strings.TrimSpace(post.Permalink) != "" {
		permalink = "https://www.reddit.com" + strings.TrimSpace(post.Permalink)
	}

	// Self posts link to the discussion; link posts to the external URL.
	link := permalink
	if !post.IsSelf && strings.TrimSpace(post.URL) != "" {
		link = strings.TrimSpace(post.URL)
	}

	if title == "" || link == "" {
		p.log.WarnContext(ctx, "Skipping Reddit post without title or link",
			"postID", post.ID,
			"subreddit", post.Subreddit)

		return domain.Candidate{}, false
	}

	published := now
	if post.CreatedUTC > 0 {
		published = time.Unix(int64(post.CreatedUTC), 0).UTC()
	}

	selftext := strings.TrimSpace(post.Selftext)

	var description, content string
	switch {
	case post.IsSelf && selftext != "":
		description = textutil.Truncate(textutil.StripHTML(selftext), textutil.DescriptionMaxChars)
		content = selftextHTML(selftext)
	case post.IsSelf:
		description = redditSelfPostPlaceholder
		content = "<p>" + redditSelfPostPlaceholder + "</p>"
	default:
		description = "External link: " + link
		content = linkPostHTML(link)
	}

	return domain.Candidate{
		Title:           title,
		Link:            link,
		Description:     description,
		Content:         content,
		ImageURL:        redditThumbnail(post.Thumbnail),
		PublishedAt:     published,
		SourceLabel:     post.Author,
		RedditPostID:    post.ID,
		RedditPermalink: permalink,
		Subreddit:       post.Subreddit,
	}, true
}

// redditThumbnail accepts only absolute HTTP(S) URLs; Reddit fills the field
// with the sentinels "self" and "default" when there is no preview.
func redditThumbnail(thumb string) string {
	thumb = strings.TrimSpace(thumb)

	if thumb == "" || thumb == "self" || thumb == "default" {
		return ""
	}
	if !strings.HasPrefix(thumb, "http://") && !strings.HasPrefix(thumb, "https://") {
		return ""
	}
	if absoluteURLRe.FindString(thumb) != thumb {
		return ""
	}

	return thumb
}

// selftextHTML reformats plain self-text into paragraph/line-break markup.
func selftextHTML(text string) string {
	var b strings.Builder

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		lines := strings.Split(para, "\n")
		for i := range lines {
			lines[i] = html.EscapeString(strings.TrimSpace(lines[i]))
		}

		b.WriteString("<p>")
		b.WriteString(strings.Join(lines, "<br>"))
		b.WriteString("</p>")
	}

	return b.String()
}

func linkPostHTML(link string) string {
	escaped := html.EscapeString(link)

	return fmt.Sprintf(
		`<p>This is a link post.</p><p><a href="%s" target="_blank" rel="noopener noreferrer">%s</a></p>`,
		escaped, escaped)
}
