package textutil

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

const (
	// DescriptionMaxChars caps article descriptions after tag stripping.
	DescriptionMaxChars = 300

	maxSlugRunes = 80
	ellipsis     = "..."
)

// StripHTML removes markup from a fragment and collapses whitespace.
func StripHTML(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}

	return strings.Join(strings.Fields(doc.Text()), " ")
}

// SanitizeHTML drops active content (scripts, styles, frames, event
// handlers) from a fragment and returns the remaining markup. Layout is
// preserved as-is.
func SanitizeHTML(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return StripHTML(s)
	}

	doc.Find("script, style, iframe, object, embed").Remove()
	doc.Find("*").Each(func(_ int, sel *goquery.Selection) {
		for _, node := range sel.Nodes {
			kept := node.Attr[:0]
			for _, attr := range node.Attr {
				if strings.HasPrefix(strings.ToLower(attr.Key), "on") {
					continue
				}
				kept = append(kept, attr)
			}
			node.Attr = kept
		}
	})

	out, err := doc.Find("body").Html()
	if err != nil {
		return StripHTML(s)
	}

	return strings.TrimSpace(out)
}

// FirstImageSrc returns the src of the first <img> in an HTML fragment.
func FirstImageSrc(s string) (string, bool) {
	if !strings.Contains(s, "<img") {
		return "", false
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return "", false
	}

	src, ok := doc.Find("img[src]").First().Attr("src")
	src = strings.TrimSpace(src)

	return src, ok && src != ""
}

// Truncate cuts s to at most max runes, backing up to the previous word
// boundary, and appends an ellipsis. Text at or under the limit is returned
// unchanged. Input is expected to be already stripped of markup.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}

	cut := string(runes[:max])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}

	cut = strings.TrimSpace(cut)
	if cut == "" {
		cut = string(runes[:max])
	}

	return cut + ellipsis
}

// Slugify derives a URL-safe identifier from a title: lowercase letters and
// digits with single hyphens between words. Titles with nothing usable
// degrade to "untitled".
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	var b strings.Builder
	pendingHyphen := false

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			pendingHyphen = b.Len() > 0
			continue
		}

		if pendingHyphen {
			b.WriteByte('-')
			pendingHyphen = false
		}
		b.WriteRune(r)
	}

	slug := b.String()
	if runes := []rune(slug); len(runes) > maxSlugRunes {
		slug = strings.TrimSuffix(string(runes[:maxSlugRunes]), "-")
	}

	if slug == "" {
		return "untitled"
	}

	return slug
}
