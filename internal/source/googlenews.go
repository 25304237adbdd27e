package source

import (
	"net/url"
	"strings"
)

// googleNewsTitle derives a human-readable title from a Google News RSS URL.
// Malformed URLs degrade to the generic label rather than erroring.
func googleNewsTitle(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return genericGoogleNews
	}

	idx := strings.Index(u.Path, "/rss")
	if idx < 0 {
		return genericGoogleNews
	}

	rest := strings.Trim(u.Path[idx+len("/rss"):], "/")

	switch {
	case rest == "":
		return "Top Stories"
	case strings.HasPrefix(rest, "topics/"):
		id := strings.SplitN(rest, "/", 3)[1]
		if name, ok := googleNewsTopics[id]; ok {
			return name
		}
		return genericGoogleNews
	case rest == "search":
		return searchTitle(u.Query().Get("q"))
	default:
		return genericGoogleNews
	}
}

// searchTitle turns a decoded search query into a title. Queries scoped to a
// site with allinurl: are titled after the domain; otherwise the query itself
// is used with recency qualifiers (when:24h and friends) stripped.
func searchTitle(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return genericGoogleNews
	}

	if m := allinurlRe.FindStringSubmatch(query); m != nil {
		domainPart := strings.TrimSpace(m[1])
		label := strings.SplitN(domainPart, ".", 2)[0]
		if label != "" {
			return genericGoogleNews + " - " + strings.ToUpper(label)
		}
	}

	cleaned := whenRe.ReplaceAllString(query, "")
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if cleaned == "" {
		return genericGoogleNews
	}

	return genericGoogleNews + " - " + cleaned
}
