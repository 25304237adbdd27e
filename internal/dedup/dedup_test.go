package dedup

import (
	"testing"

	"feedkeeper/internal/domain"
)

func linkCandidate(title, link string) domain.Candidate {
	return domain.Candidate{Title: title, Link: link}
}

func redditCandidate(title, postID, link string) domain.Candidate {
	return domain.Candidate{Title: title, Link: link, RedditPostID: postID}
}

func setOf(keys ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}

	return s
}

func TestFilterNewByLink(t *testing.T) {
	candidates := []domain.Candidate{
		linkCandidate("stored already", "https://example.com/a"),
		linkCandidate("genuinely new", "https://example.com/b"),
		linkCandidate("different title, same link", "https://example.com/b"),
	}

	fresh := FilterNew(domain.KindRSS, candidates, Keys{Links: setOf("https://example.com/a")})

	if len(fresh) != 1 {
		t.Fatalf("expected 1 fresh candidate, got %d", len(fresh))
	}
	if fresh[0].Title != "genuinely new" {
		t.Errorf("wrong candidate kept: %q", fresh[0].Title)
	}
}

func TestFilterNewByRedditPostID(t *testing.T) {
	candidates := []domain.Candidate{
		redditCandidate("seen", "p1", "https://www.reddit.com/r/x/comments/p1/"),
		redditCandidate("new", "p2", "https://www.reddit.com/r/x/comments/p2/"),
		// Same post ID under a different permalink must still be a duplicate.
		redditCandidate("new again", "p2", "https://www.reddit.com/r/x/comments/p2/other/"),
	}

	fresh := FilterNew(domain.KindReddit, candidates, Keys{PostIDs: setOf("p1")})

	if len(fresh) != 1 {
		t.Fatalf("expected 1 fresh candidate, got %d", len(fresh))
	}
	if fresh[0].RedditPostID != "p2" {
		t.Errorf("wrong candidate kept: %q", fresh[0].RedditPostID)
	}
}

func TestFilterNewCollapsesInBatchDuplicates(t *testing.T) {
	// Ten items, two sharing a link: exactly nine survive.
	var candidates []domain.Candidate
	for i := 0; i < 9; i++ {
		candidates = append(candidates, linkCandidate("post", "https://example.com/"+string(rune('a'+i))))
	}
	candidates = append(candidates, linkCandidate("dupe", "https://example.com/a"))

	fresh := FilterNew(domain.KindRSS, candidates, Keys{})

	if len(fresh) != 9 {
		t.Fatalf("expected 9 fresh candidates, got %d", len(fresh))
	}
}

func TestFilterNewDoesNotMutateExistingKeys(t *testing.T) {
	existing := Keys{Links: setOf("https://example.com/a")}

	FilterNew(domain.KindRSS, []domain.Candidate{
		linkCandidate("new", "https://example.com/b"),
	}, existing)

	if len(existing.Links) != 1 {
		t.Errorf("existing key set mutated: %v", existing.Links)
	}
}

func TestFilterNewZeroFreshIsEmpty(t *testing.T) {
	fresh := FilterNew(domain.KindRSS, []domain.Candidate{
		linkCandidate("old", "https://example.com/a"),
	}, Keys{Links: setOf("https://example.com/a")})

	if len(fresh) != 0 {
		t.Fatalf("expected no fresh candidates, got %d", len(fresh))
	}
}

func TestAssignSlugsSuffixesInFirstSeenOrder(t *testing.T) {
	candidates := []domain.Candidate{
		linkCandidate("Big News", "https://example.com/1"),
		linkCandidate("Big News", "https://example.com/2"),
		linkCandidate("Big News", "https://example.com/3"),
		linkCandidate("Other", "https://example.com/4"),
	}

	out := AssignSlugs(candidates, nil)

	want := []string{"big-news", "big-news-2", "big-news-3", "other"}
	for i, w := range want {
		if out[i].Slug != w {
			t.Errorf("slug[%d] = %q, want %q", i, out[i].Slug, w)
		}
	}
}

func TestAssignSlugsAvoidsStoredSlugs(t *testing.T) {
	out := AssignSlugs(
		[]domain.Candidate{linkCandidate("Big News", "https://example.com/1")},
		setOf("big-news", "big-news-2"),
	)

	if out[0].Slug != "big-news-3" {
		t.Errorf("expected probe past stored slugs, got %q", out[0].Slug)
	}
}

func TestUniqueSlug(t *testing.T) {
	tests := []struct {
		name  string
		base  string
		taken map[string]struct{}
		want  string
	}{
		{"Free", "hello", nil, "hello"},
		{"FirstSuffix", "hello", setOf("hello"), "hello-2"},
		{"ProbesSequentially", "hello", setOf("hello", "hello-2", "hello-3"), "hello-4"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := UniqueSlug(test.base, test.taken); got != test.want {
				t.Errorf("UniqueSlug(%q) = %q, want %q", test.base, got, test.want)
			}
		})
	}
}
