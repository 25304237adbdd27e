// Package dedup decides which candidate articles are genuinely new and
// assigns collision-free slugs. Identity is source-dependent: Reddit posts
// are keyed by their stable post ID, everything else by link.
package dedup

import (
	"fmt"

	"feedkeeper/internal/domain"
	"feedkeeper/internal/textutil"
)

// Keys holds a feed's stored identity keys.
type Keys struct {
	Links   map[string]struct{}
	PostIDs map[string]struct{}
}

// FilterNew returns the candidates absent from the existing keys, in input
// order. Duplicates within the batch itself are collapsed too: the first
// occurrence wins.
func FilterNew(
	kind domain.SourceKind,
	candidates []domain.Candidate,
	existing Keys,
) []domain.Candidate {
	seenLinks := cloneSet(existing.Links)
	seenPostIDs := cloneSet(existing.PostIDs)

	fresh := make([]domain.Candidate, 0, len(candidates))

	for _, candidate := range candidates {
		var key string
		seen := seenLinks

		// Reddit permalinks can legitimately repeat across crawls; the post
		// ID is the stable identity there.
		if kind == domain.KindReddit && candidate.RedditPostID != "" {
			key = candidate.RedditPostID
			seen = seenPostIDs
		} else {
			key = candidate.Link
		}

		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}

		seen[key] = struct{}{}
		fresh = append(fresh, candidate)
	}

	return fresh
}

// AssignSlugs slugifies each candidate's title, resolving collisions against
// the taken set and within the batch by appending numeric suffixes in
// first-seen order.
func AssignSlugs(
	candidates []domain.Candidate,
	taken map[string]struct{},
) []domain.Candidate {
	used := cloneSet(taken)

	out := make([]domain.Candidate, len(candidates))
	for i, candidate := range candidates {
		slug := UniqueSlug(textutil.Slugify(candidate.Title), used)
		used[slug] = struct{}{}

		candidate.Slug = slug
		out[i] = candidate
	}

	return out
}

// UniqueSlug probes base, base-2, base-3, ... until a free slug is found.
// The taken set is not modified.
func UniqueSlug(base string, taken map[string]struct{}) string {
	if _, ok := taken[base]; !ok {
		return base
	}

	for i := 2; ; i++ {
		slug := fmt.Sprintf("%s-%d", base, i)
		if _, ok := taken[slug]; !ok {
			return slug
		}
	}
}

func cloneSet(src map[string]struct{}) map[string]struct{} {
	dst := make(map[string]struct{}, len(src))
	for k := range src {
		dst[k] = struct{}{}
	}

	return dst
}
