// Package dedupe filters feed candidates down to items that were never
// delivered. Everything here is pure: no I/O, no clocks.
package dedupe

import (
	"sort"
	"strings"
	"time"

	"NewsRadar/internal/domain"
)

// Unique is a surviving candidate together with its identity key.
type Unique struct {
	Item domain.NewsItem
	Key  string
}

// Dedupe drops items without a headline or key, items already present in
// known, and repeats within candidates (first occurrence wins). An item is
// also treated as a repeat when its normalized headline was seen before,
// so overlapping queries that return the same story under different links
// collapse to one. Survivor order follows the input order.
func Dedupe(candidates []domain.NewsItem, known domain.KeySet, policy domain.IdentityPolicy) []Unique {
	seen := make(domain.KeySet, len(candidates))
	out := make([]Unique, 0, len(candidates))

	for _, item := range candidates {
		if strings.TrimSpace(item.Headline) == "" {
			continue
		}
		key := domain.Key(item, policy)
		if key == "" {
			continue
		}
		headline := domain.NormalizeHeadline(item.Headline)

		if known.Has(key) || known.Has(headline) {
			continue
		}
		if seen.Has(key) || seen.Has(headline) {
			continue
		}
		seen.Add(key)
		seen.Add(headline)

		out = append(out, Unique{Item: item, Key: key})
	}

	return out
}

// FilterStale drops items published more than window before now. Items
// without a timestamp are kept: a substituted time is never used here.
// A non-positive window disables the filter.
func FilterStale(items []domain.NewsItem, now time.Time, window time.Duration) []domain.NewsItem {
	if window <= 0 {
		return items
	}
	cutoff := now.Add(-window)
	out := make([]domain.NewsItem, 0, len(items))
	for _, item := range items {
		if item.HasTimestamp() && item.PublishedAt.Before(cutoff) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// FilterStaleUnique is FilterStale for already deduplicated items.
func FilterStaleUnique(items []Unique, now time.Time, window time.Duration) []Unique {
	if window <= 0 {
		return items
	}
	cutoff := now.Add(-window)
	out := make([]Unique, 0, len(items))
	for _, u := range items {
		if u.Item.HasTimestamp() && u.Item.PublishedAt.Before(cutoff) {
			continue
		}
		out = append(out, u)
	}
	return out
}

// OrderByRecency sorts most-recent-first. Items without a timestamp keep
// their survivor order and follow the timestamped ones.
func OrderByRecency(items []Unique) []Unique {
	out := make([]Unique, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		return domain.NewerFirst(out[i].Item, out[j].Item)
	})
	return out
}

// Limit keeps at most n items; n <= 0 means unlimited.
func Limit(items []Unique, n int) []Unique {
	if n <= 0 || len(items) <= n {
		return items
	}
	return items[:n]
}
