package domain

import (
	"fmt"
	"strings"
)

// IdentityPolicy selects how an item's deduplication key is derived.
type IdentityPolicy string

const (
	// IdentityLinkFirst uses the URL when usable and falls back to the headline.
	IdentityLinkFirst IdentityPolicy = "link"
	// IdentityHeadline always uses the normalized headline.
	IdentityHeadline IdentityPolicy = "headline"
)

// ParseIdentityPolicy maps a config value onto a policy; empty means
// link first.
func ParseIdentityPolicy(value string) (IdentityPolicy, error) {
	switch IdentityPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case IdentityLinkFirst, "":
		return IdentityLinkFirst, nil
	case IdentityHeadline:
		return IdentityHeadline, nil
	default:
		return "", fmt.Errorf("unknown identity policy %q", value)
	}
}

// NormalizeHeadline lower-cases, trims and collapses internal whitespace.
func NormalizeHeadline(headline string) string {
	return strings.ToLower(strings.Join(strings.Fields(headline), " "))
}

// Key returns the deduplication identity of an item under the given policy.
// An empty result means the item has no identity and must be dropped.
func Key(item NewsItem, policy IdentityPolicy) string {
	if policy == IdentityLinkFirst && IsUsableURL(item.URL) {
		return strings.TrimSpace(item.URL)
	}
	return NormalizeHeadline(item.Headline)
}
