package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// TopicKind partitions the pipeline into independently processed markets.
type TopicKind string

const (
	TopicPrimaryMarket   TopicKind = "PRIMARY_MARKET"
	TopicSecondaryMarket TopicKind = "SECONDARY_MARKET"
	TopicCryptoMarket    TopicKind = "CRYPTO_MARKET"
)

// ParseTopicKind accepts the upper-case kind names; empty means primary.
func ParseTopicKind(raw string) (TopicKind, error) {
	switch k := TopicKind(strings.ToUpper(strings.TrimSpace(raw))); k {
	case "":
		return TopicPrimaryMarket, nil
	case TopicPrimaryMarket, TopicSecondaryMarket, TopicCryptoMarket:
		return k, nil
	default:
		return "", fmt.Errorf("unknown topic kind %q", raw)
	}
}

// Topic is a configured market feed processed once per run.
type Topic struct {
	Name        string
	Kind        TopicKind
	Title       string // header title, e.g. "Crypto market flash"
	Label       string // short market label shown on every card
	QuoteSymbol string
	MaxItems    int // per-run cap; 0 uses the pipeline default
}

// NewsItem is a single normalized feed entry. It is never mutated after the
// feed adapter creates it; later stages derive new values from it.
type NewsItem struct {
	Headline    string
	URL         string
	Publisher   string
	Summary     string
	PublishedAt time.Time // zero when the feed did not provide a timestamp
	Topic       string
}

// HasTimestamp reports whether the feed supplied a publish time.
func (n NewsItem) HasTimestamp() bool {
	return !n.PublishedAt.IsZero()
}

// LinkUsable reports whether URL can be rendered as a clickable link.
func (n NewsItem) LinkUsable() bool {
	return IsUsableURL(n.URL)
}

// IsUsableURL accepts absolute http(s) URLs with a host.
func IsUsableURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

// Severity is the importance tier of a headline.
type Severity string

const (
	SeverityMajor   Severity = "MAJOR"
	SeverityMedium  Severity = "MEDIUM"
	SeverityRoutine Severity = "ROUTINE"
)

// Rank orders tiers: MAJOR > MEDIUM > ROUTINE.
func (s Severity) Rank() int {
	switch s {
	case SeverityMajor:
		return 3
	case SeverityMedium:
		return 2
	case SeverityRoutine:
		return 1
	default:
		return 0
	}
}

// Sentiment is the market direction implied by a headline.
type Sentiment string

const (
	SentimentBullish Sentiment = "BULLISH"
	SentimentBearish Sentiment = "BEARISH"
	SentimentNeutral Sentiment = "NEUTRAL"
)

// ClassifiedItem pairs an item with its derived classification and identity.
type ClassifiedItem struct {
	Item      NewsItem
	Key       string
	Severity  Severity
	Sentiment Sentiment
}

// NewerFirst orders timestamped items most-recent-first; undated items sort
// after dated ones and compare equal among themselves.
func NewerFirst(a, b NewsItem) bool {
	switch {
	case a.HasTimestamp() && b.HasTimestamp():
		return a.PublishedAt.After(b.PublishedAt)
	case a.HasTimestamp():
		return true
	default:
		return false
	}
}
