// Package classifier assigns a severity tier and a sentiment to headlines
// by keyword containment. Latin keywords match at the start of a word, so
// inflected forms count.
package classifier

import (
	"fmt"
	"strings"

	"NewsRadar/internal/domain"
)

// Classifier is immutable after construction and safe for concurrent use.
type Classifier struct {
	major            []term
	medium           []term
	bullish          []term
	bearish          []term
	includePublisher bool
}

// Option tweaks a Classifier.
type Option func(*Classifier)

// WithPublisher makes ClassifyItem match against the publisher as well.
func WithPublisher(enabled bool) Option {
	return func(c *Classifier) { c.includePublisher = enabled }
}

// New builds a classifier. Bullish and bearish terms must be disjoint.
func New(kw Keywords, opts ...Option) (*Classifier, error) {
	c := &Classifier{
		major:   prepare(kw.Major),
		medium:  prepare(kw.Medium),
		bullish: prepare(kw.Bullish),
		bearish: prepare(kw.Bearish),
	}

	bull := make(map[string]struct{}, len(c.bullish))
	for _, t := range c.bullish {
		bull[t.text] = struct{}{}
	}
	for _, t := range c.bearish {
		if _, dup := bull[t.text]; dup {
			return nil, fmt.Errorf("sentiment term %q is both bullish and bearish", t.text)
		}
	}

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Default returns a classifier over DefaultKeywords.
func Default() *Classifier {
	c, err := New(DefaultKeywords())
	if err != nil {
		panic(err)
	}
	return c
}

// Classify returns the severity and sentiment of headline. It is total:
// any input, including "", yields a result.
func (c *Classifier) Classify(headline string) (domain.Severity, domain.Sentiment) {
	text := strings.ToLower(headline)
	return c.severity(text), c.sentiment(text)
}

// ClassifyItem classifies a deduplicated item and attaches its key.
func (c *Classifier) ClassifyItem(item domain.NewsItem, key string) domain.ClassifiedItem {
	text := item.Headline
	if c.includePublisher && item.Publisher != "" {
		text += " " + item.Publisher
	}
	sev, sent := c.Classify(text)
	return domain.ClassifiedItem{
		Item:      item,
		Key:       key,
		Severity:  sev,
		Sentiment: sent,
	}
}

func (c *Classifier) severity(text string) domain.Severity {
	switch {
	case containsAny(text, c.major):
		return domain.SeverityMajor
	case containsAny(text, c.medium):
		return domain.SeverityMedium
	default:
		return domain.SeverityRoutine
	}
}

func (c *Classifier) sentiment(text string) domain.Sentiment {
	bull := containsAny(text, c.bullish)
	bear := containsAny(text, c.bearish)
	switch {
	case bull && !bear:
		return domain.SentimentBullish
	case bear && !bull:
		return domain.SentimentBearish
	default:
		return domain.SentimentNeutral
	}
}

// term is a lower-cased keyword. Acronyms (written all upper-case in the
// keyword lists) must match a whole word; other Latin terms only need to
// start a word, so inflections like "hacks" or "downgraded" still count.
type term struct {
	text  string
	whole bool
}

func prepare(terms []string) []term {
	out := make([]term, 0, len(terms))
	for _, raw := range terms {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		out = append(out, term{
			text:  strings.ToLower(raw),
			whole: isAcronym(raw),
		})
	}
	return out
}

func isAcronym(s string) bool {
	hasUpper := false
	for i := 0; i < len(s); i++ {
		switch b := s[i]; {
		case b >= 'a' && b <= 'z':
			return false
		case b >= 'A' && b <= 'Z':
			hasUpper = true
		}
	}
	return hasUpper
}

func containsAny(text string, terms []term) bool {
	for _, t := range terms {
		if contains(text, t) {
			return true
		}
	}
	return false
}

// contains reports whether t occurs in text. A Latin term must not be glued
// to a preceding Latin letter or digit ("war" does not match "software");
// CJK terms match anywhere since that script has no word spacing.
func contains(text string, t term) bool {
	for offset := 0; offset <= len(text)-len(t.text); {
		idx := strings.Index(text[offset:], t.text)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(t.text)
		if boundaryBefore(text, start, t.text) && (!t.whole || boundaryAfter(text, end, t.text)) {
			return true
		}
		offset = start + 1
	}
	return false
}

func boundaryBefore(text string, start int, kw string) bool {
	if !isWordByte(kw[0]) || start == 0 {
		return true
	}
	return !isWordByte(text[start-1])
}

func boundaryAfter(text string, end int, kw string) bool {
	if !isWordByte(kw[len(kw)-1]) || end == len(text) {
		return true
	}
	return !isWordByte(text[end])
}

// isWordByte matches ASCII letters and digits only; bytes of multi-byte
// runes never qualify, so CJK neighbours count as boundaries.
func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
