package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"NewsRadar/internal/domain"
	"NewsRadar/internal/scanner"
)

// RSSScanner reads a plain RSS/Atom feed; the request query is the feed URL.
type RSSScanner struct {
	feedReader
	logger *slog.Logger
}

// NewRSSScanner wires an HTTP client; a nil client gets a 12s timeout.
func NewRSSScanner(client *http.Client, log *slog.Logger) *RSSScanner {
	return &RSSScanner{feedReader: newFeedReader(client), logger: log}
}

// Name identifies the strategy inside the registry.
func (r *RSSScanner) Name() string {
	return "rss"
}

// Scan fetches and normalizes the feed at req.Query.
func (r *RSSScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.NewsItem, error) {
	if !domain.IsUsableURL(req.Query) {
		return nil, fmt.Errorf("rss feed url %q is not an absolute http(s) url", req.Query)
	}

	feed, err := r.fetchFeed(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", req.Query, err)
	}

	items := r.normalize(feed, req.Topic.Name, req.Limit)
	if r.logger != nil {
		r.logger.Debug("rss feed done", "topic", req.Topic.Name, "feed", req.Query, "items", len(items))
	}
	return items, nil
}
