package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"NewsRadar/internal/domain"
	"NewsRadar/internal/scanner"
)

const googleNewsSearchURL = "https://news.google.com/rss/search"

// GoogleNewsScanner runs free-text searches against the Google News RSS
// endpoint.
type GoogleNewsScanner struct {
	feedReader
	baseURL string
	logger  *slog.Logger
}

// NewGoogleNewsScanner wires an HTTP client; a nil client gets a 12s timeout.
func NewGoogleNewsScanner(client *http.Client, log *slog.Logger) *GoogleNewsScanner {
	return &GoogleNewsScanner{
		feedReader: newFeedReader(client),
		baseURL:    googleNewsSearchURL,
		logger:     log,
	}
}

// Name identifies the strategy inside the registry.
func (g *GoogleNewsScanner) Name() string {
	return "googlenews"
}

// Scan fetches one search query.
func (g *GoogleNewsScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.NewsItem, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("empty query for topic %s", req.Topic.Name)
	}

	searchURL, err := buildSearchURL(g.baseURL, req.Query, req.Locale)
	if err != nil {
		return nil, err
	}

	feed, err := g.fetchFeed(ctx, searchURL)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", req.Query, err)
	}

	items := g.normalize(feed, req.Topic.Name, req.Limit)
	if g.logger != nil {
		g.logger.Debug("google news query done", "topic", req.Topic.Name, "query", req.Query,
			"entries", len(feed.Items), "items", len(items))
	}
	return items, nil
}

func buildSearchURL(base, query string, loc scanner.Locale) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid search url %s: %w", base, err)
	}

	q := parsed.Query()
	q.Set("q", query)
	if loc.Language != "" {
		q.Set("hl", loc.Language)
	}
	if loc.Region != "" {
		q.Set("gl", loc.Region)
	}
	if loc.Edition != "" {
		q.Set("ceid", loc.Edition)
	}
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}
