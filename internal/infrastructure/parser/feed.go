package parser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"NewsRadar/internal/domain"
)

const (
	userAgent       = "NewsRadar/1.0"
	maxFeedBytes    = 4 << 20
	minSummaryRunes = 20
)

// feedReader downloads and parses RSS/Atom documents.
type feedReader struct {
	client    *http.Client
	converter *md.Converter
}

func newFeedReader(client *http.Client) feedReader {
	if client == nil {
		client = &http.Client{Timeout: 12 * time.Second}
	}
	return feedReader{
		client:    client,
		converter: md.NewConverter("", true, nil),
	}
}

func (f feedReader) fetchFeed(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned %s", resp.Status)
	}

	feed, err := gofeed.NewParser().Parse(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

// normalize turns feed entries into NewsItems. Entries without a title or
// a link are dropped; limit <= 0 keeps everything.
func (f feedReader) normalize(feed *gofeed.Feed, topic string, limit int) []domain.NewsItem {
	items := make([]domain.NewsItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if limit > 0 && len(items) >= limit {
			break
		}
		if entry == nil {
			continue
		}
		item, ok := f.normalizeEntry(entry, topic)
		if !ok {
			continue
		}
		items = append(items, item)
	}
	return items
}

func (f feedReader) normalizeEntry(entry *gofeed.Item, topic string) (domain.NewsItem, bool) {
	title := strings.TrimSpace(entry.Title)
	link := strings.TrimSpace(entry.Link)
	if title == "" || link == "" {
		return domain.NewsItem{}, false
	}

	headline, publisher := SplitPublisher(title)
	descText, descPublisher := describe(entry.Description)
	if publisher == "" {
		publisher = descPublisher
	}
	if publisher == "" && entry.Author != nil {
		publisher = strings.TrimSpace(entry.Author.Name)
	}

	item := domain.NewsItem{
		Headline:  headline,
		URL:       link,
		Publisher: publisher,
		Topic:     topic,
	}

	if hasOwnContent(descText, title, headline, publisher) {
		if summary, err := f.converter.ConvertString(entry.Description); err == nil {
			item.Summary = strings.TrimSpace(summary)
		}
	}

	switch {
	case entry.PublishedParsed != nil:
		item.PublishedAt = entry.PublishedParsed.UTC()
	case entry.UpdatedParsed != nil:
		item.PublishedAt = entry.UpdatedParsed.UTC()
	}

	return item, true
}

// SplitPublisher splits "headline - publisher" on the last separator. The
// headline is returned unchanged when no separator is present.
func SplitPublisher(title string) (string, string) {
	title = strings.TrimSpace(title)
	idx := strings.LastIndex(title, " - ")
	if idx <= 0 {
		return title, ""
	}
	headline := strings.TrimSpace(title[:idx])
	publisher := strings.TrimSpace(title[idx+3:])
	if headline == "" || publisher == "" {
		return title, ""
	}
	return headline, publisher
}

// describe extracts the visible text of an HTML description and the
// publisher label Google News wraps in a <font> element.
func describe(html string) (string, string) {
	if strings.TrimSpace(html) == "" {
		return "", ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", ""
	}
	publisher := strings.TrimSpace(doc.Find("font").Last().Text())
	text := strings.Join(strings.Fields(doc.Text()), " ")
	return text, publisher
}

// hasOwnContent reports whether a description says more than the title
// and publisher it usually repeats.
func hasOwnContent(descText string, parts ...string) bool {
	rest := descText
	for _, p := range parts {
		if p == "" {
			continue
		}
		rest = strings.ReplaceAll(rest, p, "")
	}
	rest = strings.TrimSpace(strings.Trim(rest, "\u00a0 -|·"))
	return len([]rune(rest)) >= minSummaryRunes
}
