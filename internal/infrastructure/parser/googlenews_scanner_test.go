package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"NewsRadar/internal/domain"
	"NewsRadar/internal/scanner"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>search results</title>
  <item>
    <title>台積電法說會 釋出利多 - 經濟日報</title>
    <link>https://news.example/a</link>
    <pubDate>Mon, 02 Mar 2026 01:00:00 GMT</pubDate>
    <description><![CDATA[<a href="https://news.example/a">台積電法說會 釋出利多</a>&nbsp;&nbsp;<font color="#6f6f6f">經濟日報</font>]]></description>
  </item>
  <item>
    <title>Entry without a link</title>
  </item>
  <item>
    <title>Fed holds rates steady</title>
    <link>https://news.example/b</link>
    <description><![CDATA[<p>The Federal Reserve left its benchmark rate unchanged on Wednesday, citing sticky inflation.</p>]]></description>
  </item>
</channel>
</rss>`

func TestBuildSearchURL(t *testing.T) {
	t.Parallel()

	u, err := buildSearchURL(googleNewsSearchURL, "台股 OR 加權指數", scanner.Locale{
		Language: "zh-TW",
		Region:   "TW",
		Edition:  "TW:zh-Hant",
	})
	if err != nil {
		t.Fatalf("buildSearchURL returned error: %v", err)
	}

	parsed, err := url.Parse(u)
	if err != nil {
		t.Fatalf("parse result: %v", err)
	}
	if parsed.Host != "news.google.com" || parsed.Path != "/rss/search" {
		t.Fatalf("unexpected url: %s", u)
	}

	q := parsed.Query()
	if q.Get("q") != "台股 OR 加權指數" {
		t.Fatalf("unexpected q: %s", q.Get("q"))
	}
	if q.Get("hl") != "zh-TW" || q.Get("gl") != "TW" || q.Get("ceid") != "TW:zh-Hant" {
		t.Fatalf("unexpected locale params: %s", parsed.RawQuery)
	}
}

func TestBuildSearchURLWithoutLocale(t *testing.T) {
	t.Parallel()

	u, err := buildSearchURL(googleNewsSearchURL, "bitcoin", scanner.Locale{})
	if err != nil {
		t.Fatalf("buildSearchURL returned error: %v", err)
	}
	if strings.Contains(u, "hl=") || strings.Contains(u, "ceid=") {
		t.Fatalf("empty locale leaked into url: %s", u)
	}
}

func TestSplitPublisher(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, headline, publisher string
	}{
		{"台積電法說會 - 經濟日報", "台積電法說會", "經濟日報"},
		{"S&P 500 - record high - Reuters", "S&P 500 - record high", "Reuters"},
		{"No publisher here", "No publisher here", ""},
		{" - Reuters", "- Reuters", ""},
		{"Trailing - ", "Trailing -", ""},
	}
	for _, tc := range cases {
		h, p := SplitPublisher(tc.in)
		if h != tc.headline || p != tc.publisher {
			t.Fatalf("SplitPublisher(%q) = (%q, %q), want (%q, %q)", tc.in, h, p, tc.headline, tc.publisher)
		}
	}
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	text, publisher := describe(`<a href="https://x">Headline</a>&nbsp;&nbsp;<font color="#6f6f6f">Bloomberg</font>`)
	if publisher != "Bloomberg" {
		t.Fatalf("unexpected publisher: %q", publisher)
	}
	if text != "Headline Bloomberg" {
		t.Fatalf("unexpected text: %q", text)
	}

	text, publisher = describe("   ")
	if text != "" || publisher != "" {
		t.Fatalf("blank description should yield nothing, got (%q, %q)", text, publisher)
	}
}

func TestGoogleNewsScannerScan(t *testing.T) {
	t.Parallel()

	var gotQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		if ua := r.Header.Get("User-Agent"); ua != userAgent {
			t.Errorf("unexpected user agent: %s", ua)
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	sc := NewGoogleNewsScanner(server.Client(), nil)
	sc.baseURL = server.URL + "/rss/search"

	req := scanner.Request{
		Topic:  domain.Topic{Name: "tw"},
		Query:  "台股",
		Locale: scanner.Locale{Language: "zh-TW", Region: "TW", Edition: "TW:zh-Hant"},
	}

	items, err := sc.Scan(context.Background(), req)
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}

	if gotQuery.Get("q") != "台股" || gotQuery.Get("ceid") != "TW:zh-Hant" {
		t.Fatalf("unexpected query: %v", gotQuery)
	}

	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	first := items[0]
	if first.Headline != "台積電法說會 釋出利多" {
		t.Fatalf("unexpected headline: %s", first.Headline)
	}
	if first.Publisher != "經濟日報" {
		t.Fatalf("unexpected publisher: %s", first.Publisher)
	}
	if first.Summary != "" {
		t.Fatalf("echo description should not become a summary: %q", first.Summary)
	}
	if first.Topic != "tw" {
		t.Fatalf("unexpected topic: %s", first.Topic)
	}
	want := time.Date(2026, time.March, 2, 1, 0, 0, 0, time.UTC)
	if !first.PublishedAt.Equal(want) {
		t.Fatalf("unexpected published time: %v", first.PublishedAt)
	}

	second := items[1]
	if second.HasTimestamp() {
		t.Fatalf("expected no timestamp, got %v", second.PublishedAt)
	}
	if !strings.Contains(second.Summary, "benchmark rate unchanged") {
		t.Fatalf("unexpected summary: %q", second.Summary)
	}
	if second.Publisher != "" {
		t.Fatalf("unexpected publisher: %s", second.Publisher)
	}
}

func TestGoogleNewsScannerLimit(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	sc := NewGoogleNewsScanner(server.Client(), nil)
	sc.baseURL = server.URL

	items, err := sc.Scan(context.Background(), scanner.Request{Topic: domain.Topic{Name: "tw"}, Query: "x", Limit: 1})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
}

func TestGoogleNewsScannerHTTPError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	sc := NewGoogleNewsScanner(server.Client(), nil)
	sc.baseURL = server.URL

	if _, err := sc.Scan(context.Background(), scanner.Request{Query: "x"}); err == nil {
		t.Fatalf("expected error for 503 response")
	}
	if _, err := sc.Scan(context.Background(), scanner.Request{Query: "  "}); err == nil {
		t.Fatalf("expected error for empty query")
	}
}

func TestRSSScannerScan(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	sc := NewRSSScanner(server.Client(), nil)
	items, err := sc.Scan(context.Background(), scanner.Request{Topic: domain.Topic{Name: "us"}, Query: server.URL + "/feed.xml"})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(items) != 2 || items[1].Topic != "us" {
		t.Fatalf("unexpected items: %+v", items)
	}

	if _, err := sc.Scan(context.Background(), scanner.Request{Query: "feed.xml"}); err == nil {
		t.Fatalf("expected error for relative feed url")
	}
}
