package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"NewsRadar/internal/domain"
	"NewsRadar/internal/ports"
)

const defaultEndpoint = "https://query1.finance.yahoo.com/v8/finance/chart"

// YahooClient reads the latest price from the Yahoo chart API.
type YahooClient struct {
	endpoint string
	client   *http.Client
}

var _ ports.QuoteSource = (*YahooClient)(nil)

// NewYahooClient wires an HTTP client; a nil client gets a 12s timeout.
func NewYahooClient(endpoint string, client *http.Client) *YahooClient {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	if client == nil {
		client = &http.Client{Timeout: 12 * time.Second}
	}
	return &YahooClient{endpoint: strings.TrimRight(endpoint, "/"), client: client}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
				PreviousClose      float64 `json:"previousClose"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Quote fetches one symbol.
func (y *YahooClient) Quote(ctx context.Context, symbol string) (domain.Quote, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return domain.Quote{}, fmt.Errorf("empty symbol")
	}

	endpoint := fmt.Sprintf("%s/%s?range=1d&interval=1d", y.endpoint, url.PathEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", "NewsRadar/1.0")

	resp, err := y.client.Do(req)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Quote{}, fmt.Errorf("quote %s: %s", symbol, resp.Status)
	}

	var payload chartResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return domain.Quote{}, fmt.Errorf("decode quote: %w", err)
	}
	if payload.Chart.Error != nil {
		return domain.Quote{}, fmt.Errorf("quote %s: %s", symbol, payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 {
		return domain.Quote{}, fmt.Errorf("quote %s: empty result", symbol)
	}

	meta := payload.Chart.Result[0].Meta
	if meta.RegularMarketPrice <= 0 {
		return domain.Quote{}, fmt.Errorf("quote %s: no price", symbol)
	}
	prev := meta.ChartPreviousClose
	if prev == 0 {
		prev = meta.PreviousClose
	}

	q := domain.Quote{
		Symbol:        symbol,
		Price:         meta.RegularMarketPrice,
		PreviousClose: prev,
	}
	if meta.RegularMarketTime > 0 {
		q.At = time.Unix(meta.RegularMarketTime, 0).UTC()
	}
	return q, nil
}
