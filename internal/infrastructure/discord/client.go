package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"NewsRadar/internal/domain"
	"NewsRadar/internal/ports"
)

const (
	defaultTimeout = 12 * time.Second
	maxRetryWait   = 30 * time.Second
	maxErrorBody   = 64 << 10
	userAgent      = "NewsRadar/1.0"
)

// Config holds the webhook settings.
type Config struct {
	URL        string
	Username   string
	AvatarURL  string
	Timeout    time.Duration
	MaxRetries int
}

// Client posts notification batches to a Discord-compatible webhook.
type Client struct {
	httpClient *http.Client
	url        string
	username   string
	avatarURL  string
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
}

var _ ports.Deliverer = (*Client)(nil)

// NewClient validates the webhook URL and builds a client.
func NewClient(cfg Config, log *slog.Logger) (*Client, error) {
	if !domain.IsUsableURL(cfg.URL) {
		return nil, fmt.Errorf("webhook url must be an absolute http(s) url")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		url:        cfg.URL,
		username:   cfg.Username,
		avatarURL:  cfg.AvatarURL,
		maxRetries: retries,
		backoff:    time.Second,
		logger:     log,
	}, nil
}

// Send posts one batch. Rate limits, server errors and connection failures
// are retried with backoff; any other non-2xx answer is a rejection.
func (c *Client) Send(ctx context.Context, batch domain.NotificationBatch) domain.Outcome {
	body, err := json.Marshal(buildPayload(batch, c.username, c.avatarURL))
	if err != nil {
		return domain.Outcome{Status: domain.DeliveryRejected, Reason: "marshal payload", Err: err}
	}

	var out domain.Outcome
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var hint time.Duration
		out, hint = c.post(ctx, body)
		out.Attempts = attempt + 1

		wait, retry := c.retryAfter(out, hint, attempt)
		if !retry || attempt == c.maxRetries {
			break
		}

		c.logger.Debug("webhook transient failure, will retry",
			"url", RedactURL(c.url),
			"attempt", attempt+1,
			"outcome", out.String(),
			"wait", wait,
		)
		if err := sleep(ctx, wait); err != nil {
			return domain.Outcome{
				Status:   domain.DeliveryTransportError,
				Reason:   "cancelled during backoff",
				Attempts: attempt + 1,
				Err:      err,
			}
		}
	}

	if !out.Accepted() {
		c.logger.Warn("webhook delivery failed",
			"url", RedactURL(c.url),
			"topic", batch.Topic,
			"batch", fmt.Sprintf("%d/%d", batch.Sequence, batch.Total),
			"outcome", out.String(),
			"attempts", out.Attempts,
		)
	}
	return out
}

// post performs a single call. The duration is the server's Retry-After
// hint, zero when absent.
func (c *Client) post(ctx context.Context, body []byte) (domain.Outcome, time.Duration) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return domain.Outcome{Status: domain.DeliveryTransportError, Reason: "create request", Err: err}, 0
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Outcome{Status: domain.DeliveryTransportError, Reason: "do request", Err: err}, 0
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return domain.Outcome{Status: domain.DeliveryAccepted, StatusCode: resp.StatusCode}, 0
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	out := domain.Outcome{
		Status:     domain.DeliveryRejected,
		StatusCode: resp.StatusCode,
		Reason:     resp.Status,
	}
	if resp.StatusCode == http.StatusBadRequest {
		out.InvalidBlocks, out.Reason = parseRejection(raw, resp.Status)
	}
	var hint time.Duration
	if resp.StatusCode == http.StatusTooManyRequests {
		hint = retryAfterHint(resp.Header.Get("Retry-After"), raw)
		out.Reason = "rate limited"
	}
	out.Err = fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	return out, hint
}

// retryAfter decides whether an outcome is transient and how long to wait.
func (c *Client) retryAfter(out domain.Outcome, hint time.Duration, attempt int) (time.Duration, bool) {
	linear := time.Duration(attempt+1) * c.backoff
	switch {
	case out.Status == domain.DeliveryTransportError:
		return linear, true
	case out.StatusCode == http.StatusTooManyRequests:
		if hint > maxRetryWait {
			return 0, false
		}
		if hint > 0 {
			return hint, true
		}
		return linear, true
	case out.StatusCode >= 500:
		return linear, true
	default:
		return 0, false
	}
}

// retryAfterHint reads a Retry-After header or a retry_after body field,
// both in seconds.
func retryAfterHint(header string, body []byte) time.Duration {
	if secs, err := strconv.ParseFloat(strings.TrimSpace(header), 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	var rl struct {
		RetryAfter float64 `json:"retry_after"`
	}
	if json.Unmarshal(body, &rl) == nil && rl.RetryAfter > 0 {
		return time.Duration(rl.RetryAfter * float64(time.Second))
	}
	return 0
}

// parseRejection extracts the indexes of malformed embeds from a 400 body.
// Both the legacy {"embeds": ["0"]} and the {"errors": {"embeds": {"0": …}}}
// shapes are understood.
func parseRejection(body []byte, status string) ([]int, string) {
	var resp struct {
		Message string          `json:"message"`
		Embeds  json.RawMessage `json:"embeds"`
		Errors  struct {
			Embeds map[string]json.RawMessage `json:"embeds"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, status
	}

	seen := map[int]struct{}{}
	add := func(s string) {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && n >= 0 {
			seen[n] = struct{}{}
		}
	}

	if len(resp.Embeds) > 0 {
		var list []json.RawMessage
		if json.Unmarshal(resp.Embeds, &list) == nil {
			for _, raw := range list {
				add(strings.Trim(string(raw), `"`))
			}
		}
	}
	for k := range resp.Errors.Embeds {
		add(k)
	}

	idx := make([]int, 0, len(seen))
	for n := range seen {
		idx = append(idx, n)
	}
	sort.Ints(idx)

	reason := status
	if resp.Message != "" {
		reason = resp.Message
	}
	if len(idx) == 0 {
		return nil, reason
	}
	return idx, reason
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RedactURL masks credentials in a URL for safe logging: userinfo, query
// values and the token segment of /webhooks/{id}/{token} paths.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			q.Set(key, "REDACTED")
		}
		u.RawQuery = q.Encode()
	}
	segs := strings.Split(u.Path, "/")
	for i := 0; i+2 < len(segs); i++ {
		if segs[i] == "webhooks" {
			segs[i+2] = "REDACTED"
			break
		}
	}
	u.Path = strings.Join(segs, "/")
	u.RawPath = ""
	return u.Redacted()
}
