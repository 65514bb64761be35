package config

import (
	"errors"
	"fmt"
	"strings"

	"NewsRadar/internal/domain"
)

// ErrMissingWebhook is returned when no delivery endpoint is configured.
var ErrMissingWebhook = errors.New("webhook url is not configured (set NEWS_WEBHOOK_URL)")

// Validate checks everything a delivery run needs, the webhook included.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Webhook.URL) == "" {
		return ErrMissingWebhook
	}
	if !domain.IsUsableURL(c.Webhook.URL) {
		return fmt.Errorf("webhook url must be an absolute http(s) url")
	}
	if c.Webhook.MaxRetries < 0 {
		return fmt.Errorf("webhook maxRetries must not be negative")
	}
	return c.ValidateCore()
}

// ValidateCore checks the settings shared by every command; it does not
// require a webhook.
func (c Config) ValidateCore() error {
	var errs []error

	switch c.Store.Driver {
	case "file":
		if strings.TrimSpace(c.Store.Path) == "" {
			errs = append(errs, fmt.Errorf("store path is required for the file driver"))
		}
	case "postgres":
		if strings.TrimSpace(c.Store.DSN) == "" {
			errs = append(errs, fmt.Errorf("store dsn is required for the postgres driver"))
		}
		if strings.TrimSpace(c.Store.Table) == "" {
			errs = append(errs, fmt.Errorf("store table is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	if c.Store.Retention <= 0 {
		errs = append(errs, fmt.Errorf("store retention must be positive"))
	}

	if _, err := domain.ParseIdentityPolicy(c.Pipeline.Identity); err != nil {
		errs = append(errs, err)
	}
	switch c.Pipeline.StaleOrder {
	case "", "before_dedupe", "after_dedupe":
	default:
		errs = append(errs, fmt.Errorf("unknown staleOrder %q", c.Pipeline.StaleOrder))
	}
	if c.Pipeline.MaxItemsPerTopic <= 0 {
		errs = append(errs, fmt.Errorf("maxItemsPerTopic must be positive"))
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Logging.Format))
	}

	if len(c.Topics) == 0 {
		errs = append(errs, fmt.Errorf("at least one topic is required"))
	}
	seen := make(map[string]struct{}, len(c.Topics))
	for i, t := range c.Topics {
		if t.Name == "" {
			errs = append(errs, fmt.Errorf("topic #%d has no name", i))
			continue
		}
		if _, dup := seen[t.Name]; dup {
			errs = append(errs, fmt.Errorf("topic %s is declared twice", t.Name))
		}
		seen[t.Name] = struct{}{}
		if _, err := domain.ParseTopicKind(t.Kind); err != nil {
			errs = append(errs, fmt.Errorf("topic %s: %w", t.Name, err))
		}
		if t.Scanner == "" {
			errs = append(errs, fmt.Errorf("topic %s has no scanner", t.Name))
		}
		if len(t.Queries) == 0 {
			errs = append(errs, fmt.Errorf("topic %s has no queries", t.Name))
		}
		if t.MaxItems < 0 {
			errs = append(errs, fmt.Errorf("topic %s: maxItems must not be negative", t.Name))
		}
	}

	return errors.Join(errs...)
}

// ToDomain converts a topic entry into the domain descriptor.
func (t TopicConfig) ToDomain() domain.Topic {
	kind, _ := domain.ParseTopicKind(t.Kind)
	title := t.Title
	if title == "" {
		title = t.Name
	}
	label := t.Label
	if label == "" {
		label = t.Name
	}
	return domain.Topic{
		Name:        t.Name,
		Kind:        kind,
		Title:       title,
		Label:       label,
		QuoteSymbol: t.QuoteSymbol,
		MaxItems:    t.MaxItems,
	}
}

// Topic finds a configured topic by name.
func (c Config) Topic(name string) (TopicConfig, bool) {
	for _, t := range c.Topics {
		if t.Name == name {
			return t, true
		}
	}
	return TopicConfig{}, false
}
