package ports

import (
	"context"

	"NewsRadar/internal/domain"
)

// FeedSource pulls candidate items for one topic from upstream feeds.
type FeedSource interface {
	Fetch(ctx context.Context, topic domain.Topic) ([]domain.NewsItem, error)
}

// DeliverableStore persists keys of items whose delivery was acknowledged.
type DeliverableStore interface {
	// Load returns every committed key, oldest first.
	Load(ctx context.Context) ([]string, error)
	// Commit merges keys and evicts the oldest entries beyond the cap.
	Commit(ctx context.Context, keys []string) error
}

// Deliverer posts one notification batch to the webhook endpoint.
type Deliverer interface {
	Send(ctx context.Context, batch domain.NotificationBatch) domain.Outcome
}

// QuoteSource resolves a symbol to its latest price. It is cosmetic only.
type QuoteSource interface {
	Quote(ctx context.Context, symbol string) (domain.Quote, error)
}
