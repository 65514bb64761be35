package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"NewsRadar/internal/config"
	"NewsRadar/internal/domain"
	"NewsRadar/internal/ports"
	"NewsRadar/internal/scanner"
)

// StrategySource implements FeedSource via registered scanner strategies.
type StrategySource struct {
	registry  *scanner.Registry
	topics    map[string]config.TopicConfig
	feedLimit int
	logger    *slog.Logger
}

var _ ports.FeedSource = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry with config-defined topics.
func NewStrategySource(reg *scanner.Registry, topics []config.TopicConfig, feedLimit int, log *slog.Logger) *StrategySource {
	byName := make(map[string]config.TopicConfig, len(topics))
	for _, t := range topics {
		byName[t.Name] = t
	}
	return &StrategySource{
		registry:  reg,
		topics:    byName,
		feedLimit: feedLimit,
		logger:    log,
	}
}

// Fetch runs every query of the topic through its scanner. A failing query
// is logged and skipped; an error is returned only when all of them fail.
func (s *StrategySource) Fetch(ctx context.Context, topic domain.Topic) ([]domain.NewsItem, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	tc, ok := s.topics[topic.Name]
	if !ok {
		return nil, fmt.Errorf("topic %s is not configured", topic.Name)
	}

	strategy, err := s.registry.Resolve(tc.Scanner)
	if err != nil {
		return nil, fmt.Errorf("topic %s: %w", topic.Name, err)
	}

	s.debug("process topic", "topic", topic.Name, "scanner", tc.Scanner, "queries", len(tc.Queries))

	var (
		aggregated []domain.NewsItem
		errs       []error
	)
	for _, query := range tc.Queries {
		if err := ctx.Err(); err != nil {
			return aggregated, err
		}

		req := scanner.Request{
			Topic: topic,
			Query: query,
			Locale: scanner.Locale{
				Language: tc.Locale.Language,
				Region:   tc.Locale.Region,
				Edition:  tc.Locale.Edition,
			},
			Limit: s.feedLimit,
		}

		results, err := strategy.Scan(ctx, req)
		if err != nil {
			errs = append(errs, err)
			if s.logger != nil {
				s.logger.Warn("query failed", "topic", topic.Name, "query", query, "error", err)
			}
			continue
		}

		s.debug("query produced items", "topic", topic.Name, "count", len(results))
		aggregated = append(aggregated, results...)
	}

	if len(errs) > 0 && len(errs) == len(tc.Queries) {
		return nil, fmt.Errorf("fetch topic %s: %w", topic.Name, errors.Join(errs...))
	}

	s.debug("strategy source done", "topic", topic.Name, "total_items", len(aggregated))
	return aggregated, nil
}

func (s *StrategySource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
