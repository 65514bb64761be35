package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"NewsRadar/internal/batcher"
	"NewsRadar/internal/classifier"
	"NewsRadar/internal/config"
	"NewsRadar/internal/domain"
	"NewsRadar/internal/infrastructure/discord"
	"NewsRadar/internal/infrastructure/parser"
	"NewsRadar/internal/infrastructure/quote"
	"NewsRadar/internal/infrastructure/storage"
	"NewsRadar/internal/logging"
	"NewsRadar/internal/ports"
	"NewsRadar/internal/scanner"
	"NewsRadar/internal/usecase"
)

// Options narrows a single invocation.
type Options struct {
	DryRun bool
	Topics []string // empty means every configured topic
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	pipeline *usecase.Pipeline
	topics   []domain.Topic
	db       *sql.DB
}

// New validates cfg and builds a runnable application instance. A missing
// webhook is reported as config.ErrMissingWebhook before any network call.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger, opts Options) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	validate := cfg.Validate
	if opts.DryRun {
		validate = cfg.ValidateCore
	}
	if err := validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := baseLogger.With("run_id", uuid.NewString())

	topics, err := selectTopics(cfg, opts.Topics)
	if err != nil {
		return nil, err
	}

	policy, err := domain.ParseIdentityPolicy(cfg.Pipeline.Identity)
	if err != nil {
		return nil, err
	}

	keywords := classifier.DefaultKeywords()
	if cfg.Keywords != nil {
		keywords = *cfg.Keywords
	}
	cls, err := classifier.New(keywords, classifier.WithPublisher(cfg.Pipeline.ClassifyPublisher))
	if err != nil {
		return nil, fmt.Errorf("build classifier: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.Pipeline.HTTPTimeout()}

	registry := scanner.NewRegistry()
	registry.Register(parser.NewGoogleNewsScanner(httpClient, logger.With("component", "scanner.googlenews")))
	registry.Register(parser.NewRSSScanner(httpClient, logger.With("component", "scanner.rss")))

	source := parser.NewStrategySource(registry, cfg.Topics, cfg.Pipeline.FeedItemLimit, logger.With("component", "source"))

	application := &Application{cfg: cfg, logger: logger, topics: topics}

	store := application.openStore(ctx)

	var deliverer ports.Deliverer
	if !opts.DryRun {
		client, err := discord.NewClient(discord.Config{
			URL:        cfg.Webhook.URL,
			Username:   cfg.Webhook.Username,
			AvatarURL:  cfg.Webhook.AvatarURL,
			Timeout:    cfg.Webhook.Timeout(),
			MaxRetries: cfg.Webhook.MaxRetries,
		}, logger.With("component", "discord"))
		if err != nil {
			application.Close()
			return nil, fmt.Errorf("build webhook client: %w", err)
		}
		deliverer = client
	}

	var quotes ports.QuoteSource
	if cfg.Quotes.Enabled {
		quotes = quote.NewYahooClient(cfg.Quotes.Endpoint, httpClient)
	}

	b := batcher.New(batcher.Config{
		Limits:        cfg.Limits,
		Labels:        cfg.Labels,
		Location:      cfg.Pipeline.Location(),
		FooterText:    cfg.Pipeline.FooterText,
		DefaultSource: cfg.Pipeline.DefaultSource,
		TickerHints:   cfg.Pipeline.TickerHints,
	})

	application.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Source:     source,
		Store:      store,
		Deliverer:  deliverer,
		Quotes:     quotes,
		Classifier: cls,
		Batcher:    b,
		Limiter:    usecase.NewSendLimiter(cfg.Webhook.SendInterval()),
		Logger:     logger.With("component", "pipeline"),
		Options: usecase.Options{
			Identity:         policy,
			StaleWindow:      cfg.Pipeline.StaleWindow(),
			StaleAfterDedupe: cfg.Pipeline.StaleOrder == "after_dedupe",
			MaxItemsPerTopic: cfg.Pipeline.MaxItemsPerTopic,
			AnnounceEmpty:    cfg.Pipeline.AnnounceEmpty,
			ParallelTopics:   cfg.Pipeline.ParallelTopics,
			Salvage:          cfg.Webhook.Salvage,
			SendInterval:     cfg.Webhook.SendInterval(),
			SessionLabel:     cfg.Pipeline.SessionLabel,
			DryRun:           opts.DryRun,
			Location:         cfg.Pipeline.Location(),
		},
	})

	logger.Info("application ready",
		"topics", len(topics),
		"store", cfg.Store.Driver,
		"webhook", discord.RedactURL(cfg.Webhook.URL),
		"dry_run", opts.DryRun,
	)
	return application, nil
}

// Run performs a single pipeline execution.
func (a *Application) Run(ctx context.Context) (usecase.Report, error) {
	if a.pipeline == nil {
		return usecase.Report{}, nil
	}
	return a.pipeline.Run(ctx, a.topics)
}

// Close releases the database pool, if any.
func (a *Application) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("close database", "error", err)
		}
		a.db = nil
	}
}

// openStore builds the configured store. An unreachable database is
// logged and the run continues without history.
func (a *Application) openStore(ctx context.Context) ports.DeliverableStore {
	cfg := a.cfg.Store
	switch cfg.Driver {
	case "postgres":
		db, err := storage.OpenPostgres(ctx, cfg.DSN)
		if err != nil {
			a.logger.Error("postgres store unavailable, running without history", "error", err)
			return nil
		}
		a.db = db
		store := storage.NewPostgresStore(db, cfg.Table, cfg.Retention)
		if err := store.EnsureSchema(ctx); err != nil {
			a.logger.Warn("ensure store schema", "error", err)
		}
		return store
	default:
		return storage.NewFileStore(cfg.Path, cfg.Retention)
	}
}

func selectTopics(cfg config.Config, names []string) ([]domain.Topic, error) {
	if len(names) == 0 {
		topics := make([]domain.Topic, 0, len(cfg.Topics))
		for _, t := range cfg.Topics {
			topics = append(topics, t.ToDomain())
		}
		return topics, nil
	}

	topics := make([]domain.Topic, 0, len(names))
	for _, name := range names {
		t, ok := cfg.Topic(name)
		if !ok {
			return nil, fmt.Errorf("unknown topic %q", name)
		}
		topics = append(topics, t.ToDomain())
	}
	return topics, nil
}
