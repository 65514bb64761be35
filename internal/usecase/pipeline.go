package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"NewsRadar/internal/batcher"
	"NewsRadar/internal/classifier"
	"NewsRadar/internal/dedupe"
	"NewsRadar/internal/domain"
	"NewsRadar/internal/ports"
)

const quoteTimeout = 5 * time.Second

// Options tunes a pipeline run.
type Options struct {
	Identity         domain.IdentityPolicy
	StaleWindow      time.Duration
	StaleAfterDedupe bool
	MaxItemsPerTopic int
	AnnounceEmpty    bool
	ParallelTopics   bool
	Salvage          bool
	// SendInterval paces webhook calls when no Limiter is supplied.
	SendInterval time.Duration
	SessionLabel bool
	// DryRun builds batches without sending or committing anything.
	DryRun   bool
	Location *time.Location
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source     ports.FeedSource
	Store      ports.DeliverableStore
	Deliverer  ports.Deliverer
	Quotes     ports.QuoteSource
	Classifier *classifier.Classifier
	Batcher    *batcher.Batcher
	// Limiter is shared by every topic of a run, so parallel topics still
	// respect the webhook's pacing.
	Limiter *rate.Limiter
	Logger  *slog.Logger
	Options Options
	Now     func() time.Time
}

// Pipeline implements the ingest, dedupe, classify, batch, deliver and
// commit workflow for a set of topics.
type Pipeline struct {
	source     ports.FeedSource
	store      ports.DeliverableStore
	deliverer  ports.Deliverer
	quotes     ports.QuoteSource
	classifier *classifier.Classifier
	batcher    *batcher.Batcher
	limiter    *rate.Limiter
	logger     *slog.Logger
	opts       Options
	now        func() time.Time

	storeMu sync.Mutex
}

// TopicReport summarizes one topic of a run.
type TopicReport struct {
	Topic     string
	Fetched   int
	Unique    int
	Omitted   int
	Failed    int
	Delivered []string // keys committed during the run
	Batches   []domain.NotificationBatch
	Err       error
}

// Report summarizes a run.
type Report struct {
	Topics []TopicReport
}

// Delivered counts committed items across topics.
func (r Report) Delivered() int {
	n := 0
	for _, t := range r.Topics {
		n += len(t.Delivered)
	}
	return n
}

// Failed counts items whose delivery failed across topics.
func (r Report) Failed() int {
	n := 0
	for _, t := range r.Topics {
		n += t.Failed
	}
	return n
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	log := deps.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	cls := deps.Classifier
	if cls == nil {
		cls = classifier.Default()
	}
	b := deps.Batcher
	if b == nil {
		b = batcher.New(batcher.Config{Location: deps.Options.Location})
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	limiter := deps.Limiter
	if limiter == nil {
		limiter = NewSendLimiter(deps.Options.SendInterval)
	}
	return &Pipeline{
		source:     deps.Source,
		store:      deps.Store,
		deliverer:  deps.Deliverer,
		quotes:     deps.Quotes,
		classifier: cls,
		batcher:    b,
		limiter:    limiter,
		logger:     log,
		opts:       deps.Options,
		now:        now,
	}
}

// NewSendLimiter allows one webhook call per interval. A non-positive
// interval disables pacing.
func NewSendLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// Run processes every topic once. Failures are contained per topic and
// reported; the returned error is non-nil only when ctx ends the run early
// or the pipeline is not wired.
func (p *Pipeline) Run(ctx context.Context, topics []domain.Topic) (Report, error) {
	if p.source == nil {
		return Report{}, fmt.Errorf("feed source is not configured")
	}
	if p.deliverer == nil && !p.opts.DryRun {
		return Report{}, fmt.Errorf("deliverer is not configured")
	}

	known := p.loadKnown(ctx)
	claims := newClaimSet()

	label := &pendingLabel{}
	if p.opts.SessionLabel {
		label.text = batcher.Truncate(SessionLabel(p.now(), p.opts.Location), p.batcher.Limits().ContentMax)
	}

	p.logger.Info("run started", "topics", len(topics), "known_keys", len(known), "dry_run", p.opts.DryRun)

	reports := make([]TopicReport, len(topics))
	if p.opts.ParallelTopics {
		var wg sync.WaitGroup
		for i, topic := range topics {
			wg.Add(1)
			go func(i int, topic domain.Topic) {
				defer wg.Done()
				reports[i] = p.runTopic(ctx, topic, known, claims, label)
			}(i, topic)
		}
		wg.Wait()
	} else {
		for i, topic := range topics {
			if ctx.Err() != nil {
				reports = reports[:i]
				break
			}
			reports[i] = p.runTopic(ctx, topic, known, claims, label)
		}
	}

	report := Report{Topics: reports}
	p.logger.Info("run finished", "delivered", report.Delivered(), "failed", report.Failed())
	return report, ctx.Err()
}

func (p *Pipeline) loadKnown(ctx context.Context) domain.KeySet {
	if p.store == nil {
		return domain.NewKeySet()
	}
	p.storeMu.Lock()
	keys, err := p.store.Load(ctx)
	p.storeMu.Unlock()
	if err != nil {
		p.logger.Warn("deliverable store unreadable, continuing without history", "error", err)
		return domain.NewKeySet()
	}
	return domain.NewKeySet(keys...)
}

func (p *Pipeline) runTopic(ctx context.Context, topic domain.Topic, known domain.KeySet, claims *claimSet, label *pendingLabel) TopicReport {
	log := p.logger.With("topic", topic.Name)
	rep := TopicReport{Topic: topic.Name}

	items, err := p.source.Fetch(ctx, topic)
	if err != nil {
		log.Warn("fetch failed, skipping topic", "error", err)
		rep.Err = fmt.Errorf("fetch topic %s: %w", topic.Name, err)
		return rep
	}
	rep.Fetched = len(items)

	unique := p.selectItems(items, known, topic)
	unique = claims.claim(unique)
	rep.Unique = len(unique)
	log.Debug("candidates selected", "fetched", rep.Fetched, "unique", rep.Unique)

	aliases := make(map[string]string, len(unique))
	classified := make([]domain.ClassifiedItem, 0, len(unique))
	for _, u := range unique {
		classified = append(classified, p.classifier.ClassifyItem(u.Item, u.Key))
		if h := domain.NormalizeHeadline(u.Item.Headline); h != u.Key {
			aliases[u.Key] = h
		}
	}

	hdr := batcher.Header{Summary: p.quoteSummary(ctx, log, topic)}
	batches, omitted := p.batcher.Build(classified, topic, hdr, p.opts.AnnounceEmpty)
	for _, o := range omitted {
		log.Warn("item omitted from batch", "key", o.Key, "reason", o.Reason)
		claims.release(o.Key)
	}
	rep.Omitted = len(omitted)
	rep.Batches = batches

	if p.opts.DryRun {
		if len(batches) > 0 {
			batches[0].Content = label.take()
		}
		log.Info("dry run, nothing sent", "batches", len(batches), "items", len(classified)-len(omitted))
		return rep
	}

	for i := range batches {
		text := label.take()
		batches[i].Content = text
		nb := batches[i]

		out, err := p.send(ctx, nb)
		if err != nil {
			label.restore(text)
			p.abandon(log, claims, batches[i:], &rep)
			rep.Err = err
			return rep
		}
		if !out.Accepted() {
			label.restore(text)
		}

		switch {
		case out.Accepted():
			p.commit(ctx, log, withAliases(nb.Keys(), aliases))
			rep.Delivered = append(rep.Delivered, nb.Keys()...)
			log.Info("batch delivered", "batch", fmt.Sprintf("%d/%d", nb.Sequence, nb.Total), "items", len(nb.Items))
		case out.Salvageable() && p.opts.Salvage && len(nb.Items) > 0:
			log.Warn("batch rejected, salvaging item by item",
				"batch", fmt.Sprintf("%d/%d", nb.Sequence, nb.Total), "outcome", out.String(), "invalid", out.InvalidBlocks)
			p.salvage(ctx, log, nb, out, aliases, claims, &rep)
		default:
			log.Warn("batch not delivered, keys stay uncommitted",
				"batch", fmt.Sprintf("%d/%d", nb.Sequence, nb.Total), "outcome", out.String(), "items", len(nb.Items))
			for _, k := range nb.Keys() {
				claims.release(k)
			}
			rep.Failed += len(nb.Items)
		}
	}

	return rep
}

// selectItems applies staleness, dedupe, recency order and the per-topic cap.
func (p *Pipeline) selectItems(items []domain.NewsItem, known domain.KeySet, topic domain.Topic) []dedupe.Unique {
	now := p.now()
	if !p.opts.StaleAfterDedupe {
		items = dedupe.FilterStale(items, now, p.opts.StaleWindow)
	}

	unique := dedupe.Dedupe(items, known, p.opts.Identity)
	if p.opts.StaleAfterDedupe {
		unique = dedupe.FilterStaleUnique(unique, now, p.opts.StaleWindow)
	}

	limit := topic.MaxItems
	if limit <= 0 {
		limit = p.opts.MaxItemsPerTopic
	}
	return dedupe.Limit(dedupe.OrderByRecency(unique), limit)
}

// salvage resends the items of a rejected batch one by one, skipping the
// blocks the endpoint named as malformed. Each accepted item is committed
// on its own.
func (p *Pipeline) salvage(ctx context.Context, log *slog.Logger, nb domain.NotificationBatch, out domain.Outcome,
	aliases map[string]string, claims *claimSet, rep *TopicReport) {
	offset := 0
	if nb.Header != nil {
		offset = 1
	}
	invalid := make(map[int]struct{}, len(out.InvalidBlocks))
	for _, idx := range out.InvalidBlocks {
		invalid[idx-offset] = struct{}{}
	}

	for i, ib := range nb.Items {
		if _, bad := invalid[i]; bad {
			log.Warn("dropping malformed item", "key", ib.Key)
			claims.release(ib.Key)
			rep.Failed++
			continue
		}
		single := nb.Single(i)
		res, err := p.send(ctx, single)
		if err != nil {
			claims.release(ib.Key)
			rep.Failed++
			continue
		}
		if !res.Accepted() {
			log.Warn("salvage attempt failed", "key", ib.Key, "outcome", res.String())
			claims.release(ib.Key)
			rep.Failed++
			continue
		}
		p.commit(ctx, log, withAliases(single.Keys(), aliases))
		rep.Delivered = append(rep.Delivered, ib.Key)
	}
}

// send waits for the shared limiter before calling the deliverer. The error
// is non-nil only when ctx ends before the call may go out.
func (p *Pipeline) send(ctx context.Context, nb domain.NotificationBatch) (domain.Outcome, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return domain.Outcome{}, err
	}
	return p.deliverer.Send(ctx, nb), nil
}

func (p *Pipeline) abandon(log *slog.Logger, claims *claimSet, rest []domain.NotificationBatch, rep *TopicReport) {
	n := 0
	for _, nb := range rest {
		for _, k := range nb.Keys() {
			claims.release(k)
		}
		n += len(nb.Items)
	}
	rep.Failed += n
	log.Warn("run cancelled, remaining batches not sent", "items", n)
}

// commit persists keys after an accepted delivery. Storage errors are
// logged and never abort the run.
func (p *Pipeline) commit(ctx context.Context, log *slog.Logger, keys []string) {
	if p.store == nil || len(keys) == 0 {
		return
	}
	p.storeMu.Lock()
	defer p.storeMu.Unlock()
	if err := p.store.Commit(ctx, keys); err != nil {
		log.Error("commit failed, items may be re-sent next run", "keys", len(keys), "error", err)
	}
}

func (p *Pipeline) quoteSummary(ctx context.Context, log *slog.Logger, topic domain.Topic) string {
	if p.quotes == nil || topic.QuoteSymbol == "" {
		return ""
	}
	qctx, cancel := context.WithTimeout(ctx, quoteTimeout)
	defer cancel()
	q, err := p.quotes.Quote(qctx, topic.QuoteSymbol)
	if err != nil {
		log.Debug("quote unavailable", "symbol", topic.QuoteSymbol, "error", err)
		return ""
	}
	return q.Summary()
}

// withAliases adds the normalized headline next to link keys so a story
// republished under another URL is still recognized next run.
func withAliases(keys []string, aliases map[string]string) []string {
	out := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		out = append(out, k)
		if a, ok := aliases[k]; ok {
			out = append(out, a)
		}
	}
	return out
}
