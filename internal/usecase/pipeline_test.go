package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsRadar/internal/domain"
	"NewsRadar/internal/infrastructure/storage"
)

var (
	runNow      = time.Date(2026, 3, 2, 1, 30, 0, 0, time.UTC)
	cryptoTopic = domain.Topic{Name: "crypto", Kind: domain.TopicCryptoMarket, Title: "🪙 Crypto 市場快訊", Label: "Crypto"}
	twTopic     = domain.Topic{Name: "tw", Kind: domain.TopicPrimaryMarket, Title: "🏹 台股市場快訊", Label: "台股"}
)

type fakeSource struct {
	items map[string][]domain.NewsItem
	errs  map[string]error
}

func (f *fakeSource) Fetch(_ context.Context, topic domain.Topic) ([]domain.NewsItem, error) {
	if err := f.errs[topic.Name]; err != nil {
		return nil, err
	}
	return f.items[topic.Name], nil
}

type memStore struct {
	mu        sync.Mutex
	keys      []string
	loadErr   error
	commitErr error
}

func (m *memStore) Load(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return append([]string(nil), m.keys...), nil
}

func (m *memStore) Commit(_ context.Context, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commitErr != nil {
		return m.commitErr
	}
	have := domain.NewKeySet(m.keys...)
	for _, k := range keys {
		if !have.Has(k) {
			m.keys = append(m.keys, k)
			have.Add(k)
		}
	}
	return nil
}

func (m *memStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.NewKeySet(m.keys...).Has(key)
}

type fakeDeliverer struct {
	mu      sync.Mutex
	calls   []domain.NotificationBatch
	at      []time.Time
	respond func(call int, nb domain.NotificationBatch) domain.Outcome
}

func (f *fakeDeliverer) Send(_ context.Context, nb domain.NotificationBatch) domain.Outcome {
	f.mu.Lock()
	call := len(f.calls)
	f.calls = append(f.calls, nb)
	f.at = append(f.at, time.Now())
	f.mu.Unlock()
	if f.respond == nil {
		return accepted()
	}
	return f.respond(call, nb)
}

func (f *fakeDeliverer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func accepted() domain.Outcome {
	return domain.Outcome{Status: domain.DeliveryAccepted, StatusCode: 204, Attempts: 1}
}

func transportError() domain.Outcome {
	return domain.Outcome{Status: domain.DeliveryTransportError, Err: errors.New("connection reset"), Attempts: 3}
}

func stories(prefix string, n int) []domain.NewsItem {
	out := make([]domain.NewsItem, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.NewsItem{
			Headline: fmt.Sprintf("%s story %d", prefix, i),
			URL:      fmt.Sprintf("https://n.example/%s/%d", prefix, i),
		})
	}
	return out
}

func newTestPipeline(src *fakeSource, store *memStore, del *fakeDeliverer, opts Options) *Pipeline {
	if opts.Identity == "" {
		opts.Identity = domain.IdentityHeadline
	}
	if opts.MaxItemsPerTopic == 0 {
		opts.MaxItemsPerTopic = 50
	}
	deps := PipelineDeps{
		Source:  src,
		Options: opts,
		Now:     func() time.Time { return runNow },
	}
	if store != nil {
		deps.Store = store
	}
	if del != nil {
		deps.Deliverer = del
	}
	return NewPipeline(deps)
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()

	src := &fakeSource{items: map[string][]domain.NewsItem{"crypto": stories("Bitcoin", 5)}}
	store := &memStore{}
	del := &fakeDeliverer{}
	p := newTestPipeline(src, store, del, Options{})

	first, err := p.Run(context.Background(), []domain.Topic{cryptoTopic})
	require.NoError(t, err)
	assert.Equal(t, 5, first.Delivered())
	assert.Equal(t, 1, del.count())

	second, err := p.Run(context.Background(), []domain.Topic{cryptoTopic})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Delivered())
	assert.Equal(t, 1, del.count(), "second run sends nothing")
}

func TestRunCryptoScenario(t *testing.T) {
	t.Parallel()

	fresh := stories("Bitcoin fresh", 7)
	known := []domain.NewsItem{
		{Headline: "Ether  KNOWN story 0", URL: "https://n.example/known/0"},
		{Headline: "ether known story 1", URL: "https://n.example/known/1"},
		{Headline: " Ether known Story 2 ", URL: "https://n.example/known/2"},
	}
	repeats := []domain.NewsItem{
		{Headline: "bitcoin FRESH story 0", URL: "https://mirror.example/0"},
		{Headline: "Bitcoin fresh   story 1", URL: "https://mirror.example/1"},
	}
	feed := append(append(append([]domain.NewsItem{}, fresh...), known...), repeats...)
	require.Len(t, feed, 12)

	store := &memStore{keys: []string{"ether known story 0", "ether known story 1", "ether known story 2"}}
	del := &fakeDeliverer{}
	p := newTestPipeline(&fakeSource{items: map[string][]domain.NewsItem{"crypto": feed}}, store, del, Options{})

	report, err := p.Run(context.Background(), []domain.Topic{cryptoTopic})
	require.NoError(t, err)
	require.Len(t, report.Topics, 1)
	assert.Equal(t, 12, report.Topics[0].Fetched)
	assert.Equal(t, 7, report.Topics[0].Unique)
	assert.Equal(t, 7, report.Delivered())

	require.Equal(t, 1, del.count())
	assert.Len(t, del.calls[0].Items, 7)
	assert.Len(t, store.keys, 10, "exactly 7 new keys")
	for _, it := range fresh {
		assert.True(t, store.has(domain.NormalizeHeadline(it.Headline)))
	}
}

func TestRunTransportErrorCommitsNothing(t *testing.T) {
	t.Parallel()

	src := &fakeSource{items: map[string][]domain.NewsItem{"crypto": stories("Solana", 4)}}
	store := &memStore{}
	failing := &fakeDeliverer{respond: func(int, domain.NotificationBatch) domain.Outcome { return transportError() }}

	report, err := newTestPipeline(src, store, failing, Options{}).Run(context.Background(), []domain.Topic{cryptoTopic})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Delivered())
	assert.Equal(t, 4, report.Failed())
	assert.Empty(t, store.keys)

	ok := &fakeDeliverer{}
	report, err = newTestPipeline(src, store, ok, Options{}).Run(context.Background(), []domain.Topic{cryptoTopic})
	require.NoError(t, err)
	assert.Equal(t, 4, report.Delivered(), "uncommitted items resurface next run")
	assert.Len(t, store.keys, 4)
}

func TestRunCommitsOnlyAcceptedBatches(t *testing.T) {
	t.Parallel()

	src := &fakeSource{items: map[string][]domain.NewsItem{"crypto": stories("Chain", 23)}}
	store := &memStore{}
	del := &fakeDeliverer{}
	del.respond = func(call int, nb domain.NotificationBatch) domain.Outcome {
		for _, k := range nb.Keys() {
			assert.False(t, store.has(k), "keys are committed only after their own batch")
		}
		if call == 1 {
			return domain.Outcome{Status: domain.DeliveryRejected, StatusCode: 500, Reason: "boom"}
		}
		return accepted()
	}

	report, err := newTestPipeline(src, store, del, Options{}).Run(context.Background(), []domain.Topic{cryptoTopic})
	require.NoError(t, err)
	require.Equal(t, 3, del.count())

	for i, nb := range del.calls {
		assert.Equal(t, i+1, nb.Sequence, "batches go out in order")
		for _, k := range nb.Keys() {
			assert.Equal(t, i != 1, store.has(k), "batch %d key %s", i+1, k)
		}
	}
	assert.Equal(t, len(del.calls[1].Items), report.Failed())
}

func TestRunSalvagesRejectedBatch(t *testing.T) {
	t.Parallel()

	src := &fakeSource{items: map[string][]domain.NewsItem{"crypto": stories("Token", 3)}}
	store := &memStore{}
	del := &fakeDeliverer{respond: func(_ int, nb domain.NotificationBatch) domain.Outcome {
		if len(nb.Items) > 1 {
			// block 0 is the header, so block 2 is the second item
			return domain.Outcome{Status: domain.DeliveryRejected, StatusCode: 400, InvalidBlocks: []int{2}}
		}
		return accepted()
	}}

	report, err := newTestPipeline(src, store, del, Options{Salvage: true}).Run(context.Background(), []domain.Topic{cryptoTopic})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Delivered())
	assert.Equal(t, 1, report.Failed())
	assert.Equal(t, 3, del.count(), "one batch call plus two single-item retries")

	assert.True(t, store.has("token story 0"))
	assert.False(t, store.has("token story 1"))
	assert.True(t, store.has("token story 2"))

	header := del.calls[0].Header
	require.NotNil(t, header)
	for _, nb := range del.calls[1:] {
		require.NotNil(t, nb.Header, "single-item retries still carry a header")
		assert.Equal(t, header.Title, nb.Header.Title)
		assert.NotContains(t, nb.Header.Description, "\n")
		assert.Len(t, nb.Items, 1)
		assert.Len(t, nb.Blocks(), 2)
	}
}

func TestRunSalvageSkipsBlocksNamedInvalid(t *testing.T) {
	t.Parallel()

	src := &fakeSource{items: map[string][]domain.NewsItem{"crypto": stories("Token", 4)}}
	store := &memStore{}
	del := &fakeDeliverer{respond: func(call int, nb domain.NotificationBatch) domain.Outcome {
		if call == 0 {
			// header is block 0: blocks 1 and 4 are the first and last items
			return domain.Outcome{Status: domain.DeliveryRejected, StatusCode: 400, InvalidBlocks: []int{1, 4}}
		}
		return accepted()
	}}

	report, err := newTestPipeline(src, store, del, Options{Salvage: true}).Run(context.Background(), []domain.Topic{cryptoTopic})
	require.NoError(t, err)
	assert.Equal(t, []string{"token story 1", "token story 2"}, report.Topics[0].Delivered)
	assert.Equal(t, 2, report.Failed())
	assert.Equal(t, 3, del.count())
}

func TestRunWithoutSalvageDropsRejectedBatch(t *testing.T) {
	t.Parallel()

	src := &fakeSource{items: map[string][]domain.NewsItem{"crypto": stories("Token", 3)}}
	store := &memStore{}
	del := &fakeDeliverer{respond: func(int, domain.NotificationBatch) domain.Outcome {
		return domain.Outcome{Status: domain.DeliveryRejected, StatusCode: 400, InvalidBlocks: []int{2}}
	}}

	report, err := newTestPipeline(src, store, del, Options{}).Run(context.Background(), []domain.Topic{cryptoTopic})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Delivered())
	assert.Equal(t, 1, del.count())
	assert.Empty(t, store.keys)
}

func TestRunFailingTopicDoesNotAbortOthers(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		items: map[string][]domain.NewsItem{"crypto": stories("Doge", 2)},
		errs:  map[string]error{"tw": errors.New("feed unreachable")},
	}
	store := &memStore{}
	p := newTestPipeline(src, store, &fakeDeliverer{}, Options{})

	report, err := p.Run(context.Background(), []domain.Topic{twTopic, cryptoTopic})
	require.NoError(t, err)
	require.Len(t, report.Topics, 2)
	assert.Error(t, report.Topics[0].Err)
	assert.NoError(t, report.Topics[1].Err)
	assert.Equal(t, 2, report.Delivered())
}

func TestRunStoreFailuresAreNotFatal(t *testing.T) {
	t.Parallel()

	src := &fakeSource{items: map[string][]domain.NewsItem{"crypto": stories("Ada", 2)}}
	store := &memStore{loadErr: errors.New("disk gone"), commitErr: errors.New("disk full")}
	del := &fakeDeliverer{}

	report, err := newTestPipeline(src, store, del, Options{}).Run(context.Background(), []domain.Topic{cryptoTopic})
	require.NoError(t, err)
	assert.Equal(t, 1, del.count())
	assert.Equal(t, 2, report.Delivered())
}

func TestRunSameStoryAcrossTopicsDeliveredOnce(t *testing.T) {
	t.Parallel()

	for _, parallel := range []bool{false, true} {
		shared := domain.NewsItem{Headline: "Fed holds rates", URL: "https://n.example/fed"}
		src := &fakeSource{items: map[string][]domain.NewsItem{
			"tw":     {shared},
			"crypto": {shared},
		}}
		store := &memStore{}
		del := &fakeDeliverer{}

		report, err := newTestPipeline(src, store, del, Options{ParallelTopics: parallel}).
			Run(context.Background(), []domain.Topic{twTopic, cryptoTopic})
		require.NoError(t, err)
		assert.Equal(t, 1, report.Delivered(), "parallel=%v", parallel)
		assert.Len(t, store.keys, 1)
	}
}

func TestRunPacesParallelTopicsWithSharedLimiter(t *testing.T) {
	t.Parallel()

	const interval = 60 * time.Millisecond
	topics := []domain.Topic{
		twTopic,
		cryptoTopic,
		{Name: "us", Kind: domain.TopicSecondaryMarket, Title: "US", Label: "US"},
	}
	src := &fakeSource{items: map[string][]domain.NewsItem{
		"tw":     stories("Taiex", 1),
		"crypto": stories("Bitcoin", 1),
		"us":     stories("Nasdaq", 1),
	}}
	del := &fakeDeliverer{}
	p := newTestPipeline(src, &memStore{}, del, Options{ParallelTopics: true, SendInterval: interval})

	report, err := p.Run(context.Background(), topics)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Delivered())

	require.Len(t, del.at, 3)
	at := append([]time.Time(nil), del.at...)
	sort.Slice(at, func(i, j int) bool { return at[i].Before(at[j]) })
	for i := 1; i < len(at); i++ {
		gap := at[i].Sub(at[i-1])
		assert.GreaterOrEqual(t, gap, interval/2, "call %d followed the previous after %v", i, gap)
	}
	assert.GreaterOrEqual(t, at[2].Sub(at[0]), 2*interval-20*time.Millisecond)
}

func TestRunLimiterStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	src := &fakeSource{items: map[string][]domain.NewsItem{"crypto": stories("Chain", 23)}}
	store := &memStore{}
	ctx, cancel := context.WithCancel(context.Background())
	del := &fakeDeliverer{respond: func(int, domain.NotificationBatch) domain.Outcome {
		cancel()
		return accepted()
	}}

	report, err := newTestPipeline(src, store, del, Options{SendInterval: time.Hour}).Run(ctx, []domain.Topic{cryptoTopic})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, del.count())
	assert.Len(t, report.Topics[0].Delivered, len(del.calls[0].Items))
	assert.Equal(t, 23-len(del.calls[0].Items), report.Failed())
}

func TestRunSessionLabelGoesToFirstSentBatch(t *testing.T) {
	t.Parallel()

	src := &fakeSource{items: map[string][]domain.NewsItem{"crypto": stories("Bitcoin", 2)}}
	del := &fakeDeliverer{}
	p := newTestPipeline(src, &memStore{}, del, Options{SessionLabel: true})

	_, err := p.Run(context.Background(), []domain.Topic{twTopic, cryptoTopic})
	require.NoError(t, err)
	require.Equal(t, 1, del.count(), "tw has nothing new")
	assert.Equal(t, "crypto", del.calls[0].Topic)
	assert.Equal(t, SessionLabel(runNow, nil), del.calls[0].Content)
}

func TestRunSessionLabelSurvivesFailedCall(t *testing.T) {
	t.Parallel()

	src := &fakeSource{items: map[string][]domain.NewsItem{
		"tw":     stories("Taiex", 1),
		"crypto": stories("Bitcoin", 1),
	}}
	del := &fakeDeliverer{respond: func(call int, _ domain.NotificationBatch) domain.Outcome {
		if call == 0 {
			return transportError()
		}
		return accepted()
	}}
	p := newTestPipeline(src, &memStore{}, del, Options{SessionLabel: true})

	_, err := p.Run(context.Background(), []domain.Topic{twTopic, cryptoTopic})
	require.NoError(t, err)
	require.Equal(t, 2, del.count())
	label := SessionLabel(runNow, nil)
	assert.Equal(t, label, del.calls[0].Content)
	assert.Equal(t, label, del.calls[1].Content, "label is handed on after a failed call")
	assert.Equal(t, "crypto", del.calls[1].Topic)
}

func TestRunLinkIdentityCommitsHeadlineAlias(t *testing.T) {
	t.Parallel()

	item := domain.NewsItem{Headline: "Bitcoin tops 100k", URL: "https://a.example/btc"}
	store := &memStore{}
	src := &fakeSource{items: map[string][]domain.NewsItem{"crypto": {item}}}
	p := newTestPipeline(src, store, &fakeDeliverer{}, Options{Identity: domain.IdentityLinkFirst})

	_, err := p.Run(context.Background(), []domain.Topic{cryptoTopic})
	require.NoError(t, err)
	assert.True(t, store.has("https://a.example/btc"))
	assert.True(t, store.has("bitcoin tops 100k"))

	src.items["crypto"] = []domain.NewsItem{{Headline: "Bitcoin  tops 100K", URL: "https://b.example/other"}}
	report, err := p.Run(context.Background(), []domain.Topic{cryptoTopic})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Delivered(), "same story under another link is not re-sent")
}

func TestRunAppliesStalenessAndCap(t *testing.T) {
	t.Parallel()

	items := stories("Macro", 6)
	items[0].PublishedAt = runNow.Add(-13 * time.Hour)
	items[1].PublishedAt = runNow.Add(-time.Hour)
	items[2].PublishedAt = runNow.Add(-2 * time.Hour)

	src := &fakeSource{items: map[string][]domain.NewsItem{"crypto": items}}
	del := &fakeDeliverer{}
	p := newTestPipeline(src, &memStore{}, del, Options{StaleWindow: 12 * time.Hour, MaxItemsPerTopic: 3})

	report, err := p.Run(context.Background(), []domain.Topic{cryptoTopic})
	require.NoError(t, err)
	assert.Equal(t, []string{"macro story 1", "macro story 2", "macro story 3"}, report.Topics[0].Delivered)
}

func TestRunDryRunSendsNothing(t *testing.T) {
	t.Parallel()

	src := &fakeSource{items: map[string][]domain.NewsItem{"crypto": stories("Dry", 3)}}
	store := &memStore{}
	p := newTestPipeline(src, store, nil, Options{DryRun: true, SessionLabel: true})

	report, err := p.Run(context.Background(), []domain.Topic{cryptoTopic})
	require.NoError(t, err)
	require.Len(t, report.Topics[0].Batches, 1)
	assert.Equal(t, SessionLabel(runNow, nil), report.Topics[0].Batches[0].Content)
	assert.Equal(t, 0, report.Delivered())
	assert.Empty(t, store.keys)
}

func TestRunRequiresDeliverer(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(&fakeSource{}, nil, nil, Options{})
	_, err := p.Run(context.Background(), []domain.Topic{cryptoTopic})
	assert.Error(t, err)
}

func TestRunRespectsRetentionBound(t *testing.T) {
	t.Parallel()

	store := storage.NewFileStore(filepath.Join(t.TempDir(), "sent.txt"), 10)
	src := &fakeSource{items: map[string][]domain.NewsItem{}}
	p := NewPipeline(PipelineDeps{
		Source:    src,
		Store:     store,
		Deliverer: &fakeDeliverer{},
		Options:   Options{Identity: domain.IdentityHeadline, MaxItemsPerTopic: 50},
	})

	for round := 0; round < 4; round++ {
		src.items["crypto"] = stories(fmt.Sprintf("Round%d", round), 6)
		_, err := p.Run(context.Background(), []domain.Topic{cryptoTopic})
		require.NoError(t, err)

		keys, err := store.Load(context.Background())
		require.NoError(t, err)
		assert.LessOrEqual(t, len(keys), 10)
	}

	keys, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "round3 story 5", keys[len(keys)-1], "newest keys survive eviction")
}

func TestSessionLabel(t *testing.T) {
	t.Parallel()

	taipei := time.FixedZone("Asia/Taipei", 8*3600)
	at := func(h int) time.Time { return time.Date(2026, 3, 2, h, 30, 0, 0, taipei) }

	assert.Equal(t, "🏹 台股市場快訊", SessionLabel(at(8), taipei))
	assert.Equal(t, "🏹 台股午盤快訊", SessionLabel(at(13), taipei))
	assert.Equal(t, "⚡ 美股盤前快訊", SessionLabel(at(21), taipei))
	assert.Equal(t, "🌙 美股盤後回顧", SessionLabel(at(6), taipei))
	assert.Equal(t, "🏹 台股快訊", SessionLabel(at(10), taipei))
	assert.Equal(t, "⚡ 美股快訊", SessionLabel(at(23), taipei))

	// 00:30 UTC is 08:30 in Taipei
	assert.Equal(t, "🏹 台股市場快訊", SessionLabel(time.Date(2026, 3, 2, 0, 30, 0, 0, time.UTC), taipei))
}
