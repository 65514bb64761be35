// Package batcher renders classified items into delivery-sized batches.
package batcher

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"NewsRadar/internal/domain"
)

// Config configures rendering. Zero values fall back to defaults.
type Config struct {
	Limits        Limits
	Labels        Labels
	Location      *time.Location
	FooterText    string
	DefaultSource string // shown when an item has no publisher
	TickerHints   bool
}

// Header carries the per-topic context rendered on top of every call.
type Header struct {
	Summary string // optional context line, e.g. an index quote
	Content string // optional plain-text line sent with the first call only
}

// Omission records an item that could not be rendered.
type Omission struct {
	Key    string
	Reason error
}

// Batcher is stateless apart from its configuration.
type Batcher struct {
	cfg Config
	now func() time.Time
}

// New builds a Batcher.
func New(cfg Config) *Batcher {
	cfg.Limits = cfg.Limits.WithDefaults()
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Labels.Severity == nil {
		cfg.Labels = DefaultLabels()
	}
	if cfg.DefaultSource == "" {
		cfg.DefaultSource = "Google News"
	}
	return &Batcher{cfg: cfg, now: time.Now}
}

// Limits exposes the effective limits.
func (b *Batcher) Limits() Limits {
	return b.cfg.Limits
}

// Build renders items for topic into ordered batches. Items are rendered
// most-recent-first when timestamps exist, otherwise in input order. Items
// whose block is malformed are omitted and reported. With no renderable
// items Build returns a single header-only batch when announceEmpty is set,
// and nothing otherwise.
func (b *Batcher) Build(items []domain.ClassifiedItem, topic domain.Topic, hdr Header, announceEmpty bool) ([]domain.NotificationBatch, []Omission) {
	now := b.now().In(b.cfg.Location)
	lim := b.cfg.Limits

	ordered := make([]domain.ClassifiedItem, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool {
		return domain.NewerFirst(ordered[i].Item, ordered[j].Item)
	})

	content := Truncate(strings.TrimSpace(hdr.Content), lim.ContentMax)
	full := b.header(topic, hdr.Summary, now, "")
	probe := b.header(topic, "", now, b.continuation(999, 999))
	reserve := max(blockSize(full), blockSize(probe))

	itemCap := lim.MaxBlocksPerCall - 1
	budget := lim.MaxCharsPerCall - reserve

	var (
		omitted  []Omission
		rendered []domain.ItemBlock
	)
	for _, it := range ordered {
		blk := b.renderItem(it, topic, now)
		blk, err := b.fit(blk, budget)
		if err == nil {
			err = b.Validate(blk)
		}
		if err != nil {
			omitted = append(omitted, Omission{Key: it.Key, Reason: err})
			continue
		}
		rendered = append(rendered, domain.ItemBlock{Key: it.Key, Block: blk})
	}

	if len(rendered) == 0 {
		if !announceEmpty {
			return nil, omitted
		}
		empty := full
		empty.Description = strings.TrimSpace(empty.Description + "\n" + b.cfg.Labels.NoNews)
		empty.Description = Truncate(empty.Description, lim.DescriptionMax)
		return []domain.NotificationBatch{{
			Topic:    topic.Name,
			Content:  content,
			Header:   &empty,
			Sequence: 1,
			Total:    1,
		}}, omitted
	}

	var groups [][]domain.ItemBlock
	var cur []domain.ItemBlock
	used := 0
	for _, ib := range rendered {
		size := blockSize(ib.Block)
		if len(cur) > 0 && (len(cur) >= itemCap || used+size > budget) {
			groups = append(groups, cur)
			cur, used = nil, 0
		}
		cur = append(cur, ib)
		used += size
	}
	groups = append(groups, cur)

	batches := make([]domain.NotificationBatch, 0, len(groups))
	for i, g := range groups {
		var h domain.Block
		if i == 0 {
			h = full
		} else {
			h = b.header(topic, "", now, b.continuation(i+1, len(groups)))
		}
		nb := domain.NotificationBatch{
			Topic:    topic.Name,
			Header:   &h,
			Items:    g,
			Sequence: i + 1,
			Total:    len(groups),
		}
		if i == 0 {
			nb.Content = content
		}
		batches = append(batches, nb)
	}
	return batches, omitted
}

func (b *Batcher) header(topic domain.Topic, summary string, now time.Time, suffix string) domain.Block {
	lim := b.cfg.Limits
	title := topic.Title
	if title == "" {
		title = topic.Name
	}

	desc := fmt.Sprintf("%s (%s)", now.Format("2006-01-02 15:04"), b.cfg.Location.String())
	if s := strings.TrimSpace(summary); s != "" {
		desc += "\n" + s
	}

	return domain.Block{
		Title:       Truncate(title, lim.TitleMax-runeLen(suffix)) + suffix,
		Description: Truncate(desc, lim.DescriptionMax),
		Color:       ColorHeader,
		Footer:      Truncate(b.cfg.FooterText, lim.FooterMax),
	}
}

func (b *Batcher) continuation(seq, total int) string {
	return fmt.Sprintf(" (%s %d/%d)", b.cfg.Labels.Continued, seq, total)
}

func (b *Batcher) renderItem(it domain.ClassifiedItem, topic domain.Topic, now time.Time) domain.Block {
	lim := b.cfg.Limits
	lbl := b.cfg.Labels

	title := strings.TrimSpace(it.Item.Headline)
	if b.cfg.TickerHints {
		if t := TickerHint(title); t != "" {
			title = t + " | " + title
		}
	}

	link := ""
	if it.Item.LinkUsable() {
		link = strings.TrimSpace(it.Item.URL)
	}

	source := strings.TrimSpace(it.Item.Publisher)
	if source == "" {
		source = b.cfg.DefaultSource
	}

	published := now
	if it.Item.HasTimestamp() {
		published = it.Item.PublishedAt.In(b.cfg.Location)
	}

	market := topic.Label
	if market == "" {
		market = topic.Name
	}

	sev := string(it.Severity)
	fields := []domain.Field{
		{Name: lbl.Level, Value: lbl.lookup(lbl.Severity, sev), Inline: true},
		{Name: lbl.Market, Value: market, Inline: true},
		{Name: lbl.Source, Value: source, Inline: true},
		{Name: lbl.Published, Value: published.Format("01-02 15:04"), Inline: true},
		{Name: lbl.Judgement, Value: lbl.lookup(lbl.Verdict, sev), Inline: true},
		{Name: lbl.Sentiment, Value: lbl.lookup(lbl.Direction, string(it.Sentiment)), Inline: true},
	}
	if len(fields) > lim.MaxFields {
		fields = fields[:lim.MaxFields]
	}
	for i := range fields {
		fields[i].Name = Truncate(fields[i].Name, lim.FieldNameMax)
		fields[i].Value = Truncate(fields[i].Value, lim.FieldValueMax)
	}

	return domain.Block{
		Title:       Truncate(title, lim.TitleMax),
		Description: Truncate(strings.TrimSpace(it.Item.Summary), lim.SummaryMax),
		URL:         link,
		Color:       SeverityColor(it.Severity),
		Fields:      fields,
		Footer:      Truncate(b.cfg.FooterText, lim.FooterMax),
	}
}

var errTooLarge = errors.New("block exceeds per-call character budget")

// fit shrinks the optional description so that blk fits in budget. The
// title, link and fields are never split off.
func (b *Batcher) fit(blk domain.Block, budget int) (domain.Block, error) {
	over := blockSize(blk) - budget
	if over <= 0 {
		return blk, nil
	}
	desc := runeLen(blk.Description)
	if over > desc {
		return blk, errTooLarge
	}
	blk.Description = Truncate(blk.Description, desc-over)
	return blk, nil
}

// Validate checks a block against the channel schema.
func (b *Batcher) Validate(blk domain.Block) error {
	lim := b.cfg.Limits
	if strings.TrimSpace(blk.Title) == "" {
		return errors.New("block has empty title")
	}
	if n := runeLen(blk.Title); n > lim.TitleMax {
		return fmt.Errorf("title length %d exceeds %d", n, lim.TitleMax)
	}
	if n := runeLen(blk.Description); n > lim.DescriptionMax {
		return fmt.Errorf("description length %d exceeds %d", n, lim.DescriptionMax)
	}
	if n := runeLen(blk.Footer); n > lim.FooterMax {
		return fmt.Errorf("footer length %d exceeds %d", n, lim.FooterMax)
	}
	if blk.URL != "" && !domain.IsUsableURL(blk.URL) {
		return fmt.Errorf("unusable url %q", blk.URL)
	}
	if len(blk.Fields) > lim.MaxFields {
		return fmt.Errorf("%d fields exceed %d", len(blk.Fields), lim.MaxFields)
	}
	for i, f := range blk.Fields {
		if strings.TrimSpace(f.Name) == "" || strings.TrimSpace(f.Value) == "" {
			return fmt.Errorf("field %d is empty", i)
		}
		if runeLen(f.Name) > lim.FieldNameMax || runeLen(f.Value) > lim.FieldValueMax {
			return fmt.Errorf("field %d exceeds length caps", i)
		}
	}
	return nil
}
