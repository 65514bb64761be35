package domain

import "strings"

// Field is a small key/value annotation rendered inside a block.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Block is one rendered card of a notification call.
type Block struct {
	Title       string
	Description string
	URL         string // empty when the item has no usable link
	Color       int
	Fields      []Field
	Footer      string
}

// ItemBlock is a rendered item together with the key committed on acceptance.
type ItemBlock struct {
	Key   string
	Block Block
}

// NotificationBatch is everything sent in a single delivery call.
type NotificationBatch struct {
	Topic    string
	Content  string // optional short plain-text line above the blocks
	Header   *Block
	Items    []ItemBlock
	Sequence int // 1-based position within the topic's batches
	Total    int
}

// Keys returns the deliverable keys of the batch in render order.
func (b NotificationBatch) Keys() []string {
	keys := make([]string, 0, len(b.Items))
	for _, it := range b.Items {
		keys = append(keys, it.Key)
	}
	return keys
}

// Blocks returns the header (if any) followed by the item blocks.
func (b NotificationBatch) Blocks() []Block {
	blocks := make([]Block, 0, len(b.Items)+1)
	if b.Header != nil {
		blocks = append(blocks, *b.Header)
	}
	for _, it := range b.Items {
		blocks = append(blocks, it.Block)
	}
	return blocks
}

// Single returns a batch carrying only the i-th item under a shortened
// header: same title and footer, first description line only. It is used
// when a rejected call is retried item by item.
func (b NotificationBatch) Single(i int) NotificationBatch {
	single := NotificationBatch{
		Topic:    b.Topic,
		Items:    []ItemBlock{b.Items[i]},
		Sequence: b.Sequence,
		Total:    b.Total,
	}
	if b.Header != nil {
		h := *b.Header
		h.Description, _, _ = strings.Cut(h.Description, "\n")
		h.Fields = nil
		single.Header = &h
	}
	return single
}
