package usecase

import (
	"sync"

	"NewsRadar/internal/dedupe"
	"NewsRadar/internal/domain"
)

// claimSet stops two topics of the same run from delivering one story.
// A claim is held by the topic that selected the item and is released when
// its delivery fails, so a later topic may still pick it up.
type claimSet struct {
	mu        sync.Mutex
	claimed   domain.KeySet
	headlines map[string]string
}

func newClaimSet() *claimSet {
	return &claimSet{
		claimed:   domain.NewKeySet(),
		headlines: map[string]string{},
	}
}

// claim returns the items no other topic holds and claims them.
func (c *claimSet) claim(items []dedupe.Unique) []dedupe.Unique {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]dedupe.Unique, 0, len(items))
	for _, u := range items {
		h := domain.NormalizeHeadline(u.Item.Headline)
		if c.claimed.Has(u.Key) || c.claimed.Has(h) {
			continue
		}
		c.claimed.Add(u.Key)
		c.claimed.Add(h)
		c.headlines[u.Key] = h
		out = append(out, u)
	}
	return out
}

func (c *claimSet) release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.claimed, key)
	if h, ok := c.headlines[key]; ok {
		delete(c.claimed, h)
		delete(c.headlines, key)
	}
}
