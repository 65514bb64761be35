package domain

// KeySet is the membership view of the deliverable store.
type KeySet map[string]struct{}

// NewKeySet builds a set from keys.
func NewKeySet(keys ...string) KeySet {
	s := make(KeySet, len(keys))
	for _, k := range keys {
		s.Add(k)
	}
	return s
}

// Has reports membership; a nil set contains nothing.
func (s KeySet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Add inserts key; empty keys are ignored.
func (s KeySet) Add(key string) {
	if key == "" {
		return
	}
	s[key] = struct{}{}
}
