package cache

import "context"

// MemStore is the Store used when RunContext.MemCache is set: it loads
// whatever in-memory Cache it was constructed with and discards Save
// calls entirely, matching spec.md §4.8's "skip save when MemCache".
type MemStore struct {
	Cache *Cache
}

// NewMemStore wraps an existing Cache (or a fresh one, if nil) as a
// no-persistence Store.
func NewMemStore(c *Cache) *MemStore {
	if c == nil {
		c = New()
	}
	return &MemStore{Cache: c}
}

func (m *MemStore) Load(ctx context.Context) (*Cache, error) { return m.Cache, nil }

func (m *MemStore) Save(ctx context.Context, c *Cache) error { return nil }
