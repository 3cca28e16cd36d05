package sessionstore

import (
	"context"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps summaries in process memory using go-cache. Entries expire
// after the configured TTL.
type MemoryStore struct {
	cache *cache.Cache
	ttl   time.Duration
}

// NewMemoryStore creates an in-memory store.
//
// Parameters:
//   - ttl: How long a summary is kept (use cache.NoExpiration to keep forever)
//   - cleanupInterval: Interval at which expired summaries are purged
//
// Returns:
//   - A new MemoryStore
func NewMemoryStore(ttl, cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{
		cache: cache.New(ttl, cleanupInterval),
		ttl:   ttl,
	}
}

func (m *MemoryStore) Save(ctx context.Context, s Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.cache.Set(Key(s.ID), s, m.ttl)
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id uint32) (Summary, bool, error) {
	if err := ctx.Err(); err != nil {
		return Summary{}, false, err
	}

	val, found := m.cache.Get(Key(id))
	if !found {
		return Summary{}, false, nil
	}

	s, ok := val.(Summary)
	return s, ok, nil
}

func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	n := 0
	for key := range m.cache.Items() {
		if strings.HasPrefix(key, KeyPrefix) {
			n++
		}
	}

	return n, nil
}

func (m *MemoryStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.cache.Flush()
	return nil
}
