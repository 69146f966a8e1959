package cache

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

type memoryEntry struct {
	fragment domain.AddressFragment
	storedAt time.Time
}

// MemoryCache is a process-local PostalCache. Expired entries are pruned on every write.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *MemoryCache) Get(_ context.Context, key string) (*domain.AddressFragment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok || m.now().Sub(e.storedAt) >= m.ttl {
		return nil, ErrCacheMiss
	}
	f := e.fragment
	return &f, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, fragment *domain.AddressFragment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.entries[key] = memoryEntry{fragment: *fragment, storedAt: now}
	for k, e := range m.entries {
		if now.Sub(e.storedAt) > m.ttl {
			delete(m.entries, k)
		}
	}
	return nil
}

func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
