package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache mirrors RedisCache semantics for unit tests and
// single-process deployments, including TTL expiry and scope indexing.
type MemoryCache struct {
	mu     sync.RWMutex
	ttl    time.Duration
	values map[string]memoryEntry
	scopes map[string]map[string]struct{}
	// now is swappable for TTL tests.
	now func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		ttl:    ttl,
		values: make(map[string]memoryEntry),
		scopes: make(map[string]map[string]struct{}),
		now:    time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.values[key]
	if !ok || c.now().After(entry.expiresAt) {
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (c *MemoryCache) Set(_ context.Context, scope Scope, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = memoryEntry{value: value, expiresAt: c.now().Add(c.ttl)}
	index := scope.String()
	if c.scopes[index] == nil {
		c.scopes[index] = make(map[string]struct{})
	}
	c.scopes[index][key] = struct{}{}
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, scope Scope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	index := scope.String()
	for key := range c.scopes[index] {
		delete(c.values, key)
	}
	delete(c.scopes, index)
	return nil
}
