package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryResultCache is an in-process ResultCache with TTL and a fixed entry
// capacity. Used when Redis is not configured, and in tests. Eviction is
// oldest-inserted-first once capacity is reached.
type MemoryResultCache struct {
	mu       sync.Mutex
	entries  map[string]memoryEntry
	order    []string
	capacity int
	now      func() time.Time
}

type memoryEntry struct {
	data       []byte
	insertedAt time.Time
	expiresAt  time.Time
}

// NewMemoryResultCache creates an in-memory cache holding at most capacity
// entries.
func NewMemoryResultCache(capacity int) *MemoryResultCache {
	if capacity <= 0 {
		capacity = 128
	}
	return &MemoryResultCache{
		entries:  make(map[string]memoryEntry),
		capacity: capacity,
		now:      time.Now,
	}
}

func (c *MemoryResultCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if c.now().After(entry.expiresAt) {
		// Drop the order slot too, or a re-Set of this key would be tracked
		// twice and evicted early.
		delete(c.entries, key)
		c.removeFromOrder(key)
		return nil, false, nil
	}
	return entry.data, true, nil
}

func (c *MemoryResultCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		for len(c.entries) >= c.capacity && len(c.order) > 0 {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}

	now := c.now()
	c.entries[key] = memoryEntry{
		data:       data,
		insertedAt: now,
		expiresAt:  now.Add(ttl),
	}
	return nil
}

func (c *MemoryResultCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// Len returns the number of live entries.
func (c *MemoryResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
