package cache

import (
	"sync"
	"time"
)

// Cache is a single-value TTL cache for rarely-changing lookup lists
// (departments, feedback categories). Mutating handlers call Invalidate.
type Cache[T any] struct {
	mu        sync.Mutex
	value     T
	fetchedAt time.Time
	ttl       time.Duration

	// Now is overridable in tests.
	Now func() time.Time
}

func New[T any](ttl time.Duration) *Cache[T] {
	return &Cache[T]{ttl: ttl, Now: time.Now}
}

func (c *Cache[T]) Get() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	if c.fetchedAt.IsZero() || c.Now().Sub(c.fetchedAt) > c.ttl {
		return zero, false
	}
	return c.value, true
}

func (c *Cache[T]) Set(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = v
	c.fetchedAt = c.Now()
}

func (c *Cache[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	c.value = zero
	c.fetchedAt = time.Time{}
}
