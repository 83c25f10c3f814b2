package token

import (
	"context"
	"sync"
	"time"
)

// Registry tracks which refresh tokens (by jti) are currently honored.
// A refresh token that verifies cryptographically is still rejected unless
// the registry contains it, which is what makes logout and rotation stick.
// Callers must not assume in-process durability; the default MemoryRegistry
// loses its contents on restart and the Redis implementation does not.
type Registry interface {
	Add(ctx context.Context, jti string, ttl time.Duration) error
	Remove(ctx context.Context, jti string) error
	Contains(ctx context.Context, jti string) (bool, error)
}

// MemoryRegistry is the default process-local implementation.
type MemoryRegistry struct {
	mu      sync.Mutex
	entries map[string]time.Time

	// Now is overridable in tests.
	Now func() time.Time
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		entries: make(map[string]time.Time),
		Now:     time.Now,
	}
}

func (r *MemoryRegistry) Add(_ context.Context, jti string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[jti] = r.Now().Add(ttl)
	return nil
}

func (r *MemoryRegistry) Remove(_ context.Context, jti string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, jti)
	return nil
}

func (r *MemoryRegistry) Contains(_ context.Context, jti string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	exp, ok := r.entries[jti]
	if !ok {
		return false, nil
	}
	if r.Now().After(exp) {
		delete(r.entries, jti)
		return false, nil
	}
	return true, nil
}

// Len reports the number of live entries. Expired entries still pending
// lazy cleanup are counted.
func (r *MemoryRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
