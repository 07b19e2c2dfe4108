package memory

import (
	"context"
	"sync"
	"time"
)

// Denylist is the in-memory twin of the redis access-token denylist.
type Denylist struct {
	mu      sync.RWMutex
	entries map[string]time.Time
}

func NewDenylist() *Denylist {
	return &Denylist{entries: make(map[string]time.Time)}
}

func (d *Denylist) DenyToken(_ context.Context, token string, ttl time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.entries[token] = time.Now().Add(ttl)
	return nil
}

func (d *Denylist) IsTokenDenied(_ context.Context, token string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	until, ok := d.entries[token]
	return ok && time.Now().Before(until), nil
}
