package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oksasatya/resume-analyzer-api/internal/domain/repository"
)

// Denylist is a process-local token denylist. Expired entries are dropped
// lazily on lookup and on every Set.
type Denylist struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewDenylist() *Denylist {
	return &Denylist{entries: make(map[string]time.Time), now: time.Now}
}

// NewDenylistWithClock is used by tests that need to move time forward.
func NewDenylistWithClock(now func() time.Time) *Denylist {
	return &Denylist{entries: make(map[string]time.Time), now: now}
}

func (d *Denylist) Set(_ context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	for k, exp := range d.entries {
		if !exp.After(now) {
			delete(d.entries, k)
		}
	}
	d.entries[token] = now.Add(ttl)
	return nil
}

func (d *Denylist) Has(_ context.Context, token string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	exp, ok := d.entries[token]
	if !ok {
		return false, nil
	}
	if !exp.After(d.now()) {
		delete(d.entries, token)
		return false, nil
	}
	return true, nil
}

func (d *Denylist) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

var _ repository.TokenDenylist = (*Denylist)(nil)
