package auth

import (
	"context"
	"sync"
	"time"
)

// ReplayGuard remembers accepted signatures while their timestamp is still
// inside the clock skew window.
type ReplayGuard interface {
	// Remember records key for ttl and reports whether it was not already held
	Remember(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// MemoryReplayGuard is a process-local ReplayGuard
type MemoryReplayGuard struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
	calls   int
}

// NewMemoryReplayGuard creates an empty guard. now defaults to time.Now.
func NewMemoryReplayGuard(now func() time.Time) *MemoryReplayGuard {
	if now == nil {
		now = time.Now
	}
	return &MemoryReplayGuard{entries: make(map[string]time.Time), now: now}
}

func (g *MemoryReplayGuard) Remember(_ context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.calls++
	if g.calls%256 == 0 {
		g.prune(now)
	}

	if expires, ok := g.entries[key]; ok && now.Before(expires) {
		return false, nil
	}
	g.entries[key] = now.Add(ttl)
	return true, nil
}

// Len returns the number of remembered signatures, expired ones included
func (g *MemoryReplayGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

func (g *MemoryReplayGuard) prune(now time.Time) {
	for key, expires := range g.entries {
		if !now.Before(expires) {
			delete(g.entries, key)
		}
	}
}
