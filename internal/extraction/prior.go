package extraction

import (
	"context"
	"sync"
	"time"
)

// PriorCache exposes previously extracted identities, keyed by requester. The
// backing store is external (session cache); only the lookup surface is
// specified here.
type PriorCache interface {
	Get(ctx context.Context, requester string) (*Applicant, bool)
}

// PriorRecorder is implemented by caches that also accept new extractions.
type PriorRecorder interface {
	PriorCache
	Put(ctx context.Context, requester string, a *Applicant, ttl time.Duration)
}

// priorStrategy returns a cached prior extraction for the requester, when one
// exists. Near-zero latency; first in the cascade order.
type priorStrategy struct {
	cache PriorCache
}

// NewPrior creates the cached-prior-extraction strategy.
func NewPrior(cache PriorCache) Strategy {
	return &priorStrategy{cache: cache}
}

func (s *priorStrategy) Name() string { return "prior" }

func (s *priorStrategy) Extract(ctx context.Context, in Input) (*Applicant, error) {
	if s.cache == nil {
		return nil, nil
	}

	cached, ok := s.cache.Get(ctx, in.Requester)
	if !ok || cached == nil {
		return nil, nil
	}

	result := *cached
	result.Source = SourceCache
	return &result, nil
}

type memoryEntry struct {
	applicant Applicant
	expires   time.Time
}

// MemoryPriorCache is an in-process PriorCache with per-entry TTL. Suitable
// for a single worker process and for tests.
type MemoryPriorCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryPriorCache creates an empty in-process cache.
func NewMemoryPriorCache() *MemoryPriorCache {
	return &MemoryPriorCache{entries: make(map[string]memoryEntry)}
}

// Get returns the cached extraction for the requester, if fresh.
func (c *MemoryPriorCache) Get(_ context.Context, requester string) (*Applicant, bool) {
	c.mu.RLock()
	entry, ok := c.entries[requester]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expires) {
		return nil, false
	}

	result := entry.applicant
	return &result, true
}

// Put stores an extraction for the requester with the given TTL.
func (c *MemoryPriorCache) Put(_ context.Context, requester string, a *Applicant, ttl time.Duration) {
	if a == nil || ttl <= 0 {
		return
	}

	c.mu.Lock()
	c.entries[requester] = memoryEntry{applicant: *a, expires: time.Now().Add(ttl)}
	c.mu.Unlock()
}
