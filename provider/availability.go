package provider

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"storechat/config"
	"storechat/model"
)

const (
	availabilityTTL = 30 * time.Second
	probeTimeout    = 5 * time.Second
)

type availEntry struct {
	available bool
	checkedAt time.Time
}

// availabilityCache caches reachability probes per provider id with a TTL.
// Concurrent callers checking the same provider share one in-flight probe
// via singleflight instead of issuing duplicates.
type availabilityCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]availEntry
	group   singleflight.Group
}

func newAvailabilityCache(ttl time.Duration) *availabilityCache {
	if ttl <= 0 {
		ttl = availabilityTTL
	}
	return &availabilityCache{
		ttl:     ttl,
		entries: make(map[string]availEntry),
	}
}

// check returns the cached availability for p, probing at most once per TTL
// window. Probe failures are converted to false, never propagated.
func (a *availabilityCache) check(ctx context.Context, p model.Provider) bool {
	id := p.Name()

	a.mu.Lock()
	entry, ok := a.entries[id]
	a.mu.Unlock()
	if ok && time.Since(entry.checkedAt) < a.ttl {
		return entry.available
	}

	v, _, _ := a.group.Do(id, func() (any, error) {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()

		err := p.Ping(probeCtx)
		available := err == nil

		if config.DebugLog != nil && err != nil {
			config.DebugLog.Printf("[Provider] Availability probe for %s failed: %v", id, err)
		}

		a.mu.Lock()
		a.entries[id] = availEntry{available: available, checkedAt: time.Now()}
		a.mu.Unlock()

		return available, nil
	})

	return v.(bool)
}
