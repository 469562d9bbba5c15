package upstream

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// PollCache coalesces concurrent record fetches for the same job id. N
// callers polling one job inside the TTL collapse to a single upstream round
// trip; whether the upstream tolerates the uncoalesced load is unspecified,
// so this is a policy knob rather than an assumption.
type PollCache struct {
	ttl   time.Duration
	group singleflight.Group

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	record  map[string]any
	fetched time.Time
}

// NewPollCache creates a poll cache with the given snapshot TTL.
func NewPollCache(ttl time.Duration) *PollCache {
	return &PollCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// Fetch returns a record for key, serving a snapshot younger than the TTL
// when one exists and otherwise sharing a single in-flight fetch among
// concurrent callers.
func (c *PollCache) Fetch(ctx context.Context, key string, fetch func(ctx context.Context) (map[string]any, error)) (map[string]any, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && time.Since(e.fetched) < c.ttl {
		c.mu.Unlock()
		return e.record, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(key, func() (any, error) {
		record, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = cacheEntry{record: record, fetched: time.Now()}
		c.mu.Unlock()
		return record, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

// Forget drops the cached snapshot for key. Terminal records need no expiry,
// but callers that resubmit a job id can clear stale state.
func (c *PollCache) Forget(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	c.group.Forget(key)
}
