package storage

import (
	"sync"
	"time"

	"taskboard/domain"
)

// Cache holds the last collection the server confirmed. Every fetch draws a
// sequence number with Begin before it is issued; Apply only accepts results
// newer than the one already held, so a slow fetch that resolves late can
// never overwrite fresher data.
type Cache struct {
	mu        sync.RWMutex
	snap      domain.Snapshot
	loaded    bool
	issued    uint64
	applied   uint64
	fetchedAt time.Time
	now       func() time.Time
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{now: time.Now}
}

// Begin reserves the sequence number for a fetch about to be issued.
func (c *Cache) Begin() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.issued++
	return c.issued
}

// Apply stores snap as the canonical collection if seq is newer than the
// currently applied fetch. It reports whether the snapshot was accepted.
func (c *Cache) Apply(seq uint64, snap domain.Snapshot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq <= c.applied {
		return false
	}
	c.snap = snap
	c.loaded = true
	c.applied = seq
	c.fetchedAt = c.now()
	return true
}

// Snapshot returns the canonical collection and whether one was ever applied.
func (c *Cache) Snapshot() (domain.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap, c.loaded
}

// Applied returns the sequence number of the held snapshot, 0 when empty.
func (c *Cache) Applied() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.applied
}

// FetchedAt returns when the held snapshot was stored.
func (c *Cache) FetchedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetchedAt
}
