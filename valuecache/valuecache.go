// Package valuecache implements ValueCache (V): the last-known snapshot,
// timestamp and liveness flag per subscribed sensor id (spec.md §4.3).
package valuecache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/un9021/uniset2/sm"
)

// entry pairs a snapshot with its own mutex so readers observe a
// consistent view of one sensor's fields without blocking writes to any
// other entry (spec.md §4.3: "no cross-entry atomicity is provided").
type entry struct {
	mu       sync.Mutex
	snapshot sm.Snapshot
	alive    bool
}

// Cache is a bounded LRU of per-sensor entries. Capacity is sized to the
// directory at construction time; it never needs to evict in normal
// operation since the directory is immutable once built, but the LRU
// backing keeps the cache safe if the gateway is ever pointed at a
// directory larger than expected.
type Cache struct {
	store *lru.Cache[sm.SensorId, *entry]
}

// New builds a cache sized for capacity sensors. capacity must be > 0;
// callers size it from the directory's entry count.
func New(capacity int) (*Cache, error) {
	if capacity < 1 {
		capacity = 1
	}
	store, err := lru.New[sm.SensorId, *entry](capacity)
	if err != nil {
		return nil, err
	}
	return &Cache{store: store}, nil
}

func (c *Cache) entryFor(id sm.SensorId) *entry {
	if e, ok := c.store.Get(id); ok {
		return e
	}
	e := &entry{}
	c.store.Add(id, e)
	return e
}

// Update accepts an inbound snapshot. It is last-writer-wins under SM's
// logical clock: a snapshot whose SMTime is strictly earlier than the
// entry's current SMTime is discarded and the cache is left unchanged
// (spec.md §4.3, §8).
func (c *Cache) Update(snap sm.Snapshot) (accepted bool) {
	e := c.entryFor(snap.ID)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.alive && snap.SMTime.Before(e.snapshot.SMTime) {
		return false
	}

	e.snapshot = snap
	e.alive = true
	return true
}

// Get returns the current snapshot for id, or false if nothing has ever
// been accepted for it.
func (c *Cache) Get(id sm.SensorId) (sm.Snapshot, bool) {
	e, ok := c.store.Peek(id)
	if !ok {
		return sm.Snapshot{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.alive {
		return sm.Snapshot{}, false
	}
	return e.snapshot, true
}

// Age returns now minus the SMTime of id's current snapshot, or false if
// nothing has been accepted for id.
func (c *Cache) Age(id sm.SensorId, now time.Time) (time.Duration, bool) {
	snap, ok := c.Get(id)
	if !ok {
		return 0, false
	}
	return now.Sub(snap.SMTime), true
}

// Remove discards the cached snapshot for id. Nothing in the gateway
// calls it; an unask leaves the cached snapshot in place.
func (c *Cache) Remove(id sm.SensorId) {
	c.store.Remove(id)
}

func (c *Cache) Len() int { return c.store.Len() }
