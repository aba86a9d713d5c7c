// Package cache holds the console's per-patient bundle cache: the latest
// call log and its derived review data, keyed by patient id.
//
// Reads never mutate the cache. Every successful state-changing call that
// touches a patient must Invalidate that patient before the next render so
// the view is rebuilt from the API's canonical state.
package cache

import (
	"sync"
	"time"
)

// Invalidator is the write side of the cache contract, as seen by the
// services that mutate patient state.
type Invalidator interface {
	Invalidate(patientID int64)
}

// Nop is an Invalidator that does nothing.
type Nop struct{}

func (Nop) Invalidate(int64) {}

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// PatientCache is a thread-safe map from patient id to a cached value.
// An optional TTL expires entries lazily on Get.
//
// Every Invalidate and Reset advances a generation. A reader that fetched
// from the API stores its result with PutIf and the generation it saw
// before fetching, so a write that lands mid-fetch is never undone.
type PatientCache[V any] struct {
	mu      sync.RWMutex
	entries map[int64]entry[V]
	gens    map[int64]uint64
	floor   uint64
	seq     uint64
	ttl     time.Duration
	now     func() time.Time
}

// New returns an empty cache. A ttl of zero keeps entries until invalidated.
func New[V any](ttl time.Duration) *PatientCache[V] {
	return &PatientCache[V]{
		entries: make(map[int64]entry[V]),
		gens:    make(map[int64]uint64),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached value for patientID.
func (c *PatientCache[V]) Get(patientID int64) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[patientID]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if c.ttl > 0 && c.now().Sub(e.storedAt) > c.ttl {
		return zero, false
	}
	return e.value, true
}

// Generation returns the invalidation generation of patientID. Read it
// before fetching and hand it to PutIf.
func (c *PatientCache[V]) Generation(patientID int64) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation(patientID)
}

func (c *PatientCache[V]) generation(patientID int64) uint64 {
	if g := c.gens[patientID]; g > c.floor {
		return g
	}
	return c.floor
}

// Put stores value for patientID, replacing any previous entry.
func (c *PatientCache[V]) Put(patientID int64, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[patientID] = entry[V]{value: value, storedAt: c.now()}
}

// PutIf stores value only if patientID has not been invalidated since gen
// was read. It reports whether the value was stored.
func (c *PatientCache[V]) PutIf(patientID int64, gen uint64, value V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation(patientID) != gen {
		return false
	}
	c.entries[patientID] = entry[V]{value: value, storedAt: c.now()}
	return true
}

// Invalidate drops the entry for patientID.
func (c *PatientCache[V]) Invalidate(patientID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, patientID)
	c.seq++
	c.gens[patientID] = c.seq
}

// Reset drops every entry. Used on session teardown.
func (c *PatientCache[V]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[int64]entry[V])
	c.gens = make(map[int64]uint64)
	c.seq++
	c.floor = c.seq
}

// Len returns the number of stored entries, expired or not.
func (c *PatientCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
