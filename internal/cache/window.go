// Package cache holds normalized feed results per time window for a short TTL.
package cache

import (
	"slices"
	"sync"
	"time"

	"github.com/couchcryptid/quakewatch/internal/domain"
	"github.com/jonboulle/clockwork"
)

// DefaultTTL is how long a window's result stays readable.
const DefaultTTL = 5 * time.Minute

// WindowCache is a thread-safe map of time window to normalized result.
// Expired entries read as misses and are replaced on the next Put; nothing
// sweeps them, since the key space is the four windows.
type WindowCache struct {
	ttl   time.Duration
	clock clockwork.Clock

	mu      sync.Mutex
	entries map[domain.TimeWindow]entry
}

type entry struct {
	data     []domain.Earthquake
	storedAt time.Time
}

// New creates a cache with the given TTL. A nil clock uses real time and a
// non-positive TTL falls back to DefaultTTL.
func New(ttl time.Duration, clock clockwork.Clock) *WindowCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &WindowCache{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[domain.TimeWindow]entry),
	}
}

// Get returns a copy of the window's result if it was stored less than TTL ago.
func (c *WindowCache) Get(w domain.TimeWindow) ([]domain.Earthquake, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[w]
	if !ok {
		return nil, false
	}
	if c.clock.Since(e.storedAt) >= c.ttl {
		return nil, false
	}
	return slices.Clone(e.data), true
}

// Put overwrites the window's entry and stamps it with the current time.
func (c *WindowCache) Put(w domain.TimeWindow, data []domain.Earthquake) {
	stored := slices.Clone(data)
	if stored == nil {
		stored = []domain.Earthquake{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[w] = entry{data: stored, storedAt: c.clock.Now()}
}

// Clear drops every entry regardless of window or age.
func (c *WindowCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// Len reports the number of physical entries, including expired ones.
func (c *WindowCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// TTL returns the configured time-to-live.
func (c *WindowCache) TTL() time.Duration {
	return c.ttl
}
