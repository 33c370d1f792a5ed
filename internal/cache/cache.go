// Package cache provides a small named TTL cache with hit/miss accounting.
// The service runs three instances (sessions, keys, responses) whose entry
// counts and hit rates are surfaced by the health aggregator.
package cache

import (
	"math"
	"sync"
	"time"
)

type item struct {
	value     any
	expiresAt time.Time
}

// Cache is a TTL map safe for concurrent use. A background goroutine sweeps
// expired entries; lookups also expire lazily so a stale entry is never
// returned between sweeps.
type Cache struct {
	name string
	ttl  time.Duration

	mu     sync.Mutex
	items  map[string]item
	hits   int64
	misses int64
	done   chan struct{}
	closed bool
}

// New creates a named cache with the given default TTL. cleanupInterval of 0
// disables the background sweep.
func New(name string, ttl, cleanupInterval time.Duration) *Cache {
	c := &Cache{
		name:  name,
		ttl:   ttl,
		items: make(map[string]item),
		done:  make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go c.cleanup(cleanupInterval)
	}
	return c
}

// Name returns the cache's name as reported in health snapshots.
func (c *Cache) Name() string {
	return c.name
}

// Get returns the cached value when present and unexpired.
func (c *Cache) Get(key string) (any, bool) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.items[key]
	if !ok || now.After(it.expiresAt) {
		if ok {
			delete(c.items, key)
		}
		c.misses++
		return nil, false
	}
	c.hits++
	return it.value, true
}

// Set stores a value with the default TTL.
func (c *Cache) Set(key string, value any) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value with an explicit TTL.
func (c *Cache) SetWithTTL(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = item{value: value, expiresAt: time.Now().Add(ttl)}
}

// Delete removes a key.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Stats is a snapshot for the health aggregator. HitRate is a whole
// percentage of hits over all lookups; an untouched cache reports 0.
type Stats struct {
	Entries int
	Hits    int64
	Misses  int64
	HitRate int
}

// Stats returns a snapshot of the cache's counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{Entries: len(c.items), Hits: c.hits, Misses: c.misses}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = int(math.Round(float64(c.hits) / float64(total) * 100))
	}
	return s
}

// Close stops the background sweep goroutine.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}

func (c *Cache) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *Cache) evictExpired() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, it := range c.items {
		if now.After(it.expiresAt) {
			delete(c.items, key)
		}
	}
}
