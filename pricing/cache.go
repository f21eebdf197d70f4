// Package pricing supplies USD prices for native gas tokens, backed by an
// external price feed with per-network caching and static fallbacks.
package pricing

import (
	"sync"
	"time"
)

type cacheEntry struct {
	price     float64
	fetchedAt time.Time
}

// Cache is a TTL price cache keyed by canonical network. Instances are
// constructor-owned and injected so tests can run isolated caches in
// parallel; there is no package-level singleton.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

// CacheStat is an observability snapshot of one cached price.
type CacheStat struct {
	Price      float64 `json:"price"`
	AgeSeconds float64 `json:"ageSeconds"`
}

// NewCache creates a cache with the given TTL. A zero TTL means every
// lookup misses, forcing a refetch.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

// Get returns the cached price for a network when it is within the TTL
// window.
func (c *Cache) Get(network string) (float64, bool) {
	if c.ttl <= 0 {
		return 0, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[network]
	if !ok {
		return 0, false
	}
	if time.Since(entry.fetchedAt) > c.ttl {
		return 0, false
	}
	return entry.price, true
}

// Set stores a freshly fetched price with the current timestamp.
func (c *Cache) Set(network string, price float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[network] = cacheEntry{price: price, fetchedAt: time.Now()}
}

// Clear removes the given networks' entries, or every entry when called
// with no arguments.
func (c *Cache) Clear(networks ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(networks) == 0 {
		c.entries = make(map[string]cacheEntry)
		return
	}
	for _, network := range networks {
		delete(c.entries, network)
	}
}

// Stats reports the last price and age per cached network. Expired entries
// are included; this is for observability, not correctness.
func (c *Cache) Stats() map[string]CacheStat {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := make(map[string]CacheStat, len(c.entries))
	for network, entry := range c.entries {
		stats[network] = CacheStat{
			Price:      entry.price,
			AgeSeconds: time.Since(entry.fetchedAt).Seconds(),
		}
	}
	return stats
}
