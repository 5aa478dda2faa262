package repository

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// priceCacheSize bounds the cache; the catalog holds four entries in practice.
const priceCacheSize = 64

// LRUPriceCache implements domain.PriceCache. A zero TTL keeps entries for
// the process lifetime.
type LRUPriceCache struct {
	cache *lru.LRU[string, string]
}

// NewLRUPriceCache creates an empty process-local price cache
func NewLRUPriceCache(ttl time.Duration) *LRUPriceCache {
	return &LRUPriceCache{
		cache: lru.NewLRU[string, string](priceCacheSize, nil, ttl),
	}
}

func (c *LRUPriceCache) Get(key string) (string, bool) {
	return c.cache.Get(key)
}

func (c *LRUPriceCache) Set(key, priceID string) {
	c.cache.Add(key, priceID)
}

// Snapshot returns the live entries keyed by catalog key.
func (c *LRUPriceCache) Snapshot() map[string]string {
	out := make(map[string]string, c.cache.Len())
	for _, key := range c.cache.Keys() {
		if v, ok := c.cache.Peek(key); ok {
			out[key] = v
		}
	}
	return out
}
