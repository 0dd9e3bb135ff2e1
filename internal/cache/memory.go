package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type MemoryCache struct {
	items *gocache.Cache
}

// NewMemoryCache keeps items for defaultTTL unless Set says otherwise and
// purges expired ones every cleanupInterval.
func NewMemoryCache(defaultTTL, cleanupInterval time.Duration) Cache {
	return &MemoryCache{
		items: gocache.New(defaultTTL, cleanupInterval),
	}
}

func (c *MemoryCache) Get(key string) (any, bool) {
	return c.items.Get(key)
}

func (c *MemoryCache) Set(key string, value any, ttl time.Duration) {
	c.items.Set(key, value, ttl)
}

func (c *MemoryCache) GetOrSet(key string, create func() any, ttl time.Duration) any {
	if value, ok := c.items.Get(key); ok {
		return value
	}
	value := create()
	if err := c.items.Add(key, value, ttl); err != nil {
		// lost the race, keep the winner
		if existing, ok := c.items.Get(key); ok {
			return existing
		}
	}
	return value
}

func (c *MemoryCache) Delete(key string) {
	c.items.Delete(key)
}

func (c *MemoryCache) Clear() {
	c.items.Flush()
}

func (c *MemoryCache) Count() int {
	return c.items.ItemCount()
}
