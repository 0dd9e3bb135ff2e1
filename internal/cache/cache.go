package cache

import "time"

const (
	NoExpiration      time.Duration = -1
	DefaultExpiration time.Duration = 0
)

type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
	// GetOrSet returns the cached value or stores the one built by create.
	GetOrSet(key string, create func() any, ttl time.Duration) any
	Delete(key string)
	Clear()
	Count() int
}
