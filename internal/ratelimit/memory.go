package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/neuroasura/neuroasura/internal/cache"
)

const userLimiterTTL = 10 * time.Minute

// MemoryLimiter uses token buckets: one global and one per user.
type MemoryLimiter struct {
	global *rate.Limiter
	users  cache.Cache
	limits Limits
}

func NewMemoryLimiter(limits Limits, c cache.Cache) *MemoryLimiter {
	limits = limits.withDefaults()
	if c == nil {
		c = cache.NewMemoryCache(userLimiterTTL, userLimiterTTL)
	}
	return &MemoryLimiter{
		global: rate.NewLimiter(rate.Limit(limits.GlobalPerSecond), limits.GlobalPerSecond),
		users:  c,
		limits: limits,
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !l.global.Allow() {
		return fmt.Errorf("%w: global", ErrRateLimitExceeded)
	}
	if !l.userLimiter(userID).Allow() {
		return fmt.Errorf("%w: user %d", ErrRateLimitExceeded, userID)
	}
	return nil
}

func (l *MemoryLimiter) userLimiter(userID int64) *rate.Limiter {
	key := fmt.Sprintf("ratelimit:user_%d", userID)
	limiter := l.users.GetOrSet(key, func() any {
		return rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.limits.UserPerMinute)), l.limits.UserPerMinute)
	}, userLimiterTTL)
	return limiter.(*rate.Limiter)
}
