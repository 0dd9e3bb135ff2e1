package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/neuroasura/neuroasura/internal/logger"
)

const (
	globalKey    = "global_requests"
	globalWindow = time.Second
	userWindow   = time.Minute
)

// RedisLimiter keeps sliding windows in sorted sets scored by request time,
// so limits hold across bot instances.
type RedisLimiter struct {
	client *redis.Client
	limits Limits
	now    func() time.Time
	logger logger.Logger
}

func NewRedisLimiter(url string, limits Limits, log logger.Logger) *RedisLimiter {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.WithError(err).Warn("Failed to parse Redis URL, using it as address")
		opt = &redis.Options{Addr: url}
	}
	return NewRedisLimiterWithClient(redis.NewClient(opt), limits, log)
}

func NewRedisLimiterWithClient(client *redis.Client, limits Limits, log logger.Logger) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limits: limits.withDefaults(),
		now:    time.Now,
		logger: logger.Component(log, "ratelimit"),
	}
}

func (l *RedisLimiter) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func (l *RedisLimiter) Allow(ctx context.Context, userID int64) error {
	allowed, err := l.take(ctx, globalKey, globalWindow, l.limits.GlobalPerSecond)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: global", ErrRateLimitExceeded)
	}

	allowed, err = l.take(ctx, fmt.Sprintf("user_%d", userID), userWindow, l.limits.UserPerMinute)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: user %d", ErrRateLimitExceeded, userID)
	}
	return nil
}

// slidingWindow trims, counts and adds in one step, so concurrent instances
// never both take the last slot.
var slidingWindow = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[2])
if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[3]) then
	return 0
end
redis.call('ZADD', KEYS[1], ARGV[1], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return 1
`)

func (l *RedisLimiter) take(ctx context.Context, key string, window time.Duration, limit int) (bool, error) {
	now := l.now()

	taken, err := slidingWindow.Run(ctx, l.client, []string{key},
		now.UnixMicro(),
		now.Add(-window).UnixMicro(),
		limit,
		uuid.NewString(),
		(2 * window).Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis window %s: %w", key, err)
	}
	return taken == 1, nil
}

func (l *RedisLimiter) Close() error {
	return l.client.Close()
}

// FallbackLimiter asks the primary limiter and uses the fallback while the primary errors.
type FallbackLimiter struct {
	primary  Limiter
	fallback Limiter
	logger   logger.Logger
}

func NewFallbackLimiter(primary, fallback Limiter, log logger.Logger) *FallbackLimiter {
	return &FallbackLimiter{
		primary:  primary,
		fallback: fallback,
		logger:   logger.Component(log, "ratelimit"),
	}
}

func (l *FallbackLimiter) Allow(ctx context.Context, userID int64) error {
	err := l.primary.Allow(ctx, userID)
	if err == nil || errors.Is(err, ErrRateLimitExceeded) {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	l.logger.WithError(err).Warn("Rate limiter backend unavailable, using in-memory limiter")
	return l.fallback.Allow(ctx, userID)
}

func (l *FallbackLimiter) Close() error {
	if closer, ok := l.primary.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
