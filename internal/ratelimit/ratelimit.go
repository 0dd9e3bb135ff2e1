package ratelimit

import (
	"context"
	"errors"

	"github.com/neuroasura/neuroasura/internal/cache"
	"github.com/neuroasura/neuroasura/internal/config"
	"github.com/neuroasura/neuroasura/internal/logger"
)

const (
	DefaultGlobalPerSecond = 10
	DefaultUserPerMinute   = 60
)

var ErrRateLimitExceeded = errors.New("rate limit exceeded")

type Limiter interface {
	// Allow returns ErrRateLimitExceeded when the request must be rejected.
	Allow(ctx context.Context, userID int64) error
}

type Limits struct {
	GlobalPerSecond int
	UserPerMinute   int
}

func (l Limits) withDefaults() Limits {
	if l.GlobalPerSecond <= 0 {
		l.GlobalPerSecond = DefaultGlobalPerSecond
	}
	if l.UserPerMinute <= 0 {
		l.UserPerMinute = DefaultUserPerMinute
	}
	return l
}

type noop struct{}

func (noop) Allow(context.Context, int64) error { return nil }

// Unlimited allows every request.
var Unlimited Limiter = noop{}

// New builds the limiter for the config: Redis with an in-memory fallback
// when a Redis URL is set, in-memory otherwise.
func New(cfg config.RateLimitConfig, c cache.Cache, log logger.Logger) Limiter {
	if !cfg.Enabled {
		return Unlimited
	}

	limits := Limits{
		GlobalPerSecond: cfg.GlobalPerSecond,
		UserPerMinute:   cfg.UserPerMinute,
	}
	memory := NewMemoryLimiter(limits, c)
	if cfg.RedisURL == "" {
		log.Info("Using in-memory rate limiter")
		return memory
	}

	redisLimiter := NewRedisLimiter(cfg.RedisURL, limits, log)
	return NewFallbackLimiter(redisLimiter, memory, log)
}
