package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/neuroasura/neuroasura/internal/cache"
	"github.com/neuroasura/neuroasura/internal/config"
	"github.com/neuroasura/neuroasura/internal/logger"
)

type mockLimiter struct {
	mock.Mock
}

func (m *mockLimiter) Allow(ctx context.Context, userID int64) error {
	return m.Called(ctx, userID).Error(0)
}

func TestMemoryLimiter_User(t *testing.T) {
	l := NewMemoryLimiter(Limits{GlobalPerSecond: 100, UserPerMinute: 3}, nil)
	ctx := context.Background()

	for range 3 {
		require.NoError(t, l.Allow(ctx, 1))
	}
	err := l.Allow(ctx, 1)
	assert.ErrorIs(t, err, ErrRateLimitExceeded)

	assert.NoError(t, l.Allow(ctx, 2))
}

func TestMemoryLimiter_Global(t *testing.T) {
	l := NewMemoryLimiter(Limits{GlobalPerSecond: 2, UserPerMinute: 60}, cache.NewMemoryCache(time.Minute, time.Minute))
	ctx := context.Background()

	require.NoError(t, l.Allow(ctx, 1))
	require.NoError(t, l.Allow(ctx, 2))
	assert.ErrorIs(t, l.Allow(ctx, 3), ErrRateLimitExceeded)
}

func TestMemoryLimiter_CancelledContext(t *testing.T) {
	l := NewMemoryLimiter(Limits{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, l.Allow(ctx, 1), context.Canceled)
}

func TestFallbackLimiter(t *testing.T) {
	ctx := context.Background()

	t.Run("primary decides", func(t *testing.T) {
		primary := &mockLimiter{}
		fallback := &mockLimiter{}
		primary.On("Allow", mock.Anything, int64(1)).Return(ErrRateLimitExceeded)

		l := NewFallbackLimiter(primary, fallback, logger.NewTestLogger())
		assert.ErrorIs(t, l.Allow(ctx, 1), ErrRateLimitExceeded)
		fallback.AssertNotCalled(t, "Allow", mock.Anything, mock.Anything)
	})

	t.Run("backend error uses fallback", func(t *testing.T) {
		primary := &mockLimiter{}
		fallback := &mockLimiter{}
		primary.On("Allow", mock.Anything, int64(1)).Return(errors.New("connection refused"))
		fallback.On("Allow", mock.Anything, int64(1)).Return(nil)

		log := logger.NewTestLogger()
		l := NewFallbackLimiter(primary, fallback, log)
		assert.NoError(t, l.Allow(ctx, 1))
		assert.True(t, log.HasEntry("warn", "Rate limiter backend unavailable, using in-memory limiter"))
	})
}

func TestRedisLimiter_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	l := NewRedisLimiterWithClient(client, Limits{}, logger.NewTestLogger())
	defer l.Close()

	err := l.Allow(context.Background(), 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRateLimitExceeded)

	memory := NewMemoryLimiter(Limits{UserPerMinute: 1}, nil)
	fallback := NewFallbackLimiter(l, memory, logger.NewTestLogger())
	assert.NoError(t, fallback.Allow(context.Background(), 1))
	assert.ErrorIs(t, fallback.Allow(context.Background(), 1), ErrRateLimitExceeded)
}

func TestNew(t *testing.T) {
	log := logger.NewTestLogger()

	assert.Equal(t, Unlimited, New(config.RateLimitConfig{}, nil, log))
	assert.IsType(t, &MemoryLimiter{}, New(config.RateLimitConfig{Enabled: true}, nil, log))
	assert.IsType(t, &FallbackLimiter{}, New(config.RateLimitConfig{Enabled: true, RedisURL: "redis://localhost:6379/0"}, nil, log))
}

func redisURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("NEUROASURA_TEST_REDIS_URL")
	if url == "" {
		t.Skip("NEUROASURA_TEST_REDIS_URL is not set")
	}
	return url
}

func TestRedisLimiter_SharedAcrossInstances(t *testing.T) {
	url := redisURL(t)
	log := logger.NewTestLogger()
	limits := Limits{GlobalPerSecond: 1000, UserPerMinute: 5}

	first := NewRedisLimiter(url, limits, log)
	second := NewRedisLimiter(url, limits, log)
	defer first.Close()
	defer second.Close()
	require.NoError(t, first.Ping(context.Background()))

	userID := time.Now().UnixNano()
	t.Cleanup(func() {
		first.client.Del(context.Background(), fmt.Sprintf("user_%d", userID), globalKey)
	})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := range 20 {
		limiter := first
		if i%2 == 1 {
			limiter = second
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := limiter.Allow(context.Background(), userID)
			if err == nil {
				mu.Lock()
				allowed++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrRateLimitExceeded)
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, allowed)
}
