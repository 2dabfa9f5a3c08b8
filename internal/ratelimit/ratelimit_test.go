package ratelimit

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aimerfeng/LineHook/internal/cache"
	"github.com/aimerfeng/LineHook/internal/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNew_DisabledWhenZero(t *testing.T) {
	assert.Nil(t, New(nil, &config.RateLimitConfig{AuthPerWindow: 0, WindowSeconds: 60}))
}

func TestNew_DefaultWindow(t *testing.T) {
	l := New(nil, &config.RateLimitConfig{AuthPerWindow: 5})
	require.NotNil(t, l)
	assert.Equal(t, time.Minute, l.window)
	assert.Equal(t, 5, l.limit)
}

func TestAllow_FailsOpenWhenRedisUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	l := New(client, &config.RateLimitConfig{AuthPerWindow: 1, WindowSeconds: 60})
	for i := 0; i < 3; i++ {
		res := l.Allow(context.Background(), "10.0.0.1")
		assert.True(t, res.Allowed)
	}
}

func liveRedis(t *testing.T) *cache.Redis {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	r, err := cache.NewFromURL(url)
	if err != nil {
		t.Skipf("Test Redis not available: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	if err := r.Health(context.Background()); err != nil {
		t.Skipf("Test Redis not available: %v", err)
	}
	return r
}

// Property: exactly limit requests are allowed inside one window, the rest
// are rejected with a positive Retry-After
func TestProperty_LimitEnforced(t *testing.T) {
	r := liveRedis(t)
	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		limit := rapid.IntRange(1, 8).Draw(rt, "limit")
		extra := rapid.IntRange(1, 4).Draw(rt, "extra")
		l := New(r.Client, &config.RateLimitConfig{AuthPerWindow: limit, WindowSeconds: 60})
		key := "test:" + uuid.NewString()
		defer l.Reset(ctx, key)

		for i := 0; i < limit; i++ {
			res := l.Allow(ctx, key)
			if !res.Allowed {
				rt.Fatalf("request %d should be allowed (limit %d)", i, limit)
			}
			if res.Remaining != int64(limit-i-1) {
				rt.Fatalf("request %d: remaining %d, want %d", i, res.Remaining, limit-i-1)
			}
		}
		for i := 0; i < extra; i++ {
			res := l.Allow(ctx, key)
			if res.Allowed {
				rt.Fatalf("request over the limit was allowed")
			}
			if res.RetryAfter < time.Second {
				rt.Fatalf("retry after %v, want at least 1s", res.RetryAfter)
			}
		}
	})
}

func TestAllow_WindowSlides(t *testing.T) {
	r := liveRedis(t)
	ctx := context.Background()

	l := New(r.Client, &config.RateLimitConfig{AuthPerWindow: 2, WindowSeconds: 60})
	clock := time.Now()
	l.now = func() time.Time { return clock }
	key := "test:" + uuid.NewString()
	defer l.Reset(ctx, key)

	assert.True(t, l.Allow(ctx, key).Allowed)
	assert.True(t, l.Allow(ctx, key).Allowed)
	assert.False(t, l.Allow(ctx, key).Allowed)

	clock = clock.Add(61 * time.Second)
	assert.True(t, l.Allow(ctx, key).Allowed)
}

func TestAllow_ConcurrentCallersCannotExceedLimit(t *testing.T) {
	r := liveRedis(t)
	ctx := context.Background()

	l := New(r.Client, &config.RateLimitConfig{AuthPerWindow: 5, WindowSeconds: 60})
	key := "test:" + uuid.NewString()
	defer l.Reset(ctx, key)

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow(ctx, key).Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, allowed.Load(), int64(5))
	count, err := r.Client.ZCard(ctx, keyPrefix+key).Result()
	require.NoError(t, err)
	assert.Equal(t, allowed.Load(), count, "rejected requests must not occupy the window")
}

func TestReset_ClearsWindow(t *testing.T) {
	r := liveRedis(t)
	ctx := context.Background()

	l := New(r.Client, &config.RateLimitConfig{AuthPerWindow: 1, WindowSeconds: 60})
	key := "test:" + uuid.NewString()
	defer l.Reset(ctx, key)

	assert.True(t, l.Allow(ctx, key).Allowed)
	assert.False(t, l.Allow(ctx, key).Allowed)
	require.NoError(t, l.Reset(ctx, key))
	assert.True(t, l.Allow(ctx, key).Allowed)
}
