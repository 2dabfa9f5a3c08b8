// Package ratelimit implements a Redis sliding-window limiter keyed by caller.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aimerfeng/LineHook/internal/config"
	"github.com/aimerfeng/LineHook/internal/logging"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keyPrefix = "ratelimit:sliding:"

// Result contains the result of a rate limit check
type Result struct {
	Allowed    bool
	Remaining  int64
	Limit      int
	RetryAfter time.Duration
}

// Limiter implements sliding window rate limiting using Redis sorted sets.
// Score is the request time in nanoseconds, member a unique request id.
type Limiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

// New creates a limiter allowing cfg.AuthPerWindow requests per window.
// It returns nil when the limit is 0.
func New(client *redis.Client, cfg *config.RateLimitConfig) *Limiter {
	if cfg.AuthPerWindow <= 0 {
		return nil
	}
	windowSeconds := cfg.WindowSeconds
	if windowSeconds <= 0 {
		windowSeconds = 60
	}
	return &Limiter{
		client: client,
		limit:  cfg.AuthPerWindow,
		window: time.Duration(windowSeconds) * time.Second,
		now:    time.Now,
		logger: logging.NewLogger("ratelimit"),
	}
}

// Allow records one request for key and reports whether it fits the window.
// The request is added and counted in one MULTI/EXEC so concurrent callers
// cannot all pass on the same count; a rejected request is removed again.
// Redis failures fail open.
func (l *Limiter) Allow(ctx context.Context, key string) *Result {
	now := l.now()
	windowStart := now.Add(-l.window)
	redisKey := keyPrefix + key
	member := uuid.NewString()

	var countCmd *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
		pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: member})
		countCmd = pipe.ZCard(ctx, redisKey)
		pipe.Expire(ctx, redisKey, l.window*2)
		return nil
	})
	if err != nil {
		l.logger.Error().Err(err).Str("key", key).Msg("Failed to check rate limit")
		return &Result{Allowed: true, Remaining: int64(l.limit), Limit: l.limit}
	}

	count := countCmd.Val()
	if count > int64(l.limit) {
		if err := l.client.ZRem(ctx, redisKey, member).Err(); err != nil {
			l.logger.Warn().Err(err).Str("key", key).Msg("Failed to drop rejected rate limit entry")
		}
		return &Result{
			Allowed:    false,
			Limit:      l.limit,
			RetryAfter: l.retryAfter(ctx, redisKey, now),
		}
	}

	return &Result{Allowed: true, Remaining: int64(l.limit) - count, Limit: l.limit}
}

// retryAfter is the time until the oldest entry leaves the window
func (l *Limiter) retryAfter(ctx context.Context, redisKey string, now time.Time) time.Duration {
	oldest, err := l.client.ZRangeWithScores(ctx, redisKey, 0, 0).Result()
	if err != nil || len(oldest) == 0 {
		return l.window
	}
	wait := time.Unix(0, int64(oldest[0].Score)).Add(l.window).Sub(now)
	if wait < time.Second {
		wait = time.Second
	}
	return wait
}

// Reset clears the window for key
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to reset rate limit: %w", err)
	}
	return nil
}
