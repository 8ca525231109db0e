package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisRateLimiter counts requests per fixed window in Redis so the limit
// holds across every API instance sharing the same Redis.
type RedisRateLimiter struct {
	client    redis.UniversalClient
	limit     int
	window    time.Duration
	keyPrefix string
	now       func() time.Time
}

// NewRedisRateLimiter creates a distributed fixed-window rate limiter
func NewRedisRateLimiter(client redis.UniversalClient, limit int, window time.Duration, keyPrefix string) *RedisRateLimiter {
	if keyPrefix == "" {
		keyPrefix = "ratelimit"
	}
	return &RedisRateLimiter{
		client:    client,
		limit:     limit,
		window:    window,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}
}

func (r *RedisRateLimiter) windowKey(key string) (string, time.Time) {
	windowStart := r.now().Truncate(r.window)
	return fmt.Sprintf("%s:%s:%s", r.keyPrefix, key, strconv.FormatInt(windowStart.Unix(), 10)), windowStart.Add(r.window)
}

// Allow checks if a request is allowed under the rate limit. On Redis errors
// the request is allowed and the error is returned for logging.
func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if r.client == nil {
		return true, nil
	}

	k, windowEnd := r.windowKey(key)

	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireAt(ctx, k, windowEnd.Add(time.Second))
		return nil
	})
	if err != nil {
		return true, fmt.Errorf("rate limiter error (failing open): %w", err)
	}

	return incr.Val() <= int64(r.limit), nil
}

// GetRemaining returns the number of requests remaining in the current window
func (r *RedisRateLimiter) GetRemaining(ctx context.Context, key string) (int, time.Duration, error) {
	k, windowEnd := r.windowKey(key)
	resetIn := windowEnd.Sub(r.now())

	if r.client == nil {
		return r.limit, resetIn, nil
	}

	count, err := r.client.Get(ctx, k).Int()
	if err == redis.Nil {
		return r.limit, resetIn, nil
	}
	if err != nil {
		return r.limit, resetIn, err
	}

	remaining := r.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, resetIn, nil
}

// Reset clears the counter of the current window for key
func (r *RedisRateLimiter) Reset(ctx context.Context, key string) error {
	if r.client == nil {
		return nil
	}
	k, _ := r.windowKey(key)
	return r.client.Del(ctx, k).Err()
}

// Limit returns the configured rate limit
func (r *RedisRateLimiter) Limit() int { return r.limit }

// Window returns the configured time window
func (r *RedisRateLimiter) Window() time.Duration { return r.window }
