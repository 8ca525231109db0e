package ratelimit

import (
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// New builds the limiter named by strategy. The redis strategy needs a
// client; without one it falls back to the in-memory sliding window.
func New(strategy string, limit int, window time.Duration, client redis.UniversalClient) (RateLimiter, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("rate limit must be positive, got %d", limit)
	}
	if window <= 0 {
		return nil, fmt.Errorf("rate limit window must be positive, got %s", window)
	}

	switch strategy {
	case "", StrategySliding:
		return NewSlidingWindowLimiter(limit, window), nil
	case StrategyToken:
		return NewTokenBucketLimiter(limit, window), nil
	case StrategyRedis:
		if client == nil {
			return NewSlidingWindowLimiter(limit, window), nil
		}
		return NewRedisRateLimiter(client, limit, window, "ratelimit"), nil
	default:
		return nil, fmt.Errorf("unknown rate limit strategy %q", strategy)
	}
}
