package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter provides rate limiting functionality
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
	Limit() int
	Window() time.Duration
}

// Strategy names accepted by New
const (
	StrategySliding = "sliding"
	StrategyToken   = "token"
	StrategyRedis   = "redis"
)

// TokenBucketLimiter keeps one x/time/rate bucket per key. A bucket holds
// limit tokens and refills at limit/window.
type TokenBucketLimiter struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	limit      int
	window     time.Duration
	cleanupInt time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
	now        func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewTokenBucketLimiter creates a new token bucket rate limiter
func NewTokenBucketLimiter(limit int, window time.Duration) *TokenBucketLimiter {
	l := &TokenBucketLimiter{
		buckets:    make(map[string]*bucket),
		limit:      limit,
		window:     window,
		cleanupInt: 5 * time.Minute,
		stop:       make(chan struct{}),
		now:        time.Now,
	}

	go l.cleanup()

	return l
}

// Allow checks if a request is allowed
func (l *TokenBucketLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := l.now()

	l.mu.Lock()
	b, exists := l.buckets[key]
	if !exists {
		b = &bucket{limiter: rate.NewLimiter(l.refillRate(), l.limit)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	return b.limiter.AllowN(now, 1), nil
}

func (l *TokenBucketLimiter) refillRate() rate.Limit {
	if l.window <= 0 {
		return rate.Inf
	}
	return rate.Limit(float64(l.limit) / l.window.Seconds())
}

// Reset resets the rate limit for a key
func (l *TokenBucketLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.buckets, key)
	return nil
}

// Limit returns the bucket capacity
func (l *TokenBucketLimiter) Limit() int { return l.limit }

// Window returns the time it takes to refill an empty bucket
func (l *TokenBucketLimiter) Window() time.Duration { return l.window }

// Close stops the cleanup goroutine
func (l *TokenBucketLimiter) Close() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// cleanup removes idle buckets periodically. A bucket idle for a full window
// is back at capacity, so dropping it changes nothing.
func (l *TokenBucketLimiter) cleanup() {
	ticker := time.NewTicker(l.cleanupInt)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			idle := time.Duration(math.Max(float64(l.window), float64(time.Hour)))
			now := l.now()
			l.mu.Lock()
			for key, b := range l.buckets {
				if now.Sub(b.lastSeen) > idle {
					delete(l.buckets, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

// SlidingWindowLimiter implements sliding window rate limiting
type SlidingWindowLimiter struct {
	mu         sync.Mutex
	windows    map[string]*window
	limit      int
	windowSize time.Duration
	now        func() time.Time
}

type window struct {
	requests []time.Time
	mu       sync.Mutex
}

// NewSlidingWindowLimiter creates a new sliding window rate limiter
func NewSlidingWindowLimiter(limit int, windowSize time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		windows:    make(map[string]*window),
		limit:      limit,
		windowSize: windowSize,
		now:        time.Now,
	}
}

// Allow checks if a request is allowed
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	w, exists := l.windows[key]
	if !exists {
		w = &window{}
		l.windows[key] = w
	}
	l.mu.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()

	now := l.now()
	windowStart := now.Add(-l.windowSize)

	// requests are appended in order, so the expired ones form a prefix
	drop := 0
	for drop < len(w.requests) && !w.requests[drop].After(windowStart) {
		drop++
	}
	w.requests = w.requests[drop:]

	if len(w.requests) >= l.limit {
		return false, nil
	}

	w.requests = append(w.requests, now)
	return true, nil
}

// Reset resets the rate limit for a key
func (l *SlidingWindowLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.windows, key)
	return nil
}

// Limit returns the number of requests allowed per window
func (l *SlidingWindowLimiter) Limit() int { return l.limit }

// Window returns the window length
func (l *SlidingWindowLimiter) Window() time.Duration { return l.windowSize }
