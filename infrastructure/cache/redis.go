package cache

import (
	"context"
	"fmt"
	"time"

	"signalwatcher/pkg/observability"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisOptions configures the Redis connection
type RedisOptions struct {
	URL          string
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewRedisClient parses a redis:// URL and verifies the connection
func NewRedisClient(ctx context.Context, opts RedisOptions, logger *zap.Logger) (*redis.Client, error) {
	parsed, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if opts.PoolSize > 0 {
		parsed.PoolSize = opts.PoolSize
	}
	if opts.DialTimeout > 0 {
		parsed.DialTimeout = opts.DialTimeout
	}
	if opts.ReadTimeout > 0 {
		parsed.ReadTimeout = opts.ReadTimeout
	}
	if opts.WriteTimeout > 0 {
		parsed.WriteTimeout = opts.WriteTimeout
	}

	client := redis.NewClient(parsed)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if logger != nil {
		logger.Info("Redis connected",
			zap.String("addr", parsed.Addr),
			zap.Int("db", parsed.DB),
			zap.Int("pool_size", parsed.PoolSize),
		)
	}
	return client, nil
}

// RedisStore is the Redis-backed Store. Every operation is logged at debug
// level and recorded in the metrics registry.
type RedisStore struct {
	client  redis.UniversalClient
	logger  *zap.Logger
	metrics *observability.Registry
}

// NewRedisStore wraps an existing client
func NewRedisStore(client redis.UniversalClient, logger *zap.Logger, metrics *observability.Registry) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		client:  client,
		logger:  logger.With(zap.String("component", "redis")),
		metrics: metrics,
	}
}

// Client exposes the underlying client for components that share the connection
func (s *RedisStore) Client() redis.UniversalClient {
	return s.client
}

// Get returns the stored bytes or ErrCacheMiss
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	value, err := s.client.Get(ctx, key).Bytes()
	duration := time.Since(start)

	if err != nil && err != redis.Nil {
		s.failed("get", key, duration, err)
		return nil, err
	}

	hit := err == nil
	s.logger.Debug("Redis GET operation",
		zap.String("key", key),
		zap.String("duration", formatMs(duration)),
		zap.Bool("hit", hit),
	)
	s.record("get", duration)
	if s.metrics != nil {
		if hit {
			s.metrics.Increment(observability.RedisCacheHits, 1, nil)
		} else {
			s.metrics.Increment(observability.RedisCacheMisses, 1, nil)
		}
	}

	if !hit {
		return nil, ErrCacheMiss
	}
	return value, nil
}

// Set stores value with the given TTL (SETEX)
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := s.client.Set(ctx, key, value, ttl).Err()
	duration := time.Since(start)

	if err != nil {
		s.failed("setex", key, duration, err)
		return err
	}

	s.logger.Debug("Redis SETEX operation",
		zap.String("key", key),
		zap.Float64("seconds", ttl.Seconds()),
		zap.String("duration", formatMs(duration)),
	)
	s.record("setex", duration)
	return nil
}

// Delete removes key
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	start := time.Now()
	deleted, err := s.client.Del(ctx, key).Result()
	duration := time.Since(start)

	if err != nil {
		s.failed("del", key, duration, err)
		return err
	}

	s.logger.Debug("Redis DEL operation",
		zap.String("key", key),
		zap.String("duration", formatMs(duration)),
		zap.Int64("deleted", deleted),
	)
	s.record("del", duration)
	return nil
}

// Ping checks connectivity and records the round trip
func (s *RedisStore) Ping(ctx context.Context) error {
	start := time.Now()
	result, err := s.client.Ping(ctx).Result()
	duration := time.Since(start)

	if err != nil {
		s.logger.Error("Redis PING operation failed",
			zap.String("duration", formatMs(duration)),
			zap.Error(err),
		)
		if s.metrics != nil {
			s.metrics.Increment(observability.RedisPingFailuresTotal, 1, nil)
		}
		return err
	}

	s.logger.Debug("Redis PING operation",
		zap.String("duration", formatMs(duration)),
		zap.String("result", result),
	)
	if s.metrics != nil {
		s.metrics.Timing(observability.RedisPing, float64(duration.Milliseconds()), nil)
	}
	return nil
}

// Close releases the connection pool
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) record(operation string, duration time.Duration) {
	if s.metrics == nil {
		return
	}
	labels := observability.Labels{"operation": operation}
	s.metrics.Increment(observability.RedisOperationsTotal, 1, labels)
	s.metrics.Timing(observability.RedisOperationTiming, float64(duration.Milliseconds()), labels)
}

func (s *RedisStore) failed(operation, key string, duration time.Duration, err error) {
	s.logger.Error(fmt.Sprintf("Redis %s operation failed", operation),
		zap.String("key", key),
		zap.String("duration", formatMs(duration)),
		zap.Error(err),
	)
	if s.metrics != nil {
		s.metrics.Increment(observability.RedisOperationErrorsTotal, 1, observability.Labels{"operation": operation})
	}
}

func formatMs(d time.Duration) string {
	return fmt.Sprintf("%dms", d.Milliseconds())
}
