package cache

import (
	"context"
	"testing"
	"time"

	"signalwatcher/pkg/observability"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Should return stored bytes until they expire", func(t *testing.T) {
		store, err := NewLRUStore(10)
		require.NoError(t, err)
		defer store.Close()

		now := time.Unix(1_700_000_000, 0)
		store.now = func() time.Time { return now }

		require.NoError(t, store.Set(ctx, "k", []byte(`{"a":1}`), 30*time.Second))

		got, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, `{"a":1}`, string(got))

		now = now.Add(30 * time.Second)
		_, err = store.Get(ctx, "k")
		assert.ErrorIs(t, err, ErrCacheMiss)
		assert.Equal(t, 0, store.Len())
	})

	t.Run("Should not alias the caller's buffer", func(t *testing.T) {
		store, _ := NewLRUStore(10)
		defer store.Close()

		buf := []byte("abc")
		require.NoError(t, store.Set(ctx, "k", buf, time.Minute))
		buf[0] = 'x'

		got, _ := store.Get(ctx, "k")
		assert.Equal(t, "abc", string(got))
	})

	t.Run("Should evict the least recently used entry", func(t *testing.T) {
		store, _ := NewLRUStore(2)
		defer store.Close()

		store.Set(ctx, "a", []byte("1"), time.Minute)
		store.Set(ctx, "b", []byte("2"), time.Minute)
		_, _ = store.Get(ctx, "a")
		store.Set(ctx, "c", []byte("3"), time.Minute)

		_, err := store.Get(ctx, "b")
		assert.ErrorIs(t, err, ErrCacheMiss)
		_, err = store.Get(ctx, "a")
		assert.NoError(t, err)
	})

	t.Run("Should delete entries", func(t *testing.T) {
		store, _ := NewLRUStore(2)
		defer store.Close()

		store.Set(ctx, "a", []byte("1"), time.Minute)
		require.NoError(t, store.Delete(ctx, "a"))
		_, err := store.Get(ctx, "a")
		assert.ErrorIs(t, err, ErrCacheMiss)
	})
}

func TestRedisStoreErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	metrics := observability.NewRegistry(nil)
	store := NewRedisStore(client, nil, metrics)
	defer store.Close()

	ctx := context.Background()

	t.Run("Should surface get failures and count them", func(t *testing.T) {
		_, err := store.Get(ctx, "k")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCacheMiss)

		m, ok := metrics.Get(observability.RedisOperationErrorsTotal, observability.Labels{"operation": "get"})
		require.True(t, ok)
		assert.Equal(t, 1.0, m.Count)
	})

	t.Run("Should count ping failures", func(t *testing.T) {
		assert.Error(t, store.Ping(ctx))
		_, ok := metrics.Get(observability.RedisPingFailuresTotal, nil)
		assert.True(t, ok)
	})
}

func TestNewRedisClientRejectsBadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), RedisOptions{URL: "http://nope"}, nil)
	assert.Error(t, err)
}
