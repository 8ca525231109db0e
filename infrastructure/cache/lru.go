package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRUStore is a bounded in-process Store. Entries carry their own expiry;
// the least recently used entry is evicted when the cache is full.
type LRUStore struct {
	items *lru.Cache[string, cacheItem]
	now   func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

type cacheItem struct {
	value     []byte
	expiresAt time.Time
}

// NewLRUStore creates an in-memory store holding at most size entries
func NewLRUStore(size int) (*LRUStore, error) {
	if size <= 0 {
		size = 1000
	}
	items, err := lru.New[string, cacheItem](size)
	if err != nil {
		return nil, err
	}

	store := &LRUStore{
		items: items,
		now:   time.Now,
		stop:  make(chan struct{}),
	}

	go store.cleanupExpired()

	return store, nil
}

// Get retrieves a value from cache
func (c *LRUStore) Get(ctx context.Context, key string) ([]byte, error) {
	item, ok := c.items.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	if !c.now().Before(item.expiresAt) {
		c.items.Remove(key)
		return nil, ErrCacheMiss
	}
	return item.value, nil
}

// Set stores a copy of value with the given TTL
func (c *LRUStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	c.items.Add(key, cacheItem{
		value:     stored,
		expiresAt: c.now().Add(ttl),
	})
	return nil
}

// Delete removes a value from cache
func (c *LRUStore) Delete(ctx context.Context, key string) error {
	c.items.Remove(key)
	return nil
}

// Len reports the number of stored entries, expired ones included
func (c *LRUStore) Len() int {
	return c.items.Len()
}

// Close stops the cleanup goroutine
func (c *LRUStore) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

// cleanupExpired periodically removes expired items
func (c *LRUStore) cleanupExpired() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			now := c.now()
			for _, key := range c.items.Keys() {
				if item, ok := c.items.Peek(key); ok && !now.Before(item.expiresAt) {
					c.items.Remove(key)
				}
			}
		}
	}
}
