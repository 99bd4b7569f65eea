package cache

import (
	"context"
	"encoding/json"
	"time"
)

// LayeredCache keeps a small memory LRU in front of a shared L2. Writes go
// to L2 first; reads that miss L1 promote the L2 value for at most l1TTL.
type LayeredCache struct {
	l1    *MemoryCache
	l2    Service
	l1TTL time.Duration
}

// NewLayeredCache wraps l2 with an l1Size entry memory layer. l1TTL
// defaults to one minute.
func NewLayeredCache(l2 Service, l1Size int, l1TTL time.Duration) *LayeredCache {
	if l1TTL <= 0 {
		l1TTL = time.Minute
	}
	return &LayeredCache{l1: NewMemoryCache(l1Size, l1TTL), l2: l2, l1TTL: l1TTL}
}

func (c *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if data, ok := c.l1.lookup(key); ok {
		return json.Unmarshal(data, dest)
	}
	if err := c.l2.Get(ctx, key, dest); err != nil {
		return err
	}
	_ = c.l1.Set(ctx, key, dest, c.l1TTL)
	return nil
}

func (c *LayeredCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := c.l2.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	if ttl <= 0 || ttl > c.l1TTL {
		ttl = c.l1TTL
	}
	return c.l1.Set(ctx, key, value, ttl)
}

func (c *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = c.l1.Delete(ctx, keys...)
	return c.l2.Delete(ctx, keys...)
}

func (c *LayeredCache) Close() error {
	return c.l2.Close()
}
