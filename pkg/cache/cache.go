// Package cache stores JSON-encoded values under string keys, in process
// memory, in Redis, or in memory in front of Redis.
package cache

import (
	"context"
	"errors"
	"time"
)

var ErrCacheMiss = errors.New("cache: key not found")

// Service is implemented by every backend. Get decodes into any pointer
// whose type Set accepted. A non-positive ttl means the backend default.
type Service interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// Backend names accepted by config.
const (
	BackendNone    = "none"
	BackendMemory  = "memory"
	BackendRedis   = "redis"
	BackendLayered = "layered"
)

var (
	_ Service = (*MemoryCache)(nil)
	_ Service = (*RedisCache)(nil)
	_ Service = (*LayeredCache)(nil)
)
