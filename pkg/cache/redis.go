package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Prefix is prepended verbatim to every key.
	Prefix   string
	PoolSize int
}

// RedisCache is a Service over go-redis. It is safe to share between
// replicas, which is what makes the layered backend worthwhile.
type RedisCache struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisCache connects and pings within five seconds.
func NewRedisCache(o RedisOptions) (*RedisCache, error) {
	if o.Addr == "" {
		o.Addr = "localhost:6379"
	}
	if o.PoolSize <= 0 {
		o.PoolSize = 10
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         o.Addr,
		Password:     o.Password,
		DB:           o.DB,
		PoolSize:     o.PoolSize,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", o.Addr, err)
	}
	return &RedisCache{rdb: rdb, prefix: o.Prefix}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("redis get %q: %w", key, err)
	}
	return json.Unmarshal(data, dest)
}

func (r *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %q: %w", key, err)
	}
	if ttl < 0 {
		ttl = 0
	}
	return r.rdb.Set(ctx, r.prefix+key, data, ttl).Err()
}

func (r *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.prefix + k
	}
	return r.rdb.Unlink(ctx, full...).Err()
}

func (r *RedisCache) Close() error { return r.rdb.Close() }
