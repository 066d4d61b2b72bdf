package store

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient creates and pings a Redis client with optional password auth.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return rdb, nil
}

// Cache stores JSON values in Redis. Redis errors behave like a miss and a
// nil *Cache is a valid, disabled cache.
//
// Each logical key has a generation counter at "<key>:gen". Writers bump it
// with Invalidate; readers take the generation before reading the backend
// and store under a key that embeds it, so a fill that raced a write lands
// under a generation nobody reads again.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

// Version returns the current generation of key. ok is false when the cache
// is disabled or unreachable.
func (c *Cache) Version(ctx context.Context, key string) (int64, bool) {
	if c == nil || c.rdb == nil {
		return 0, false
	}
	n, err := c.rdb.Get(ctx, key+":gen").Int64()
	if err == redis.Nil {
		return 0, true
	}
	if err != nil {
		log.Printf("cache version %s: %v", key, err)
		return 0, false
	}
	return n, true
}

// Invalidate bumps the generation of key.
func (c *Cache) Invalidate(ctx context.Context, key string) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Incr(ctx, key+":gen").Err(); err != nil {
		log.Printf("cache invalidate %s: %v", key, err)
	}
}

// GetJSON decodes the cached value into v and reports whether it was a hit.
func (c *Cache) GetJSON(ctx context.Context, key string, v any) bool {
	if c == nil || c.rdb == nil {
		return false
	}
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("cache get %s: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		log.Printf("cache decode %s: %v", key, err)
		return false
	}
	return true
}

func (c *Cache) SetJSON(ctx context.Context, key string, v any) {
	if c == nil || c.rdb == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Printf("cache set %s: %v", key, err)
	}
}
