package search

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultCacheTTL is how long geocoding results are cached.
const DefaultCacheTTL = time.Hour

// ResultCache stores geocoding results by request key. Implementations must
// be safe for concurrent use. Errors are not reported: a failing cache
// behaves like an empty one.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]Result, bool)
	Set(ctx context.Context, key string, results []Result, ttl time.Duration)
}

// OpenRedis opens a Redis client. It returns nil when addr is empty.
func OpenRedis(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

// RedisCache keeps results as JSON strings in Redis.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCache wraps rdb. Keys are prefixed with "zonat:search:".
func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb, prefix: "zonat:search:"}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]Result, bool) {
	s, err := c.rdb.Get(ctx, c.prefix+key).Result()
	if err != nil || s == "" {
		return nil, false
	}
	var results []Result
	if err := json.Unmarshal([]byte(s), &results); err != nil {
		return nil, false
	}
	return results, true
}

func (c *RedisCache) Set(ctx context.Context, key string, results []Result, ttl time.Duration) {
	b, err := json.Marshal(results)
	if err != nil {
		return
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	_ = c.rdb.Set(ctx, c.prefix+key, string(b), ttl).Err()
}
