package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// scopeIndexKey names the redis SET holding every cache key registered in a
// scope. The index itself expires a little after the data keys so orphaned
// members cannot accumulate.
func scopeIndexKey(scope Scope) string {
	return "kinerja:scope:" + scope.String()
}

// RedisCache is the production cache. Data keys carry the TTL; the scope
// index tracks live keys for direct-lookup invalidation.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get %s: %w", key, err)
	}
	return value, true, nil
}

func (c *RedisCache) Set(ctx context.Context, scope Scope, key string, value []byte) error {
	index := scopeIndexKey(scope)
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, key, value, c.ttl)
	pipe.SAdd(ctx, index, key)
	// Keep the index alive slightly longer than its members.
	pipe.Expire(ctx, index, c.ttl+time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, scope Scope) error {
	index := scopeIndexKey(scope)
	keys, err := c.client.SMembers(ctx, index).Result()
	if err != nil {
		return fmt.Errorf("cache scope lookup %s: %w", index, err)
	}
	if len(keys) == 0 {
		return nil
	}
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, keys...)
	pipe.Del(ctx, index)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache invalidate %s: %w", index, err)
	}
	return nil
}
