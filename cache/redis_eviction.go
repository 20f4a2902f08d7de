package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// EvictionPolicy names a redis maxmemory-policy.
type EvictionPolicy string

const (
	EvictionAllKeysLRU  EvictionPolicy = "allkeys-lru"
	EvictionVolatileLRU EvictionPolicy = "volatile-lru"
)

// DefaultMaxMemory is the memory ceiling applied when none is configured.
const DefaultMaxMemory = "150mb"

// RedisConfigurer captures the redis commands needed to bound server memory.
type RedisConfigurer interface {
	Ping(ctx context.Context) *redis.StatusCmd
	ConfigSet(ctx context.Context, parameter, value string) *redis.StatusCmd
}

// ConfigureRedisEviction pings the server and installs a memory ceiling plus an
// LRU-family eviction policy. Eviction itself stays entirely on the server.
//
// Example: bound a shared redis
//
//	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
//	err := cache.ConfigureRedisEviction(ctx, rdb, "150mb", cache.EvictionVolatileLRU)
func ConfigureRedisEviction(ctx context.Context, client RedisConfigurer, maxMemory string, policy EvictionPolicy) error {
	if client == nil {
		return errRedisUnavailable
	}
	if maxMemory == "" {
		maxMemory = DefaultMaxMemory
	}
	if policy == "" {
		policy = EvictionVolatileLRU
	}
	switch policy {
	case EvictionAllKeysLRU, EvictionVolatileLRU:
	default:
		return fmt.Errorf("cache: unsupported eviction policy %q", policy)
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	if err := client.ConfigSet(ctx, "maxmemory", maxMemory).Err(); err != nil {
		return fmt.Errorf("set redis maxmemory: %w", err)
	}
	if err := client.ConfigSet(ctx, "maxmemory-policy", string(policy)).Err(); err != nil {
		return fmt.Errorf("set redis maxmemory-policy: %w", err)
	}
	return nil
}
