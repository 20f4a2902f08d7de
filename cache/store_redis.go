package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient captures the subset of redis.Client used by the store.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
}

var errRedisUnavailable = errors.New("redis cache client unavailable")

// flushBatch bounds both the SCAN page size and each DEL during Flush.
const flushBatch = 200

// redisStore namespaces every snapshot as "<prefix>:<id>". Expiry is native,
// so eviction under memory pressure follows the server's maxmemory-policy.
type redisStore struct {
	client RedisClient
	ttl    time.Duration
	prefix string
}

func newRedisStore(client RedisClient, defaultTTL time.Duration, prefix string) Store {
	if defaultTTL <= 0 {
		defaultTTL = defaultCacheTTL
	}
	if prefix == "" {
		prefix = defaultCachePrefix
	}
	return &redisStore{client: client, ttl: defaultTTL, prefix: prefix + ":"}
}

func (s *redisStore) Driver() Driver { return DriverRedis }

func (s *redisStore) key(k string) string { return s.prefix + k }

func (s *redisStore) expiry(ttl time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	return s.ttl
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.client == nil {
		return nil, false, errRedisUnavailable
	}
	body, err := s.client.Get(ctx, s.key(key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return body, true, nil
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.client == nil {
		return errRedisUnavailable
	}
	return s.client.Set(ctx, s.key(key), value, s.expiry(ttl)).Err()
}

// Touch maps to EXPIRE, which reports false for absent keys.
func (s *redisStore) Touch(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if s.client == nil {
		return false, errRedisUnavailable
	}
	return s.client.Expire(ctx, s.key(key), s.expiry(ttl)).Result()
}

func (s *redisStore) Delete(ctx context.Context, key string) (bool, error) {
	if s.client == nil {
		return false, errRedisUnavailable
	}
	n, err := s.client.Del(ctx, s.key(key)).Result()
	return n > 0, err
}

func (s *redisStore) DeleteMany(ctx context.Context, keys ...string) error {
	if s.client == nil {
		return errRedisUnavailable
	}
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	return s.client.Del(ctx, full...).Err()
}

// Flush removes only this store's namespace, never the whole database.
func (s *redisStore) Flush(ctx context.Context) error {
	if s.client == nil {
		return errRedisUnavailable
	}
	it := s.client.Scan(ctx, 0, s.prefix+"*", flushBatch).Iterator()
	batch := make([]string, 0, flushBatch)
	for it.Next(ctx) {
		batch = append(batch, it.Val())
		if len(batch) == flushBatch {
			if err := s.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := it.Err(); err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}
	return s.client.Del(ctx, batch...).Err()
}
