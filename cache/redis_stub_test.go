package cache

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// stubRedisClient is an in-memory RedisClient used for unit tests.
type stubRedisClient struct {
	store  map[string]string
	ttl    map[string]time.Time
	config map[string]string

	getErr    error
	setErr    error
	expireErr error
	delErr    error
	scanErr   error
	pingErr   error
	configErr error
}

func newStubRedisClient() *stubRedisClient {
	return &stubRedisClient{
		store:  make(map[string]string),
		ttl:    make(map[string]time.Time),
		config: make(map[string]string),
	}
}

func (c *stubRedisClient) expireIfNeeded(key string) {
	if deadline, ok := c.ttl[key]; ok && time.Now().After(deadline) {
		delete(c.ttl, key)
		delete(c.store, key)
	}
}

func (c *stubRedisClient) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	if c.getErr != nil {
		cmd.SetErr(c.getErr)
		return cmd
	}
	c.expireIfNeeded(key)
	if val, ok := c.store[key]; ok {
		cmd.SetVal(val)
		return cmd
	}
	cmd.SetErr(redis.Nil)
	return cmd
}

func (c *stubRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if c.setErr != nil {
		cmd.SetErr(c.setErr)
		return cmd
	}
	bytes, _ := value.([]byte)
	c.store[key] = string(bytes)
	if expiration > 0 {
		c.ttl[key] = time.Now().Add(expiration)
	} else {
		delete(c.ttl, key)
	}
	cmd.SetVal("OK")
	return cmd
}

func (c *stubRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx)
	if c.expireErr != nil {
		cmd.SetErr(c.expireErr)
		return cmd
	}
	c.expireIfNeeded(key)
	if _, ok := c.store[key]; !ok {
		cmd.SetVal(false)
		return cmd
	}
	c.ttl[key] = time.Now().Add(expiration)
	cmd.SetVal(true)
	return cmd
}

func (c *stubRedisClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if c.delErr != nil {
		cmd.SetErr(c.delErr)
		return cmd
	}
	var removed int64
	for _, key := range keys {
		c.expireIfNeeded(key)
		if _, ok := c.store[key]; ok {
			delete(c.store, key)
			delete(c.ttl, key)
			removed++
		}
	}
	cmd.SetVal(removed)
	return cmd
}

func (c *stubRedisClient) Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd {
	cmd := redis.NewScanCmd(ctx, nil)
	if c.scanErr != nil {
		cmd.SetErr(c.scanErr)
		return cmd
	}
	prefix := strings.TrimSuffix(match, "*")
	var keys []string
	for key := range c.store {
		c.expireIfNeeded(key)
		if _, ok := c.store[key]; ok && strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	cmd.SetVal(keys, 0)
	return cmd
}

func (c *stubRedisClient) Ping(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if c.pingErr != nil {
		cmd.SetErr(c.pingErr)
		return cmd
	}
	cmd.SetVal("PONG")
	return cmd
}

func (c *stubRedisClient) ConfigSet(ctx context.Context, parameter, value string) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if c.configErr != nil {
		cmd.SetErr(c.configErr)
		return cmd
	}
	c.config[parameter] = value
	cmd.SetVal("OK")
	return cmd
}
