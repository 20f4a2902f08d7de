package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Cache provides an ergonomic cache API on top of Store.
type Cache struct {
	store      Store
	defaultTTL time.Duration
	observer   Observer
}

// NewCache creates a cache facade bound to a concrete store.
// @group Cache
//
// Example: cache from store
//
//	ctx := context.Background()
//	s := cache.NewMemoryStore(ctx)
//	c := cache.NewCache(s)
//	fmt.Println(c.Driver()) // memory
func NewCache(store Store) *Cache {
	return NewCacheWithTTL(store, defaultCacheTTL)
}

// NewCacheWithTTL lets callers override the default TTL applied when ttl <= 0.
// @group Cache
//
// Example: cache with custom default TTL
//
//	ctx := context.Background()
//	s := cache.NewMemoryStore(ctx)
//	c := cache.NewCacheWithTTL(s, 2*time.Minute)
//	fmt.Println(c.Driver(), c != nil) // memory true
func NewCacheWithTTL(store Store, defaultTTL time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = defaultCacheTTL
	}
	return &Cache{
		store:      store,
		defaultTTL: defaultTTL,
	}
}

// WithObserver attaches an observer to receive operation events.
func (c *Cache) WithObserver(o Observer) *Cache {
	c.observer = o
	return c
}

// Store returns the underlying store implementation.
// @group Cache
func (c *Cache) Store() Store {
	return c.store
}

// Driver reports the underlying store driver.
// @group Cache
func (c *Cache) Driver() Driver {
	return c.store.Driver()
}

// DefaultTTL reports the TTL applied when callers pass ttl <= 0.
func (c *Cache) DefaultTTL() time.Duration {
	return c.defaultTTL
}

// Get returns raw bytes for key when present.
// @group Cache
//
// Example: get bytes
//
//	ctx := context.Background()
//	c := cache.NewCache(cache.NewMemoryStore(ctx))
//	_ = c.Set(ctx, "user:42", []byte("Ada"), 0)
//	value, ok, _ := c.Get(ctx, "user:42")
//	fmt.Println(ok, string(value)) // true Ada
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	body, ok, err := c.store.Get(ctx, key)
	c.observe(ctx, OpGet, key, ok, err, start)
	return body, ok, err
}

// Set writes raw bytes to key.
// @group Cache
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := c.store.Set(ctx, key, value, c.resolveTTL(ttl))
	c.observe(ctx, OpSet, key, false, err, start)
	return err
}

// Touch resets the expiry of key and reports whether it was present.
// @group Cache
//
// Example: refresh ttl
//
//	ctx := context.Background()
//	c := cache.NewCache(cache.NewMemoryStore(ctx))
//	_ = c.Set(ctx, "session", []byte("x"), time.Minute)
//	ok, _ := c.Touch(ctx, "session", time.Hour)
//	fmt.Println(ok) // true
func (c *Cache) Touch(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	start := time.Now()
	ok, err := c.store.Touch(ctx, key, c.resolveTTL(ttl))
	c.observe(ctx, OpTouch, key, ok, err, start)
	return ok, err
}

// Delete removes key and reports whether an entry was removed.
// @group Cache
func (c *Cache) Delete(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	ok, err := c.store.Delete(ctx, key)
	c.observe(ctx, OpDelete, key, ok, err, start)
	return ok, err
}

// DeleteMany removes several keys in one call.
// @group Cache
func (c *Cache) DeleteMany(ctx context.Context, keys ...string) error {
	start := time.Now()
	err := c.store.DeleteMany(ctx, keys...)
	c.observe(ctx, OpDeleteMany, "", false, err, start)
	return err
}

// Flush clears every key in the store scope.
// @group Cache
func (c *Cache) Flush(ctx context.Context) error {
	start := time.Now()
	err := c.store.Flush(ctx)
	c.observe(ctx, OpFlush, "", false, err, start)
	return err
}

// GetJSON decodes a JSON value into T when key exists.
// @group Cache JSON
//
// Example: typed read
//
//	type Profile struct { Name string `json:"name"` }
//	ctx := context.Background()
//	c := cache.NewCache(cache.NewMemoryStore(ctx))
//	_ = cache.SetJSON(ctx, c, "profile:42", Profile{Name: "Ada"}, 0)
//	p, ok, _ := cache.GetJSON[Profile](ctx, c, "profile:42")
//	fmt.Println(ok, p.Name) // true Ada
func GetJSON[T any](ctx context.Context, cache *Cache, key string) (T, bool, error) {
	var zero T
	start := time.Now()
	body, ok, err := cache.store.Get(ctx, key)
	if err != nil || !ok {
		cache.observe(ctx, OpGetJSON, key, ok, err, start)
		return zero, ok, err
	}
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		cache.observe(ctx, OpGetJSON, key, false, err, start)
		return zero, false, err
	}
	cache.observe(ctx, OpGetJSON, key, true, nil, start)
	return out, true, nil
}

// SetJSON encodes value as JSON and writes it to key.
// @group Cache JSON
func SetJSON[T any](ctx context.Context, cache *Cache, key string, value T, ttl time.Duration) error {
	start := time.Now()
	body, err := json.Marshal(value)
	if err != nil {
		cache.observe(ctx, OpSetJSON, key, false, err, start)
		return err
	}
	err = cache.store.Set(ctx, key, body, cache.resolveTTL(ttl))
	cache.observe(ctx, OpSetJSON, key, false, err, start)
	return err
}

func (c *Cache) resolveTTL(ttl time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	return c.defaultTTL
}

func (c *Cache) observe(ctx context.Context, op, key string, hit bool, err error, start time.Time) {
	if c.observer == nil {
		return
	}
	c.observer.OnCacheOp(ctx, op, key, hit, err, time.Since(start), c.Driver())
}
