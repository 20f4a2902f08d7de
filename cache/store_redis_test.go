package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRedisStoreNilClientErrors(t *testing.T) {
	store := newRedisStore(nil, 0, "")
	ctx := context.Background()
	if _, _, err := store.Get(ctx, "k"); err == nil {
		t.Fatalf("expected get error when redis client is nil")
	}
	if err := store.Set(ctx, "k", []byte("v"), 0); err == nil {
		t.Fatalf("expected set error when redis client is nil")
	}
	if _, err := store.Touch(ctx, "k", 0); err == nil {
		t.Fatalf("expected touch error when redis client is nil")
	}
	if _, err := store.Delete(ctx, "k"); err == nil {
		t.Fatalf("expected delete error when redis client is nil")
	}
	if err := store.DeleteMany(ctx, "a", "b"); err == nil {
		t.Fatalf("expected delete many error when redis client is nil")
	}
	if err := store.Flush(ctx); err == nil {
		t.Fatalf("expected flush error when redis client is nil")
	}
}

func TestRedisStoreOperationsWithStubClient(t *testing.T) {
	ctx := context.Background()
	client := newStubRedisClient()
	store := newRedisStore(client, 0, "pfx")

	if err := store.Set(ctx, "alpha", []byte("one"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if _, ok := client.store["pfx:alpha"]; !ok {
		t.Fatalf("expected prefixed key in redis")
	}
	if ttl, ok := client.ttl["pfx:alpha"]; !ok || ttl.Before(time.Now().Add(defaultCacheTTL-time.Minute)) {
		t.Fatalf("expected default ttl to be applied, got %v", ttl)
	}
	body, ok, err := store.Get(ctx, "alpha")
	if err != nil || !ok || string(body) != "one" {
		t.Fatalf("unexpected get result: ok=%v err=%v body=%s", ok, err, string(body))
	}

	if err := store.Set(ctx, "short", []byte("v"), time.Second); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	touched, err := store.Touch(ctx, "short", time.Hour)
	if err != nil || !touched {
		t.Fatalf("expected touch hit: touched=%v err=%v", touched, err)
	}
	if ttl := client.ttl["pfx:short"]; ttl.Before(time.Now().Add(59 * time.Minute)) {
		t.Fatalf("expected touch to extend ttl, got %v", ttl)
	}
	touched, err = store.Touch(ctx, "missing", time.Hour)
	if err != nil || touched {
		t.Fatalf("expected touch miss: touched=%v err=%v", touched, err)
	}

	removed, err := store.Delete(ctx, "alpha")
	if err != nil || !removed {
		t.Fatalf("expected delete hit: removed=%v err=%v", removed, err)
	}
	removed, err = store.Delete(ctx, "alpha")
	if err != nil || removed {
		t.Fatalf("expected delete miss: removed=%v err=%v", removed, err)
	}
	if err := store.DeleteMany(ctx); err != nil { // no-op path
		t.Fatalf("delete many empty failed: %v", err)
	}

	if err := store.Set(ctx, "flushme", []byte("x"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	client.store["other:key"] = "keep"
	if err := store.Flush(ctx); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if _, ok, err := store.Get(ctx, "flushme"); err != nil || ok {
		t.Fatalf("expected flushed key to be gone")
	}
	if _, ok := client.store["other:key"]; !ok {
		t.Fatalf("expected flush to leave foreign prefixes alone")
	}
}

func TestRedisStoreErrorPropagation(t *testing.T) {
	ctx := context.Background()
	client := newStubRedisClient()
	client.getErr = errors.New("get")
	store := newRedisStore(client, 0, "pfx")
	if _, _, err := store.Get(ctx, "k"); err == nil {
		t.Fatalf("expected get error")
	}

	client = newStubRedisClient()
	client.expireErr = errors.New("expire")
	store = newRedisStore(client, 0, "pfx")
	if _, err := store.Touch(ctx, "k", time.Second); err == nil {
		t.Fatalf("expected touch error")
	}

	client = newStubRedisClient()
	client.delErr = errors.New("del")
	store = newRedisStore(client, 0, "pfx")
	if _, err := store.Delete(ctx, "k"); err == nil {
		t.Fatalf("expected delete error")
	}

	client = newStubRedisClient()
	client.scanErr = errors.New("scan")
	store = newRedisStore(client, 0, "pfx")
	if err := store.Flush(ctx); err == nil {
		t.Fatalf("expected flush scan error")
	}
}

func TestConfigureRedisEviction(t *testing.T) {
	ctx := context.Background()
	client := newStubRedisClient()
	if err := ConfigureRedisEviction(ctx, client, "", ""); err != nil {
		t.Fatalf("configure failed: %v", err)
	}
	if client.config["maxmemory"] != DefaultMaxMemory {
		t.Fatalf("expected default maxmemory, got %q", client.config["maxmemory"])
	}
	if client.config["maxmemory-policy"] != string(EvictionVolatileLRU) {
		t.Fatalf("expected volatile-lru, got %q", client.config["maxmemory-policy"])
	}

	if err := ConfigureRedisEviction(ctx, client, "64mb", EvictionAllKeysLRU); err != nil {
		t.Fatalf("configure failed: %v", err)
	}
	if client.config["maxmemory"] != "64mb" || client.config["maxmemory-policy"] != "allkeys-lru" {
		t.Fatalf("unexpected config: %v", client.config)
	}

	if err := ConfigureRedisEviction(ctx, client, "", "noeviction"); err == nil {
		t.Fatalf("expected unsupported policy error")
	}

	client = newStubRedisClient()
	client.pingErr = errors.New("down")
	if err := ConfigureRedisEviction(ctx, client, "", ""); err == nil {
		t.Fatalf("expected ping error")
	}

	client = newStubRedisClient()
	client.configErr = errors.New("denied")
	if err := ConfigureRedisEviction(ctx, client, "", ""); err == nil {
		t.Fatalf("expected config set error")
	}
}
