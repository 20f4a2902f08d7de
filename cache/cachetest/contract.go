package cachetest

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/goforj/odm/cache"
)

// Options configures shared store contract checks.
type Options struct {
	// CaseName namespaces keys. Defaults to t.Name().
	CaseName string
	// NullSemantics expects every read to miss, as the null store does.
	NullSemantics bool
	// SkipCloneCheck disables the "Get returns a copy" assertion.
	SkipCloneCheck bool
	// TTL is the expiry used by the expiry checks. Defaults to 50ms.
	TTL time.Duration
	// TTLWait is how long to wait for expiry. Defaults to 120ms.
	TTLWait time.Duration
	// SkipFlush disables the flush check for backends where it is expensive or unavailable.
	SkipFlush bool
}

// Store is the minimal contract required by RunStoreContract.
type Store = cache.Store

type contract struct {
	store Store
	opts  Options
	ns    string
}

func (c contract) key(s string) string { return c.ns + ":" + s }

// RunStoreContract runs the backend-agnostic store checks as subtests.
func RunStoreContract(t *testing.T, store Store, opts Options) {
	t.Helper()
	if opts.CaseName == "" {
		opts.CaseName = t.Name()
	}
	if opts.TTL <= 0 {
		opts.TTL = 50 * time.Millisecond
	}
	if opts.TTLWait <= 0 {
		opts.TTLWait = 120 * time.Millisecond
	}
	c := contract{store: store, opts: opts, ns: strings.NewReplacer("/", "_", " ", "_").Replace(opts.CaseName)}

	t.Run("set_get", c.setGet)
	t.Run("expiry", c.expiry)
	t.Run("touch", c.touch)
	t.Run("delete", c.delete)
	if !opts.SkipFlush {
		t.Run("flush", c.flush)
	}
}

func (c contract) setGet(t *testing.T) {
	ctx := context.Background()
	snapshot := `{"_id":"42","nombre":"Alberto"}`
	if err := c.store.Set(ctx, c.key("doc"), []byte(snapshot), time.Second); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	body, ok, err := c.store.Get(ctx, c.key("doc"))
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if c.opts.NullSemantics {
		if ok {
			t.Fatalf("expected miss for null semantics")
		}
		return
	}
	if !ok || string(body) != snapshot {
		t.Fatalf("unexpected get result: ok=%v body=%q", ok, body)
	}
	if c.opts.SkipCloneCheck {
		return
	}
	body[0] = 'X'
	again, ok, err := c.store.Get(ctx, c.key("doc"))
	if err != nil || !ok || string(again) != snapshot {
		t.Fatalf("expected stored value unchanged, got ok=%v body=%q err=%v", ok, again, err)
	}
}

func (c contract) expiry(t *testing.T) {
	ctx := context.Background()
	if err := c.store.Set(ctx, c.key("ttl"), []byte("v"), c.opts.TTL); err != nil {
		t.Fatalf("set ttl failed: %v", err)
	}
	if err := waitForMiss(ctx, c.store, c.key("ttl"), c.opts.TTLWait); err != nil {
		t.Fatalf("expected ttl expiry: %v", err)
	}
}

func (c contract) touch(t *testing.T) {
	ctx := context.Background()
	touched, err := c.store.Touch(ctx, c.key("missing"), time.Second)
	if err != nil || touched {
		t.Fatalf("expected touch miss; touched=%v err=%v", touched, err)
	}
	if err := c.store.Set(ctx, c.key("touch"), []byte("v"), c.opts.TTL); err != nil {
		t.Fatalf("set touch failed: %v", err)
	}
	touched, err = c.store.Touch(ctx, c.key("touch"), 10*time.Second)
	if err != nil {
		t.Fatalf("touch failed: %v", err)
	}
	if touched == c.opts.NullSemantics {
		t.Fatalf("unexpected touch report: touched=%v", touched)
	}
	if c.opts.NullSemantics {
		return
	}
	time.Sleep(c.opts.TTLWait)
	if _, ok, err := c.store.Get(ctx, c.key("touch")); err != nil || !ok {
		t.Fatalf("expected touched key to outlive original ttl; ok=%v err=%v", ok, err)
	}
}

func (c contract) delete(t *testing.T) {
	ctx := context.Background()
	for _, k := range []string{"a", "b"} {
		if err := c.store.Set(ctx, c.key(k), []byte(k), time.Second); err != nil {
			t.Fatalf("set %s failed: %v", k, err)
		}
	}
	deleted, err := c.store.Delete(ctx, c.key("a"))
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if deleted == c.opts.NullSemantics {
		t.Fatalf("unexpected delete report: deleted=%v", deleted)
	}
	deleted, err = c.store.Delete(ctx, c.key("a"))
	if err != nil || deleted {
		t.Fatalf("expected second delete to miss; deleted=%v err=%v", deleted, err)
	}
	if err := c.store.DeleteMany(ctx, c.key("b")); err != nil {
		t.Fatalf("delete many failed: %v", err)
	}
	for _, k := range []string{"a", "b"} {
		if _, ok, err := c.store.Get(ctx, c.key(k)); err != nil || ok {
			t.Fatalf("expected key %s deleted; ok=%v err=%v", k, ok, err)
		}
	}
}

func (c contract) flush(t *testing.T) {
	ctx := context.Background()
	if err := c.store.Set(ctx, c.key("flush"), []byte("x"), time.Second); err != nil {
		t.Fatalf("set flush failed: %v", err)
	}
	if err := c.store.Flush(ctx); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if _, ok, err := c.store.Get(ctx, c.key("flush")); err != nil || ok {
		t.Fatalf("expected flush to clear key; ok=%v err=%v", ok, err)
	}
}

func waitForMiss(ctx context.Context, store Store, key string, wait time.Duration) error {
	deadline := time.Now().Add(wait)
	for {
		_, ok, err := store.Get(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("key %q still present after %s", key, wait)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
