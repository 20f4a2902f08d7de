package cachefake

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goforj/odm/cache"
)

// Op identifies a cache operation for assertions.
type Op string

const (
	OpGet        Op = "get"
	OpSet        Op = "set"
	OpTouch      Op = "touch"
	OpDelete     Op = "delete"
	OpDeleteMany Op = "delete_many"
	OpFlush      Op = "flush"
)

// Fake exposes a deterministic in-memory store plus assertion helpers for tests.
// It wraps the memory store so no external services are needed.
type Fake struct {
	cache  *cache.Cache
	store  *countingStore
	counts map[Op]map[string]int
	errs   map[Op]error
	mu     sync.Mutex
}

// New creates a Fake using an in-memory store.
func New() *Fake {
	store := &countingStore{inner: cache.NewMemoryStore(context.Background())}
	f := &Fake{
		cache:  cache.NewCache(store),
		store:  store,
		counts: make(map[Op]map[string]int),
		errs:   make(map[Op]error),
	}
	store.onCount = f.record
	store.failure = f.failure
	return f
}

// Cache returns the cache facade to inject into code under test.
func (f *Fake) Cache() *cache.Cache { return f.cache }

// Store returns the counting store backing the facade.
func (f *Fake) Store() cache.Store { return f.store }

// Evict removes key behind the counters' back, as an expiry or LRU eviction would.
func (f *Fake) Evict(key string) {
	_, _ = f.store.inner.Delete(context.Background(), key)
}

// Peek reads key without recording a call.
func (f *Fake) Peek(key string) ([]byte, bool) {
	body, ok, _ := f.store.inner.Get(context.Background(), key)
	return body, ok
}

// Fail makes every subsequent op call return err. A nil err clears the failure.
func (f *Fake) Fail(op Op, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, op)
		return
	}
	f.errs[op] = err
}

// Reset clears recorded counts and injected failures.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts = make(map[Op]map[string]int)
	f.errs = make(map[Op]error)
}

// AssertCalled verifies key was touched by op the expected number of times.
func (f *Fake) AssertCalled(t *testing.T, op Op, key string, times int) {
	t.Helper()
	if got := f.Count(op, key); got != times {
		t.Fatalf("expected %s %q called %d times, got %d", op, key, times, got)
	}
}

// AssertNotCalled ensures key was never touched by op.
func (f *Fake) AssertNotCalled(t *testing.T, op Op, key string) {
	t.Helper()
	if got := f.Count(op, key); got != 0 {
		t.Fatalf("expected %s %q not called, got %d", op, key, got)
	}
}

// AssertTotal ensures the total call count for an op matches times.
func (f *Fake) AssertTotal(t *testing.T, op Op, times int) {
	t.Helper()
	if got := f.Total(op); got != times {
		t.Fatalf("expected %s total=%d, got %d", op, times, got)
	}
}

// Count returns calls for op+key.
func (f *Fake) Count(op Op, key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts[op] == nil {
		return 0
	}
	return f.counts[op][key]
}

// Total returns total calls for an op across keys.
func (f *Fake) Total(op Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sum int
	for _, v := range f.counts[op] {
		sum += v
	}
	return sum
}

func (f *Fake) record(op Op, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts[op] == nil {
		f.counts[op] = make(map[string]int)
	}
	f.counts[op][key]++
}

func (f *Fake) failure(op Op) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errs[op]
}

// countingStore wraps a Store to record calls.
type countingStore struct {
	inner   cache.Store
	onCount func(Op, string)
	failure func(Op) error
}

func (s *countingStore) Driver() cache.Driver { return s.inner.Driver() }

func (s *countingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.bump(OpGet, key); err != nil {
		return nil, false, err
	}
	return s.inner.Get(ctx, key)
}

func (s *countingStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if err := s.bump(OpSet, key); err != nil {
		return err
	}
	return s.inner.Set(ctx, key, val, ttl)
}

func (s *countingStore) Touch(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := s.bump(OpTouch, key); err != nil {
		return false, err
	}
	return s.inner.Touch(ctx, key, ttl)
}

func (s *countingStore) Delete(ctx context.Context, key string) (bool, error) {
	if err := s.bump(OpDelete, key); err != nil {
		return false, err
	}
	return s.inner.Delete(ctx, key)
}

func (s *countingStore) DeleteMany(ctx context.Context, keys ...string) error {
	var err error
	for _, k := range keys {
		if e := s.bump(OpDeleteMany, k); e != nil {
			err = e
		}
	}
	if err != nil {
		return err
	}
	return s.inner.DeleteMany(ctx, keys...)
}

func (s *countingStore) Flush(ctx context.Context) error {
	if err := s.bump(OpFlush, ""); err != nil {
		return err
	}
	return s.inner.Flush(ctx)
}

func (s *countingStore) bump(op Op, key string) error {
	if s.onCount != nil {
		s.onCount(op, key)
	}
	if s.failure != nil {
		return s.failure(op)
	}
	return nil
}
