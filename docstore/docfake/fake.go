// Package docfake wraps an in-memory collection with call counters and
// failure injection for tests of code that writes through to a docstore.
package docfake

import (
	"context"
	"sync"
	"testing"

	"github.com/goforj/odm/docstore"
)

// Op identifies a collection operation for assertions.
type Op string

const (
	OpInsert    Op = "insert"
	OpUpdate    Op = "update"
	OpDelete    Op = "delete"
	OpFind      Op = "find"
	OpFindOne   Op = "find_one"
	OpAggregate Op = "aggregate"
)

// Fake is a docstore.Database whose collections record every call.
type Fake struct {
	mu          sync.Mutex
	collections map[string]*Collection
	counts      map[Op]int
	errs        map[Op]error
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		collections: map[string]*Collection{},
		counts:      map[Op]int{},
		errs:        map[Op]error{},
	}
}

// Collection returns the named collection, creating it on first use.
func (f *Fake) Collection(_ context.Context, name string) (docstore.Collection, error) {
	return f.Named(name), nil
}

// Named returns the concrete fake collection for name.
func (f *Fake) Named(name string) *Collection {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.collections[name]
	if !ok {
		c = &Collection{inner: docstore.NewMemoryCollection(name), fake: f}
		f.collections[name] = c
	}
	return c
}

func (f *Fake) Close() error { return nil }

// Fail makes every subsequent op return err. A nil err clears the failure.
func (f *Fake) Fail(op Op, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, op)
		return
	}
	f.errs[op] = err
}

// Reset clears counts and failures. Stored documents are kept.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts = map[Op]int{}
	f.errs = map[Op]error{}
}

// Count returns how many times op ran across all collections.
func (f *Fake) Count(op Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[op]
}

// Reads returns the number of find, find-one and aggregate calls.
func (f *Fake) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[OpFind] + f.counts[OpFindOne] + f.counts[OpAggregate]
}

// AssertCount fails t unless op ran exactly times.
func (f *Fake) AssertCount(t *testing.T, op Op, times int) {
	t.Helper()
	if got := f.Count(op); got != times {
		t.Fatalf("expected %s called %d times, got %d", op, times, got)
	}
}

func (f *Fake) bump(op Op) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[op]++
	return f.errs[op]
}

// Collection counts calls before delegating to a memory collection.
type Collection struct {
	inner *docstore.MemoryCollection
	fake  *Fake
}

func (c *Collection) Name() string { return c.inner.Name() }

// Len reports stored documents without recording a call.
func (c *Collection) Len() int { return c.inner.Len() }

// Peek reads a document by id without recording a call.
func (c *Collection) Peek(id string) (docstore.Document, bool) {
	doc, ok, _ := c.inner.FindOne(context.Background(), docstore.Filter{docstore.IDField: id})
	return doc, ok
}

func (c *Collection) Insert(ctx context.Context, doc docstore.Document) (string, error) {
	if err := c.fake.bump(OpInsert); err != nil {
		return "", err
	}
	return c.inner.Insert(ctx, doc)
}

func (c *Collection) UpdateByID(ctx context.Context, id string, doc docstore.Document) error {
	if err := c.fake.bump(OpUpdate); err != nil {
		return err
	}
	return c.inner.UpdateByID(ctx, id, doc)
}

func (c *Collection) DeleteByID(ctx context.Context, id string) (bool, error) {
	if err := c.fake.bump(OpDelete); err != nil {
		return false, err
	}
	return c.inner.DeleteByID(ctx, id)
}

func (c *Collection) Find(ctx context.Context, filter docstore.Filter) (docstore.Cursor, error) {
	if err := c.fake.bump(OpFind); err != nil {
		return nil, err
	}
	return c.inner.Find(ctx, filter)
}

func (c *Collection) FindOne(ctx context.Context, filter docstore.Filter) (docstore.Document, bool, error) {
	if err := c.fake.bump(OpFindOne); err != nil {
		return nil, false, err
	}
	return c.inner.FindOne(ctx, filter)
}

func (c *Collection) Aggregate(ctx context.Context, pipeline docstore.Pipeline) (docstore.Cursor, error) {
	if err := c.fake.bump(OpAggregate); err != nil {
		return nil, err
	}
	return c.inner.Aggregate(ctx, pipeline)
}
