package docstore

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/goforj/odm/docstore/query"
)

// MemoryDatabase keeps collections in process memory. It is safe for
// concurrent use and mostly useful for tests and the demo command.
type MemoryDatabase struct {
	mu          sync.Mutex
	collections map[string]*MemoryCollection
}

// NewMemoryDatabase returns an empty in-process database.
func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{collections: map[string]*MemoryCollection{}}
}

// Collection returns the named collection, creating it on first use.
func (d *MemoryDatabase) Collection(_ context.Context, name string) (Collection, error) {
	if name == "" {
		return nil, errors.New("docstore: collection name is required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.collections[name]
	if !ok {
		c = NewMemoryCollection(name)
		d.collections[name] = c
	}
	return c, nil
}

func (d *MemoryDatabase) Close() error { return nil }

// MemoryCollection is a Collection held in a map, iterated in insertion order.
type MemoryCollection struct {
	name  string
	mu    sync.RWMutex
	docs  map[string]Document
	order []string
}

// NewMemoryCollection returns an empty collection.
func NewMemoryCollection(name string) *MemoryCollection {
	return &MemoryCollection{name: name, docs: map[string]Document{}}
}

func (c *MemoryCollection) Name() string { return c.name }

func (c *MemoryCollection) Insert(ctx context.Context, doc Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	stored, err := withID(doc, id)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[id] = stored
	c.order = append(c.order, id)
	return id, nil
}

func (c *MemoryCollection) UpdateByID(ctx context.Context, id string, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return errors.New("docstore: update requires an id")
	}
	stored, err := withID(doc, id)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.docs[id]; !ok {
		c.order = append(c.order, id)
	}
	c.docs[id] = stored
	return nil
}

func (c *MemoryCollection) DeleteByID(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.docs[id]; !ok {
		return false, nil
	}
	delete(c.docs, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (c *MemoryCollection) Find(ctx context.Context, filter Filter) (Cursor, error) {
	docs, err := c.matching(ctx, filter)
	if err != nil {
		return nil, err
	}
	return NewSliceCursor(docs), nil
}

func (c *MemoryCollection) FindOne(ctx context.Context, filter Filter) (Document, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if id, ok := idFromFilter(filter); ok {
		c.mu.RLock()
		defer c.mu.RUnlock()
		doc, found := c.docs[id]
		if !found {
			return nil, false, nil
		}
		return doc.Clone(), true, nil
	}
	docs, err := c.matching(ctx, filter)
	if err != nil || len(docs) == 0 {
		return nil, false, err
	}
	return docs[0].Clone(), true, nil
}

func (c *MemoryCollection) Aggregate(ctx context.Context, pipeline Pipeline) (Cursor, error) {
	docs, err := c.matching(ctx, nil)
	if err != nil {
		return nil, err
	}
	return aggregate(docs, pipeline)
}

// Len reports the number of stored documents.
func (c *MemoryCollection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}

func (c *MemoryCollection) matching(ctx context.Context, filter Filter) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Document, 0, len(c.order))
	for _, id := range c.order {
		doc := c.docs[id]
		ok, err := query.Match(doc, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, doc.Clone())
		}
	}
	return out, nil
}

func aggregate(docs []Document, pipeline Pipeline) (Cursor, error) {
	in := make([]map[string]any, len(docs))
	for i, d := range docs {
		in[i] = d
	}
	stages := make([]map[string]any, len(pipeline))
	for i, s := range pipeline {
		stages[i] = s
	}
	out, err := query.Aggregate(in, stages)
	if err != nil {
		return nil, err
	}
	result := make([]Document, len(out))
	for i, d := range out {
		result[i] = d
	}
	return NewSliceCursor(result), nil
}
