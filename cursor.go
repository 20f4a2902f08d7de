package odm

import (
	"context"
	"fmt"
	"iter"

	"go.uber.org/zap"

	"github.com/goforj/odm/docstore"
)

// Cursor lazily turns store results into documents, caching each one as it
// goes. It is single pass: once Next returns false it stays false.
type Cursor struct {
	model *Model
	raw   docstore.Cursor
	cur   *Document
	err   error
	done  bool
}

// Next advances to the next matching document.
func (c *Cursor) Next(ctx context.Context) bool {
	if c.done {
		return false
	}
	if !c.raw.Next(ctx) {
		c.finish(ctx, c.raw.Err())
		return false
	}
	doc := c.model.materialize(c.raw.Current())
	snap, err := doc.Snapshot()
	if err == nil {
		err = c.model.storeSnapshot(ctx, doc.id, snap)
	}
	if err != nil {
		c.finish(ctx, fmt.Errorf("odm: find %s: %w", c.model.Kind(), err))
		return false
	}
	c.model.logger.Debug("cache warmed from cursor", zap.String("id", doc.id))
	c.cur = doc
	return true
}

// Document returns the current document.
func (c *Cursor) Document() *Document { return c.cur }

// Err returns the error that ended iteration, if any.
func (c *Cursor) Err() error { return c.err }

// Close releases the store cursor. Further calls to Next return false.
func (c *Cursor) Close(ctx context.Context) error {
	if c.done {
		return nil
	}
	c.done = true
	c.cur = nil
	return c.raw.Close(ctx)
}

// All ranges over the remaining documents. A failure is yielded last with a
// nil document.
func (c *Cursor) All(ctx context.Context) iter.Seq2[*Document, error] {
	return func(yield func(*Document, error) bool) {
		for c.Next(ctx) {
			if !yield(c.cur, nil) {
				_ = c.Close(ctx)
				return
			}
		}
		if c.err != nil {
			yield(nil, c.err)
		}
	}
}

func (c *Cursor) finish(ctx context.Context, err error) {
	if c.err == nil && err != nil {
		c.err = err
	}
	c.done = true
	c.cur = nil
	_ = c.raw.Close(ctx)
}
