package docstore

import "context"

// SliceCursor iterates an in-memory result set.
type SliceCursor struct {
	docs   []Document
	pos    int
	cur    Document
	err    error
	closed bool
}

// NewSliceCursor returns a cursor over docs. Documents are handed out as copies.
func NewSliceCursor(docs []Document) *SliceCursor {
	return &SliceCursor{docs: docs, pos: -1}
}

func (c *SliceCursor) Next(ctx context.Context) bool {
	if c.closed || c.err != nil {
		c.cur = nil
		return false
	}
	if err := ctx.Err(); err != nil {
		c.err = err
		c.cur = nil
		return false
	}
	if c.pos+1 >= len(c.docs) {
		c.pos = len(c.docs)
		c.cur = nil
		return false
	}
	c.pos++
	c.cur = c.docs[c.pos].Clone()
	return true
}

func (c *SliceCursor) Current() Document { return c.cur }

func (c *SliceCursor) Err() error { return c.err }

func (c *SliceCursor) Close(context.Context) error {
	c.closed = true
	c.docs = nil
	c.cur = nil
	return nil
}

// All drains cur into a slice and closes it.
func All(ctx context.Context, cur Cursor) ([]Document, error) {
	defer func() { _ = cur.Close(ctx) }()
	var out []Document
	for cur.Next(ctx) {
		out = append(out, cur.Current())
	}
	return out, cur.Err()
}
