package docfake

import (
	"context"
	"errors"
	"testing"

	"github.com/goforj/odm/docstore"
)

func TestFakeCountsAndFails(t *testing.T) {
	ctx := context.Background()
	f := New()
	col, _ := f.Collection(ctx, "personas")
	id, err := col.Insert(ctx, docstore.Document{"nombre": "Ana"})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if _, _, err := col.FindOne(ctx, docstore.Filter{docstore.IDField: id}); err != nil {
		t.Fatalf("find one failed: %v", err)
	}
	f.AssertCount(t, OpInsert, 1)
	if f.Reads() != 1 {
		t.Fatalf("expected 1 read, got %d", f.Reads())
	}
	if _, ok := f.Named("personas").Peek(id); !ok || f.Reads() != 1 {
		t.Fatalf("expected peek to find the document without counting")
	}

	boom := errors.New("boom")
	f.Fail(OpUpdate, boom)
	if err := col.UpdateByID(ctx, id, docstore.Document{}); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	f.Reset()
	if err := col.UpdateByID(ctx, id, docstore.Document{"nombre": "Eva"}); err != nil {
		t.Fatalf("expected failure cleared, got %v", err)
	}
	f.AssertCount(t, OpUpdate, 1)
	if f.Named("personas").Len() != 1 {
		t.Fatalf("expected one stored document")
	}
}
