package docstore

import (
	"context"
	"fmt"
	"testing"
)

func openTestSQLite(t *testing.T) *SQLDatabase {
	t.Helper()
	dsn := fmt.Sprintf("file:docstore_sql_%d?mode=memory&cache=shared", sqliteSeq.Add(1))
	db, err := OpenSQL(context.Background(), "sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSQLCollectionOrdersBySequence(t *testing.T) {
	ctx := context.Background()
	col := mustCollection(t, openTestSQLite(t), "orden")
	ids := make([]string, 0, 4)
	for i := 0; i < 4; i++ {
		id, err := col.Insert(ctx, Document{"i": i})
		if err != nil {
			t.Fatalf("insert failed: %v", err)
		}
		ids = append(ids, id)
	}
	// replacing a document keeps its position
	if err := col.UpdateByID(ctx, ids[0], Document{"i": 99}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	cur, _ := col.Find(ctx, nil)
	docs, err := All(ctx, cur)
	if err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	for i, d := range docs {
		if d.ID() != ids[i] {
			t.Fatalf("expected %s at %d, got %s", ids[i], i, d.ID())
		}
	}
}

func TestSQLDatabaseRejectsBadNames(t *testing.T) {
	db := openTestSQLite(t)
	if _, err := db.Collection(context.Background(), "bad name;"); err == nil {
		t.Fatalf("expected invalid table name error")
	}
}

func TestOpenSQLValidation(t *testing.T) {
	if _, err := OpenSQL(context.Background(), "", ""); err == nil {
		t.Fatalf("expected error for missing driver")
	}
	if _, err := OpenSQL(context.Background(), "no-such-driver", "x"); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestSQLCursorCloseEarly(t *testing.T) {
	ctx := context.Background()
	col := mustCollection(t, openTestSQLite(t), "cierre")
	for i := 0; i < 3; i++ {
		_, _ = col.Insert(ctx, Document{"i": i})
	}
	cur, err := col.Find(ctx, nil)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if !cur.Next(ctx) {
		t.Fatalf("expected a row")
	}
	if err := cur.Close(ctx); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if cur.Next(ctx) {
		t.Fatalf("expected closed cursor to be exhausted")
	}
	if _, err := col.Insert(ctx, Document{"i": 3}); err != nil {
		t.Fatalf("insert after close failed: %v", err)
	}
}
