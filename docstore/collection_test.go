package docstore

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// runCollectionSuite checks the behaviour every Collection implementation shares.
func runCollectionSuite(t *testing.T, newDB func(t *testing.T) Database) {
	t.Helper()
	ctx := context.Background()

	t.Run("insert_and_find_one", func(t *testing.T) {
		col := mustCollection(t, newDB(t), "personas")
		id, err := col.Insert(ctx, Document{"nombre": "Alberto", "edad": 34, IDField: "ignored"})
		if err != nil {
			t.Fatalf("insert failed: %v", err)
		}
		if id == "" || id == "ignored" {
			t.Fatalf("expected store-assigned id, got %q", id)
		}
		got, ok, err := col.FindOne(ctx, Filter{IDField: id})
		if err != nil || !ok {
			t.Fatalf("expected document, ok=%v err=%v", ok, err)
		}
		want := Document{IDField: id, "nombre": "Alberto", "edad": float64(34)}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("unexpected document (-want +got):\n%s", diff)
		}
	})

	t.Run("find_one_missing", func(t *testing.T) {
		col := mustCollection(t, newDB(t), "personas")
		_, ok, err := col.FindOne(ctx, Filter{IDField: "nope"})
		if err != nil || ok {
			t.Fatalf("expected miss, ok=%v err=%v", ok, err)
		}
		_, ok, err = col.FindOne(ctx, Filter{"nombre": "nobody"})
		if err != nil || ok {
			t.Fatalf("expected filtered miss, ok=%v err=%v", ok, err)
		}
	})

	t.Run("update_replaces_and_upserts", func(t *testing.T) {
		col := mustCollection(t, newDB(t), "personas")
		id, err := col.Insert(ctx, Document{"nombre": "Ana", "edad": 20})
		if err != nil {
			t.Fatalf("insert failed: %v", err)
		}
		if err := col.UpdateByID(ctx, id, Document{"nombre": "Ana"}); err != nil {
			t.Fatalf("update failed: %v", err)
		}
		got, _, _ := col.FindOne(ctx, Filter{IDField: id})
		if _, ok := got["edad"]; ok {
			t.Fatalf("expected edad removed by replace, got %v", got)
		}
		if err := col.UpdateByID(ctx, "fixed-id", Document{"nombre": "Luis"}); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
		got, ok, _ := col.FindOne(ctx, Filter{IDField: "fixed-id"})
		if !ok || got["nombre"] != "Luis" {
			t.Fatalf("expected upserted document, got %v", got)
		}
		if err := col.UpdateByID(ctx, "", Document{}); err == nil {
			t.Fatalf("expected error for empty id")
		}
	})

	t.Run("delete", func(t *testing.T) {
		col := mustCollection(t, newDB(t), "personas")
		id, _ := col.Insert(ctx, Document{"nombre": "Eva"})
		deleted, err := col.DeleteByID(ctx, id)
		if err != nil || !deleted {
			t.Fatalf("expected delete, deleted=%v err=%v", deleted, err)
		}
		deleted, err = col.DeleteByID(ctx, id)
		if err != nil || deleted {
			t.Fatalf("expected second delete to report false, deleted=%v err=%v", deleted, err)
		}
	})

	t.Run("find_filters", func(t *testing.T) {
		col := mustCollection(t, newDB(t), "personas")
		ages := map[string]int{"Ana": 18, "Berta": 30, "Carlos": 38, "Diana": 48}
		for _, name := range []string{"Ana", "Berta", "Carlos", "Diana"} {
			if _, err := col.Insert(ctx, Document{"nombre": name, "edad": ages[name]}); err != nil {
				t.Fatalf("insert failed: %v", err)
			}
		}
		matches := func(filter Filter) map[string]bool {
			t.Helper()
			cur, err := col.Find(ctx, filter)
			if err != nil {
				t.Fatalf("find failed: %v", err)
			}
			docs, err := All(ctx, cur)
			if err != nil {
				t.Fatalf("drain failed: %v", err)
			}
			names := map[string]bool{}
			for _, d := range docs {
				names[d["nombre"].(string)] = true
			}
			return names
		}
		// Berta sits on the boundary: included by $gte, excluded by $gt
		if diff := cmp.Diff(map[string]bool{"Berta": true, "Carlos": true, "Diana": true}, matches(Filter{"edad": map[string]any{"$gte": 30}})); diff != "" {
			t.Fatalf("unexpected $gte matches (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(map[string]bool{"Carlos": true, "Diana": true}, matches(Filter{"edad": map[string]any{"$gt": 30}})); diff != "" {
			t.Fatalf("unexpected $gt matches (-want +got):\n%s", diff)
		}
		if err := drainFind(ctx, col, Filter{"edad": map[string]any{"$bogus": 1}}); err == nil {
			t.Fatalf("expected unsupported operator error")
		}
	})

	t.Run("aggregate", func(t *testing.T) {
		col := mustCollection(t, newDB(t), "ventas")
		for _, row := range []Document{
			{"ciudad": "Madrid", "total": 10},
			{"ciudad": "Sevilla", "total": 5},
			{"ciudad": "Madrid", "total": 7},
		} {
			if _, err := col.Insert(ctx, row); err != nil {
				t.Fatalf("insert failed: %v", err)
			}
		}
		cur, err := col.Aggregate(ctx, Pipeline{
			{"$group": map[string]any{"_id": "$ciudad", "suma": map[string]any{"$sum": "$total"}}},
			{"$sort": map[string]any{"suma": -1}},
		})
		if err != nil {
			t.Fatalf("aggregate failed: %v", err)
		}
		docs, err := All(ctx, cur)
		if err != nil {
			t.Fatalf("drain failed: %v", err)
		}
		want := []Document{
			{"_id": "Madrid", "suma": float64(17)},
			{"_id": "Sevilla", "suma": float64(5)},
		}
		if diff := cmp.Diff(want, docs); diff != "" {
			t.Fatalf("unexpected aggregate (-want +got):\n%s", diff)
		}
	})

	t.Run("collection_identity", func(t *testing.T) {
		db := newDB(t)
		a := mustCollection(t, db, "personas")
		b := mustCollection(t, db, "personas")
		if a.Name() != "personas" || a != b {
			t.Fatalf("expected the same collection handle for one name")
		}
	})
}

// drainFind reports an error from either Find or iteration; backends differ in
// when they evaluate the filter.
func drainFind(ctx context.Context, col Collection, filter Filter) error {
	cur, err := col.Find(ctx, filter)
	if err != nil {
		return err
	}
	_, err = All(ctx, cur)
	return err
}

func mustCollection(t *testing.T, db Database, name string) Collection {
	t.Helper()
	col, err := db.Collection(context.Background(), name)
	if err != nil {
		t.Fatalf("collection %q: %v", name, err)
	}
	return col
}

func TestMemoryCollectionSuite(t *testing.T) {
	runCollectionSuite(t, func(t *testing.T) Database { return NewMemoryDatabase() })
}

var sqliteSeq atomic.Int64

func TestSQLiteCollectionSuite(t *testing.T) {
	runCollectionSuite(t, func(t *testing.T) Database {
		dsn := fmt.Sprintf("file:docstore_%d?mode=memory&cache=shared", sqliteSeq.Add(1))
		db, err := OpenSQL(context.Background(), "sqlite", dsn, WithTablePrefix("odm_"))
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() { _ = db.Close() })
		return db
	})
}

func TestDynamoCollectionSuite(t *testing.T) {
	runCollectionSuite(t, func(t *testing.T) Database {
		return NewDynamoDatabase(newDocDynStub(), "odm_")
	})
}
