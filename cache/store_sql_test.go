package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

var sqliteSeq atomic.Int64

func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	dsn := fmt.Sprintf("file:cache_%d?mode=memory&cache=shared", sqliteSeq.Add(1))
	store, err := newSQLStore(StoreConfig{
		SQLDriverName: "sqlite",
		SQLDSN:        dsn,
		SQLTable:      "cache_entries",
		DefaultTTL:    time.Second,
		Prefix:        "p",
	})
	if err != nil {
		t.Fatalf("sqlite store create failed: %v", err)
	}
	t.Cleanup(func() { _ = store.(*sqlStore).db.Close() })
	return store
}

func TestSQLStoreBasics(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	if store.Driver() != DriverSQL {
		t.Fatalf("expected sql driver, got %s", store.Driver())
	}
	if err := store.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	body, ok, err := store.Get(ctx, "k")
	if err != nil || !ok || string(body) != "v" {
		t.Fatalf("get failed: ok=%v err=%v val=%s", ok, err, string(body))
	}
	if err := store.Set(ctx, "k", []byte("v2"), time.Minute); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	body, _, _ = store.Get(ctx, "k")
	if string(body) != "v2" {
		t.Fatalf("expected overwrite, got %s", string(body))
	}

	deleted, err := store.Delete(ctx, "k")
	if err != nil || !deleted {
		t.Fatalf("expected delete hit, deleted=%v err=%v", deleted, err)
	}
	deleted, err = store.Delete(ctx, "k")
	if err != nil || deleted {
		t.Fatalf("expected delete miss, deleted=%v err=%v", deleted, err)
	}
}

func TestSQLStoreTTLExpiry(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	if err := store.Set(ctx, "ttl", []byte("x"), 50*time.Millisecond); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	time.Sleep(80 * time.Millisecond)
	_, ok, err := store.Get(ctx, "ttl")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if ok {
		t.Fatalf("expected ttl expiry")
	}
}

func TestSQLStoreTouch(t *testing.T) {
	store := newSQLiteStore(t)
	ss := store.(*sqlStore)
	ctx := context.Background()

	touched, err := store.Touch(ctx, "missing", time.Minute)
	if err != nil || touched {
		t.Fatalf("expected touch miss, touched=%v err=%v", touched, err)
	}

	if err := store.Set(ctx, "k", []byte("v"), 100*time.Millisecond); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	touched, err = store.Touch(ctx, "k", time.Hour)
	if err != nil || !touched {
		t.Fatalf("expected touch hit, touched=%v err=%v", touched, err)
	}
	var exp int64
	if err := ss.db.QueryRow("SELECT ea FROM cache_entries WHERE k = ?", "p:k").Scan(&exp); err != nil {
		t.Fatalf("read expiry: %v", err)
	}
	if exp < time.Now().Add(30*time.Minute).UnixMilli() {
		t.Fatalf("expected expiry to be extended")
	}

	expired := time.Now().Add(-time.Hour).UnixMilli()
	if _, err := ss.db.ExecContext(ctx, "INSERT INTO cache_entries (k, v, ea) VALUES (?, ?, ?)", "p:old", []byte("x"), expired); err != nil {
		t.Fatalf("insert expired: %v", err)
	}
	touched, err = store.Touch(ctx, "old", time.Hour)
	if err != nil || touched {
		t.Fatalf("expected expired row not to be touched, touched=%v err=%v", touched, err)
	}
}

func TestSQLStoreDeleteManyAndFlushScope(t *testing.T) {
	store := newSQLiteStore(t)
	ss := store.(*sqlStore)
	ctx := context.Background()

	if err := store.DeleteMany(ctx); err != nil {
		t.Fatalf("delete many empty should be nil: %v", err)
	}
	for _, k := range []string{"a", "b", "c"} {
		if err := store.Set(ctx, k, []byte(k), time.Minute); err != nil {
			t.Fatalf("set %s failed: %v", k, err)
		}
	}
	if err := store.DeleteMany(ctx, "a", "b"); err != nil {
		t.Fatalf("delete many failed: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "a"); ok {
		t.Fatalf("expected a removed")
	}
	if _, ok, _ := store.Get(ctx, "c"); !ok {
		t.Fatalf("expected c kept")
	}

	foreign := time.Now().Add(time.Hour).UnixMilli()
	if _, err := ss.db.ExecContext(ctx, "INSERT INTO cache_entries (k, v, ea) VALUES (?, ?, ?)", "other:x", []byte("x"), foreign); err != nil {
		t.Fatalf("insert foreign: %v", err)
	}
	if err := store.Flush(ctx); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "c"); ok {
		t.Fatalf("expected flush to clear prefixed keys")
	}
	var n int
	if err := ss.db.QueryRow("SELECT COUNT(*) FROM cache_entries WHERE k = ?", "other:x").Scan(&n); err != nil || n != 1 {
		t.Fatalf("expected foreign key kept, n=%d err=%v", n, err)
	}
}

func TestSQLStoreCacheKeyNoPrefix(t *testing.T) {
	ss := &sqlStore{prefix: ""}
	if got := ss.cacheKey("k"); got != "k" {
		t.Fatalf("expected raw key, got %s", got)
	}
	if got := ss.scopePattern(); got != "%" {
		t.Fatalf("expected match-all pattern, got %s", got)
	}
	ss.prefix = "a_b"
	if got := ss.scopePattern(); got != "a\\_b:%" {
		t.Fatalf("expected escaped pattern, got %s", got)
	}
}

func TestSQLStoreDefaultTableAndTTLFallback(t *testing.T) {
	store, err := newSQLStore(StoreConfig{
		SQLDriverName: "sqlite",
		SQLDSN:        fmt.Sprintf("file:cache_%d?mode=memory&cache=shared", sqliteSeq.Add(1)),
	})
	if err != nil {
		t.Fatalf("store create failed: %v", err)
	}
	ss := store.(*sqlStore)
	defer ss.db.Close()
	if ss.table != defaultSQLTable {
		t.Fatalf("expected default table, got %s", ss.table)
	}
	if ss.defaultTTL != defaultCacheTTL {
		t.Fatalf("expected default ttl fallback")
	}
}

func TestSQLStoreConstructionErrors(t *testing.T) {
	if _, err := newSQLStore(StoreConfig{}); err == nil {
		t.Fatalf("expected error for missing driver/dsn")
	}
	if _, err := newSQLStore(StoreConfig{SQLDriverName: "pingfail", SQLDSN: "x"}); err == nil {
		t.Fatalf("expected ping error")
	}
	if _, err := newSQLStore(StoreConfig{SQLDriverName: "execfail", SQLDSN: "x"}); err == nil {
		t.Fatalf("expected schema error")
	}
	if _, err := newSQLStore(StoreConfig{SQLDriverName: "sqlite", SQLDSN: "file:bad?mode=memory", SQLTable: "drop table;"}); err == nil {
		t.Fatalf("expected invalid table error")
	}
}

func TestSQLStoreErrorsWhenDBClosed(t *testing.T) {
	store := newSQLiteStore(t)
	ss := store.(*sqlStore)
	_ = ss.db.Close()

	ctx := context.Background()
	if _, _, err := store.Get(ctx, "k"); err == nil {
		t.Fatalf("expected get error on closed db")
	}
	if err := store.Set(ctx, "k", []byte("v"), time.Minute); err == nil {
		t.Fatalf("expected set error on closed db")
	}
	if _, err := store.Touch(ctx, "k", time.Minute); err == nil {
		t.Fatalf("expected touch error on closed db")
	}
	if _, err := store.Delete(ctx, "k"); err == nil {
		t.Fatalf("expected delete error on closed db")
	}
}
