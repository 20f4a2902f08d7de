package cache

import (
	"context"
	"testing"
	"time"
)

func TestNullStoreNoOps(t *testing.T) {
	store := newNullStore()
	ctx := context.Background()

	if err := store.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set should be nil")
	}
	if _, ok, err := store.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("get should miss, err=%v ok=%v", err, ok)
	}
	if touched, err := store.Touch(ctx, "k", time.Minute); err != nil || touched {
		t.Fatalf("touch should report miss, err=%v touched=%v", err, touched)
	}
	if removed, err := store.Delete(ctx, "k"); err != nil || removed {
		t.Fatalf("delete should report miss, err=%v removed=%v", err, removed)
	}
	if err := store.Flush(ctx); err != nil {
		t.Fatalf("flush should be nil")
	}
}
