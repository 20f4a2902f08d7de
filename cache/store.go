package cache

import (
	"context"
	"time"
)

// Store is the key/value contract the document layer caches snapshots in.
//
// Get reports absence with ok=false and a nil error. Touch resets the expiry of
// an existing key and reports whether the key was present. Delete reports
// whether a live key was removed.
type Store interface {
	Driver() Driver
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Touch(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) (bool, error)
	DeleteMany(ctx context.Context, keys ...string) error
	Flush(ctx context.Context) error
}

func cloneBytes(value []byte) []byte {
	if value == nil {
		return nil
	}
	clone := make([]byte, len(value))
	copy(clone, value)
	return clone
}
