package cache

import (
	"context"
	"time"
)

// Operation names reported to observers.
const (
	OpGet        = "get"
	OpSet        = "set"
	OpTouch      = "touch"
	OpDelete     = "delete"
	OpDeleteMany = "delete_many"
	OpFlush      = "flush"
	OpGetJSON    = "get_json"
	OpSetJSON    = "set_json"
)

// Observer receives events for cache operations.
// It is called from Cache helpers after each operation completes.
// For touch and delete, hit reports whether the key was present.
type Observer interface {
	OnCacheOp(ctx context.Context, op string, key string, hit bool, err error, dur time.Duration, driver Driver)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, op string, key string, hit bool, err error, dur time.Duration, driver Driver)

// OnCacheOp implements Observer.
func (f ObserverFunc) OnCacheOp(ctx context.Context, op string, key string, hit bool, err error, dur time.Duration, driver Driver) {
	if f == nil {
		return
	}
	f(ctx, op, key, hit, err, dur, driver)
}
