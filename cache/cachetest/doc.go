// Package cachetest holds the contract every cache.Store backend must meet,
// runnable from any backend's tests:
//
//	func TestRedisStoreContract(t *testing.T) {
//		store := cache.NewRedisStore(ctx, newTestRedisClient(t), cache.WithPrefix("test"))
//		cachetest.RunStoreContract(t, store, cachetest.Options{
//			TTL:     time.Second,
//			TTLWait: 1500 * time.Millisecond,
//		})
//	}
//
// Each check runs as its own subtest under a key namespace derived from the
// test name, so several backends can share one server.
package cachetest
