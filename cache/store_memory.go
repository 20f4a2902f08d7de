package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryStore keeps snapshots in process. go-cache expires entries lazily
// and sweeps them every cleanup interval.
type memoryStore struct {
	items *gocache.Cache
	ttl   time.Duration

	// serialises the read-then-write sequences of Touch and Delete
	mu sync.Mutex
}

func newMemoryStore(defaultTTL, cleanupInterval time.Duration) Store {
	if defaultTTL <= 0 {
		defaultTTL = defaultCacheTTL
	}
	if cleanupInterval <= 0 {
		cleanupInterval = defaultMemoryCleanupInterval
	}
	return &memoryStore{items: gocache.New(defaultTTL, cleanupInterval), ttl: defaultTTL}
}

func (s *memoryStore) Driver() Driver { return DriverMemory }

func (s *memoryStore) expiry(ttl time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	return s.ttl
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, found := s.items.Get(key)
	if !found {
		return nil, false, nil
	}
	body, _ := v.([]byte)
	return cloneBytes(body), true, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.items.Set(key, cloneBytes(value), s.expiry(ttl))
	return nil
}

// Touch stores the current body again under a new expiry.
func (s *memoryStore) Touch(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, found := s.items.Get(key)
	if !found {
		return false, nil
	}
	return s.items.Replace(key, v, s.expiry(ttl)) == nil, nil
}

func (s *memoryStore) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, found := s.items.Get(key)
	s.items.Delete(key)
	return found, nil
}

func (s *memoryStore) DeleteMany(_ context.Context, keys ...string) error {
	for _, key := range keys {
		s.items.Delete(key)
	}
	return nil
}

func (s *memoryStore) Flush(context.Context) error {
	s.items.Flush()
	return nil
}
