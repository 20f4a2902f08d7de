// Package geo turns free-text addresses into geographic points.
package geo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	// ErrTimeout reports a transient resolver failure. Retrying resolves again on it.
	ErrTimeout = errors.New("geo: resolver timed out")
	// ErrNotFound reports an address the resolver has no result for.
	ErrNotFound = errors.New("geo: address not found")
)

// Resolver resolves a free-text address into exactly one point.
type Resolver interface {
	Resolve(ctx context.Context, address string) (Point, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, address string) (Point, error)

func (f ResolverFunc) Resolve(ctx context.Context, address string) (Point, error) {
	return f(ctx, address)
}

// StaticResolver answers from a fixed table, keyed by the trimmed,
// lower-cased address. It is meant for tests and offline runs.
type StaticResolver struct {
	mu     sync.RWMutex
	points map[string]Point
	calls  int
}

// NewStaticResolver returns a resolver that knows the given addresses.
func NewStaticResolver(points map[string]Point) *StaticResolver {
	r := &StaticResolver{points: map[string]Point{}}
	for addr, p := range points {
		r.points[staticKey(addr)] = p
	}
	return r
}

// Add registers or replaces the point for address.
func (r *StaticResolver) Add(address string, p Point) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.points[staticKey(address)] = p
}

func (r *StaticResolver) Resolve(ctx context.Context, address string) (Point, error) {
	if err := ctx.Err(); err != nil {
		return Point{}, err
	}
	r.mu.Lock()
	r.calls++
	p, ok := r.points[staticKey(address)]
	r.mu.Unlock()
	if !ok {
		return Point{}, fmt.Errorf("%w: %q", ErrNotFound, address)
	}
	return p, nil
}

// Calls reports how many lookups were made.
func (r *StaticResolver) Calls() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.calls
}

func staticKey(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
