package odm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/goforj/odm/cache"
	"github.com/goforj/odm/docstore"
	"github.com/goforj/odm/geo"
)

const (
	// DefaultCacheTTL is the lifetime of a cached snapshot, refreshed on use.
	DefaultCacheTTL = 24 * time.Hour
	// DefaultAddressField is the attribute normalised into a geo.Point.
	DefaultAddressField = "direccion"
)

// Option configures a Registry.
type Option func(*registryConfig)

type registryConfig struct {
	logger       *zap.Logger
	resolver     geo.Resolver
	retry        geo.RetryPolicy
	addressField string
	cacheTTL     time.Duration
}

func (c registryConfig) withDefaults() registryConfig {
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.addressField == "" {
		c.addressField = DefaultAddressField
	}
	if c.cacheTTL <= 0 {
		c.cacheTTL = DefaultCacheTTL
	}
	if c.resolver != nil {
		if _, ok := c.resolver.(*geo.Retrying); !ok {
			c.resolver = geo.NewRetrying(c.resolver, c.retry, c.logger.Named("geo"))
		}
	}
	return c
}

// WithLogger sets the logger. Cache hits, misses and refreshes are logged at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(c *registryConfig) { c.logger = l }
}

// WithResolver sets the geocoder for address attributes. Unless it already is
// a *geo.Retrying it is wrapped in one using the registry's retry policy.
func WithResolver(r geo.Resolver) Option {
	return func(c *registryConfig) { c.resolver = r }
}

// WithRetryPolicy bounds geocoder retries. The zero policy retries timeouts
// forever, one second apart.
func WithRetryPolicy(p geo.RetryPolicy) Option {
	return func(c *registryConfig) { c.retry = p }
}

// WithAddressField renames the attribute normalised into a geo.Point.
func WithAddressField(name string) Option {
	return func(c *registryConfig) { c.addressField = name }
}

// WithCacheTTL overrides DefaultCacheTTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *registryConfig) { c.cacheTTL = ttl }
}

// Registry binds document kinds to their schema, collection and cache.
// It is safe for concurrent use.
type Registry struct {
	cfg registryConfig

	mu     sync.RWMutex
	models map[string]*Model
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	var cfg registryConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Registry{cfg: cfg.withDefaults(), models: map[string]*Model{}}
}

// Init registers kind, replacing any earlier registration.
func (r *Registry) Init(kind string, collection docstore.Collection, c *cache.Cache, required, admissible []string) (*Model, error) {
	if kind == "" {
		return nil, errors.New("odm: init: kind is required")
	}
	if collection == nil {
		return nil, fmt.Errorf("odm: init %s: collection is required", kind)
	}
	if c == nil {
		return nil, fmt.Errorf("odm: init %s: cache is required", kind)
	}
	m := &Model{
		schema:     newSchema(kind, required, admissible),
		collection: collection,
		cache:      c,
		cfg:        r.cfg,
		logger:     r.cfg.logger.With(zap.String("kind", kind)),
	}
	r.mu.Lock()
	r.models[kind] = m
	r.mu.Unlock()
	m.logger.Debug("kind registered",
		zap.Strings("required", m.schema.Required()),
		zap.Strings("admissible", m.schema.Admissible()))
	return m, nil
}

// InitDefinitions registers every kind in defs against the collection of
// the same name in db.
func (r *Registry) InitDefinitions(ctx context.Context, defs Definitions, db docstore.Database, c *cache.Cache) error {
	for _, kind := range defs.Kinds() {
		col, err := db.Collection(ctx, kind)
		if err != nil {
			return fmt.Errorf("odm: init %s: %w", kind, err)
		}
		def := defs[kind]
		if _, err := r.Init(kind, col, c, def.Required, def.Admissible); err != nil {
			return err
		}
	}
	return nil
}

// Model returns the model for kind.
func (r *Registry) Model(kind string) (*Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[kind]
	return m, ok
}

// Lookup is Model with an ErrUnknownKind error for unregistered kinds.
func (r *Registry) Lookup(kind string) (*Model, error) {
	m, ok := r.Model(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return m, nil
}

// New constructs a document of kind.
func (r *Registry) New(ctx context.Context, kind string, attrs map[string]any) (*Document, error) {
	m, err := r.Lookup(kind)
	if err != nil {
		return nil, err
	}
	return m.New(ctx, attrs)
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.models))
	for k := range r.models {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
