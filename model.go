package odm

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/goforj/odm/cache"
	"github.com/goforj/odm/docstore"
	"github.com/goforj/odm/geo"
)

// Model is the kind-level handle: it constructs documents and runs queries
// against the kind's collection, keeping the shared cache coherent.
type Model struct {
	schema     Schema
	collection docstore.Collection
	cache      *cache.Cache
	cfg        registryConfig
	logger     *zap.Logger

	loads singleflight.Group
}

// Kind returns the kind name the model was registered under.
func (m *Model) Kind() string { return m.schema.kind }

// Schema returns the kind's required and admissible attribute names.
func (m *Model) Schema() Schema { return m.schema }

// Collection returns the backing collection. Writes made through it bypass
// the cache.
func (m *Model) Collection() docstore.Collection { return m.collection }

// Cache returns the cache shared by every kind of the registry.
func (m *Model) Cache() *cache.Cache { return m.cache }

// New builds a document from attrs. Every name must belong to the schema and
// every required name must be present; each value then goes through Set.
func (m *Model) New(ctx context.Context, attrs map[string]any) (*Document, error) {
	var unknown, missing []string
	for name := range attrs {
		if !m.schema.Allows(name) {
			unknown = append(unknown, name)
		}
	}
	for _, name := range m.schema.Required() {
		if _, ok := attrs[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: %s: unknown attributes %s", ErrSchemaViolation, m.Kind(), strings.Join(unknown, ", "))
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s: missing required attributes %s", ErrSchemaViolation, m.Kind(), strings.Join(missing, ", "))
	}

	d := &Document{model: m, attrs: make(map[string]any, len(attrs))}
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := d.Set(ctx, name, attrs[name]); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Find queries the collection and returns a lazy cursor over the matches.
func (m *Model) Find(ctx context.Context, filter docstore.Filter) (*Cursor, error) {
	raw, err := m.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("odm: find %s: %w", m.Kind(), err)
	}
	return &Cursor{model: m, raw: raw}, nil
}

// FindByID reads through the cache. A hit refreshes the entry's TTL; a miss
// reads the store and caches what it finds. Absence is (nil, false, nil).
func (m *Model) FindByID(ctx context.Context, id string) (Snapshot, bool, error) {
	if id == "" {
		return nil, false, nil
	}
	log := m.logger.With(zap.String("id", id))

	body, ok, err := m.cache.Get(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("odm: find %s %s: cache: %w", m.Kind(), id, err)
	}
	if ok {
		snap, err := decodeSnapshot(body)
		if err == nil {
			if _, err := m.cache.Touch(ctx, id, m.cfg.cacheTTL); err != nil {
				return nil, false, fmt.Errorf("odm: find %s %s: cache: %w", m.Kind(), id, err)
			}
			log.Debug("cache hit")
			return snap, true, nil
		}
		log.Warn("discarding undecodable cache entry", zap.Error(err))
	}
	log.Debug("cache miss")

	// the shared load outlives any single caller; each caller still honours
	// its own ctx while waiting
	lctx := context.WithoutCancel(ctx)
	ch := m.loads.DoChan(id, func() (any, error) {
		doc, found, err := m.collection.FindOne(lctx, docstore.Filter{docstore.IDField: id})
		if err != nil || !found {
			return nil, err
		}
		snap := Snapshot(doc)
		if err := m.storeSnapshot(lctx, id, snap); err != nil {
			return nil, err
		}
		log.Debug("cache populated from store")
		return snap, nil
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, false, fmt.Errorf("odm: find %s %s: %w", m.Kind(), id, ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, false, fmt.Errorf("odm: find %s %s: %w", m.Kind(), id, res.Err)
	}
	if res.Val == nil {
		return nil, false, nil
	}
	return res.Val.(Snapshot).Clone(), true, nil
}

// Get is FindByID returning a document that can be modified and saved again.
func (m *Model) Get(ctx context.Context, id string) (*Document, bool, error) {
	snap, ok, err := m.FindByID(ctx, id)
	if err != nil || !ok {
		return nil, ok, err
	}
	return m.materialize(docstore.Document(snap)), true, nil
}

// Aggregate runs pipeline on the collection as is. Results are not cached.
func (m *Model) Aggregate(ctx context.Context, pipeline docstore.Pipeline) (docstore.Cursor, error) {
	cur, err := m.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("odm: aggregate %s: %w", m.Kind(), err)
	}
	return cur, nil
}

// materialize wraps a stored record without validation. A stored address
// comes back as a geo.Point.
func (m *Model) materialize(raw docstore.Document) *Document {
	d := &Document{model: m, attrs: make(map[string]any, len(raw))}
	for name, v := range raw {
		if name == docstore.IDField {
			d.id, _ = v.(string)
			continue
		}
		if name == m.cfg.addressField {
			if p, ok := geo.FromValue(v); ok {
				v = p
			}
		}
		d.attrs[name] = v
	}
	return d
}

func (m *Model) storeSnapshot(ctx context.Context, id string, snap Snapshot) error {
	body, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	if err := m.cache.Set(ctx, id, body, m.cfg.cacheTTL); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return nil
}

func (m *Model) resolveAddress(ctx context.Context, address string) (geo.Point, error) {
	if m.cfg.resolver == nil {
		return geo.Point{}, ErrNoResolver
	}
	return m.cfg.resolver.Resolve(ctx, address)
}
