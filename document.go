package odm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/goforj/odm/docstore"
)

// Document is one record of a kind. Assignments are validated against the
// kind's schema; Save and Delete keep the store and cache in step.
// A Document is not safe for concurrent mutation.
type Document struct {
	model *Model
	attrs map[string]any
	id    string
}

// Kind returns the document's kind.
func (d *Document) Kind() string { return d.model.Kind() }

// ID returns the store-assigned identity, or "" before the first save.
func (d *Document) ID() string { return d.id }

// Get returns the value of name.
func (d *Document) Get(name string) (any, bool) {
	if name == docstore.IDField {
		return d.id, d.id != ""
	}
	v, ok := d.attrs[name]
	return v, ok
}

// Names returns the assigned attribute names, sorted.
func (d *Document) Names() []string {
	out := make([]string, 0, len(d.attrs))
	for k := range d.attrs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Set assigns value to name.
//
// It fails with ErrSchemaViolation when name is not part of the schema and
// with ErrRedundantWrite when name already holds an equal value. Text
// assigned to the address attribute is geocoded and stored as a geo.Point;
// geocoder timeouts are retried as configured on the registry.
func (d *Document) Set(ctx context.Context, name string, value any) error {
	if !d.model.schema.Allows(name) {
		return fmt.Errorf("%w: %s: attribute %q is not allowed", ErrSchemaViolation, d.Kind(), name)
	}
	if current, ok := d.attrs[name]; ok {
		same, err := sameValue(current, value)
		if err != nil {
			return fmt.Errorf("odm: %s: attribute %q: %w", d.Kind(), name, err)
		}
		if same {
			return fmt.Errorf("%w: %s: attribute %q already holds this value", ErrRedundantWrite, d.Kind(), name)
		}
	}
	if text, ok := value.(string); ok && name == d.model.cfg.addressField {
		p, err := d.model.resolveAddress(ctx, text)
		if err != nil {
			return fmt.Errorf("odm: %s: geocode %q: %w", d.Kind(), name, err)
		}
		d.attrs[name] = p
		return nil
	}
	if _, err := json.Marshal(value); err != nil {
		return fmt.Errorf("odm: %s: attribute %q: %w", d.Kind(), name, err)
	}
	d.attrs[name] = value
	return nil
}

// Snapshot returns the JSON-shaped attributes, with "_id" once saved.
func (d *Document) Snapshot() (Snapshot, error) {
	doc, err := docstore.Normalize(docstore.Document(d.attrs))
	if err != nil {
		return nil, err
	}
	if d.id != "" {
		doc[docstore.IDField] = d.id
	}
	return Snapshot(doc), nil
}

// Save upserts the document: an update by identity once it has one, an
// insert otherwise. After the store write succeeds the cache entry is
// refreshed when it already matches, or replaced with the current snapshot.
// A failed store write leaves the cache alone.
func (d *Document) Save(ctx context.Context) error {
	m := d.model
	body := docstore.Document(d.attrs)
	if d.id != "" {
		if err := m.collection.UpdateByID(ctx, d.id, body); err != nil {
			return fmt.Errorf("odm: save %s %s: %w", d.Kind(), d.id, err)
		}
	} else {
		id, err := m.collection.Insert(ctx, body)
		if err != nil {
			return fmt.Errorf("odm: save %s: %w", d.Kind(), err)
		}
		d.id = id
	}

	snap, err := d.Snapshot()
	if err != nil {
		return fmt.Errorf("odm: save %s %s: %w", d.Kind(), d.id, err)
	}
	encoded, err := encodeSnapshot(snap)
	if err != nil {
		return fmt.Errorf("odm: save %s %s: %w", d.Kind(), d.id, err)
	}
	log := m.logger.With(zap.String("id", d.id))

	cached, ok, err := m.cache.Get(ctx, d.id)
	if err != nil {
		return fmt.Errorf("odm: save %s %s: cache: %w", d.Kind(), d.id, err)
	}
	if ok && bytes.Equal(cached, encoded) {
		refreshed, err := m.cache.Touch(ctx, d.id, m.cfg.cacheTTL)
		if err != nil {
			return fmt.Errorf("odm: save %s %s: cache: %w", d.Kind(), d.id, err)
		}
		if refreshed {
			log.Debug("cache entry refreshed")
			return nil
		}
	}
	if err := m.cache.Set(ctx, d.id, encoded, m.cfg.cacheTTL); err != nil {
		return fmt.Errorf("odm: save %s %s: cache: %w", d.Kind(), d.id, err)
	}
	log.Debug("cache entry written")
	return nil
}

// Delete evicts the cache entry, then deletes the stored record. It reports
// whether a cache entry was removed. A document that was never saved only
// attempts the eviction.
func (d *Document) Delete(ctx context.Context) (bool, error) {
	m := d.model
	log := m.logger.With(zap.String("id", d.id))
	removed, err := m.cache.Delete(ctx, d.id)
	if err != nil {
		return false, fmt.Errorf("odm: delete %s %s: cache: %w", d.Kind(), d.id, err)
	}
	if removed {
		log.Debug("cache hit on delete")
	} else {
		log.Debug("cache miss on delete")
	}
	if d.id == "" {
		return removed, nil
	}
	if _, err := m.collection.DeleteByID(ctx, d.id); err != nil {
		return removed, fmt.Errorf("odm: delete %s %s: %w", d.Kind(), d.id, err)
	}
	return removed, nil
}

// sameValue compares a and b by their JSON encodings, so 3 and 3.0 are equal.
func sameValue(a, b any) (bool, error) {
	ea, err := json.Marshal(a)
	if err != nil {
		return false, err
	}
	eb, err := json.Marshal(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(ea, eb), nil
}
