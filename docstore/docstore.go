// Package docstore is the persistent document store the model layer writes
// through to. A Collection holds JSON-shaped documents keyed by a
// store-assigned "_id"; filters and aggregation pipelines use the familiar
// Mongo operator vocabulary and are evaluated by package query.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// IDField is the reserved attribute holding a document's identity.
const IDField = "_id"

// ErrClosed is returned by collections whose backing handle has been closed.
var ErrClosed = errors.New("docstore: closed")

// Document is a raw record as stored. Values are JSON-shaped: string, float64,
// bool, nil, []any and map[string]any.
type Document map[string]any

// ID returns the string identity of d, or "" when absent.
func (d Document) ID() string {
	id, _ := d[IDField].(string)
	return id
}

// Clone returns a deep copy of d.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return cloneValue(map[string]any(d)).(map[string]any)
}

// Filter selects documents, e.g. {"nombre": "Alberto", "edad": {"$gte": 18}}.
type Filter map[string]any

// Stage is one aggregation pipeline stage, e.g. {"$match": {...}}.
type Stage map[string]any

// Pipeline is an ordered list of aggregation stages.
type Pipeline []Stage

// Cursor is a single-pass iterator over query results.
//
// Next advances to the following document and reports whether one exists.
// Once Next returns false it keeps returning false; Err then reports any
// failure that ended iteration.
type Cursor interface {
	Next(ctx context.Context) bool
	Current() Document
	Err() error
	Close(ctx context.Context) error
}

// Collection is a named set of documents.
type Collection interface {
	Name() string
	// Insert stores doc under a fresh identity and returns it. An "_id" in doc is ignored.
	Insert(ctx context.Context, doc Document) (string, error)
	// UpdateByID replaces every attribute of the document with the given identity,
	// creating it when absent.
	UpdateByID(ctx context.Context, id string, doc Document) error
	// DeleteByID removes the document and reports whether it existed.
	DeleteByID(ctx context.Context, id string) (bool, error)
	Find(ctx context.Context, filter Filter) (Cursor, error)
	FindOne(ctx context.Context, filter Filter) (Document, bool, error)
	Aggregate(ctx context.Context, pipeline Pipeline) (Cursor, error)
}

// Database hands out collections by name.
type Database interface {
	Collection(ctx context.Context, name string) (Collection, error)
	Close() error
}

// Normalize converts doc to its JSON-shaped form, the shape every collection
// stores and returns. Struct values (for example geographic points) become
// maps and integers become float64.
func Normalize(doc Document) (Document, error) {
	if doc == nil {
		return Document{}, nil
	}
	body, err := json.Marshal(map[string]any(doc))
	if err != nil {
		return nil, fmt.Errorf("docstore: encode document: %w", err)
	}
	return Decode(body)
}

// Decode parses a JSON object into a Document.
func Decode(body []byte) (Document, error) {
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("docstore: decode document: %w", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return Document(out), nil
}

func marshalDocument(doc Document) ([]byte, error) {
	body, err := json.Marshal(map[string]any(doc))
	if err != nil {
		return nil, fmt.Errorf("docstore: encode document: %w", err)
	}
	return body, nil
}

// withID normalizes doc and stamps id on the copy.
func withID(doc Document, id string) (Document, error) {
	out, err := Normalize(doc)
	if err != nil {
		return nil, err
	}
	out[IDField] = id
	return out, nil
}

// idFromFilter reports the identity when filter is exactly {"_id": "<id>"}.
func idFromFilter(filter Filter) (string, bool) {
	if len(filter) != 1 {
		return "", false
	}
	id, ok := filter[IDField].(string)
	return id, ok
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case Document:
		return Document(cloneValue(map[string]any(t)).(map[string]any))
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}
