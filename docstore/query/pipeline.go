package query

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Aggregate runs pipeline over docs and returns the resulting documents.
// Supported stages: $match, $project, $sort, $skip, $limit, $count, $unwind
// and $group with the $sum, $avg, $min, $max, $first, $last and $push
// accumulators.
//
// A $sort with several keys must be written as an array of single-key
// documents so the key order survives Go's unordered maps.
func Aggregate(docs []map[string]any, pipeline []map[string]any) ([]map[string]any, error) {
	out := docs
	for i, stage := range pipeline {
		if len(stage) != 1 {
			return nil, fmt.Errorf("query: pipeline stage %d must have exactly one operator", i)
		}
		for name, spec := range stage {
			var err error
			out, err = runStage(out, name, spec)
			if err != nil {
				return nil, fmt.Errorf("query: stage %d (%s): %w", i, name, err)
			}
		}
	}
	return out, nil
}

func runStage(docs []map[string]any, name string, spec any) ([]map[string]any, error) {
	switch name {
	case "$match":
		filter, ok := asMap(spec)
		if !ok {
			return nil, errors.New("expects a filter document")
		}
		return matchStage(docs, filter)
	case "$project":
		proj, ok := asMap(spec)
		if !ok {
			return nil, errors.New("expects a projection document")
		}
		return projectStage(docs, proj)
	case "$sort":
		keys, err := sortKeys(spec)
		if err != nil {
			return nil, err
		}
		return sortStage(docs, keys), nil
	case "$skip":
		n, err := count(spec)
		if err != nil {
			return nil, err
		}
		if n >= len(docs) {
			return []map[string]any{}, nil
		}
		return docs[n:], nil
	case "$limit":
		n, err := count(spec)
		if err != nil {
			return nil, err
		}
		if n < len(docs) {
			return docs[:n], nil
		}
		return docs, nil
	case "$count":
		field, ok := spec.(string)
		if !ok || field == "" || strings.HasPrefix(field, "$") {
			return nil, errors.New("expects a non-empty field name")
		}
		if len(docs) == 0 {
			return []map[string]any{}, nil
		}
		return []map[string]any{{field: float64(len(docs))}}, nil
	case "$unwind":
		path, ok := spec.(string)
		if !ok || !strings.HasPrefix(path, "$") {
			return nil, errors.New("expects a $-prefixed field path")
		}
		return unwindStage(docs, strings.TrimPrefix(path, "$")), nil
	case "$group":
		group, ok := asMap(spec)
		if !ok {
			return nil, errors.New("expects a group document")
		}
		return groupStage(docs, group)
	}
	return nil, fmt.Errorf("%w: stage %s", ErrUnsupported, name)
}

func matchStage(docs []map[string]any, filter map[string]any) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		ok, err := Match(doc, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

func projectStage(docs []map[string]any, proj map[string]any) ([]map[string]any, error) {
	includeID := true
	if v, ok := proj["_id"]; ok && !truthy(v) {
		includeID = false
	}
	inclusive, exclusive := false, false
	for k, v := range proj {
		if k == "_id" {
			continue
		}
		if _, isExpr := v.(string); isExpr || truthy(v) {
			inclusive = true
		} else {
			exclusive = true
		}
	}
	if inclusive && exclusive {
		return nil, errors.New("cannot mix inclusion and exclusion")
	}
	out := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		next := map[string]any{}
		if exclusive || (!inclusive && !exclusive) {
			for k, v := range doc {
				next[k] = v
			}
			for k := range proj {
				delete(next, k)
			}
		} else {
			for k, v := range proj {
				if k == "_id" {
					continue
				}
				if s, ok := v.(string); ok {
					if val, ok := evalExpr(doc, s); ok {
						next[k] = val
					}
					continue
				}
				if val, ok := Lookup(doc, k); ok {
					next[k] = val
				}
			}
		}
		if includeID {
			if id, ok := doc["_id"]; ok {
				next["_id"] = id
			}
		} else {
			delete(next, "_id")
		}
		out = append(out, next)
	}
	return out, nil
}

type sortKey struct {
	path string
	desc bool
}

func sortKeys(spec any) ([]sortKey, error) {
	var entries []map[string]any
	switch t := spec.(type) {
	case []any:
		for _, item := range t {
			m, ok := asMap(item)
			if !ok || len(m) != 1 {
				return nil, errors.New("array form expects single-key documents")
			}
			entries = append(entries, m)
		}
	default:
		m, ok := asMap(spec)
		if !ok || len(m) == 0 {
			return nil, errors.New("expects a sort document")
		}
		if len(m) > 1 {
			return nil, errors.New("multiple keys need the array form to keep their order")
		}
		entries = append(entries, m)
	}
	keys := make([]sortKey, 0, len(entries))
	for _, m := range entries {
		for path, dir := range m {
			d, ok := ToFloat(dir)
			if !ok || (d != 1 && d != -1) {
				return nil, fmt.Errorf("direction for %q must be 1 or -1", path)
			}
			keys = append(keys, sortKey{path: path, desc: d < 0})
		}
	}
	return keys, nil
}

func sortStage(docs []map[string]any, keys []sortKey) []map[string]any {
	out := append([]map[string]any(nil), docs...)
	sort.SliceStable(out, func(i, j int) bool {
		for _, k := range keys {
			a, _ := Lookup(out[i], k.path)
			b, _ := Lookup(out[j], k.path)
			c := Compare(a, b)
			if c == 0 {
				continue
			}
			if k.desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return out
}

func unwindStage(docs []map[string]any, path string) []map[string]any {
	var out []map[string]any
	for _, doc := range docs {
		v, ok := Lookup(doc, path)
		if !ok {
			continue
		}
		list, isList := v.([]any)
		if !isList {
			out = append(out, doc)
			continue
		}
		for _, item := range list {
			next := make(map[string]any, len(doc))
			for k, val := range doc {
				next[k] = val
			}
			setPath(next, path, item)
			out = append(out, next)
		}
	}
	return out
}

func setPath(doc map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, part := range parts[:len(parts)-1] {
		child, ok := cur[part].(map[string]any)
		if !ok {
			child = map[string]any{}
		} else {
			copied := make(map[string]any, len(child))
			for k, v := range child {
				copied[k] = v
			}
			child = copied
		}
		cur[part] = child
		cur = child
	}
	cur[parts[len(parts)-1]] = value
}

func count(spec any) (int, error) {
	f, ok := ToFloat(spec)
	if !ok || f < 0 || f != float64(int(f)) {
		return 0, errors.New("expects a non-negative integer")
	}
	return int(f), nil
}

// evalExpr resolves "$path" references and returns other strings as literals.
func evalExpr(doc map[string]any, expr any) (any, bool) {
	switch t := expr.(type) {
	case string:
		if strings.HasPrefix(t, "$") {
			return Lookup(doc, strings.TrimPrefix(t, "$"))
		}
		return t, true
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			if val, ok := evalExpr(doc, v); ok {
				out[k] = val
			} else {
				out[k] = nil
			}
		}
		return out, true
	}
	return expr, true
}
