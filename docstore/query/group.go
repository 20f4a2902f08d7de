package query

import (
	"errors"
	"fmt"
)

type accumulator struct {
	field string
	op    string
	expr  any
}

type groupState struct {
	id     any
	values map[string]any
	counts map[string]int
}

func groupStage(docs []map[string]any, spec map[string]any) ([]map[string]any, error) {
	idExpr, ok := spec["_id"]
	if !ok {
		return nil, errors.New("requires an _id expression")
	}
	accs := make([]accumulator, 0, len(spec)-1)
	for field, raw := range spec {
		if field == "_id" {
			continue
		}
		m, ok := asMap(raw)
		if !ok || len(m) != 1 {
			return nil, fmt.Errorf("field %q needs exactly one accumulator", field)
		}
		for op, expr := range m {
			switch op {
			case "$sum", "$avg", "$min", "$max", "$first", "$last", "$push":
			default:
				return nil, fmt.Errorf("%w: accumulator %s", ErrUnsupported, op)
			}
			accs = append(accs, accumulator{field: field, op: op, expr: expr})
		}
	}

	var order []*groupState
	groups := map[string]*groupState{}
	for _, doc := range docs {
		id, _ := evalExpr(doc, idExpr)
		key := canonical(id)
		g, ok := groups[key]
		if !ok {
			g = &groupState{id: id, values: map[string]any{}, counts: map[string]int{}}
			groups[key] = g
			order = append(order, g)
		}
		for _, acc := range accs {
			val, present := evalExpr(doc, acc.expr)
			accumulate(g, acc, val, present)
		}
	}

	out := make([]map[string]any, 0, len(order))
	for _, g := range order {
		row := map[string]any{"_id": g.id}
		for _, acc := range accs {
			v, ok := g.values[acc.field]
			switch acc.op {
			case "$avg":
				if n := g.counts[acc.field]; n > 0 {
					v = v.(float64) / float64(n)
				} else {
					v = nil
				}
			case "$sum":
				if !ok {
					v = float64(0)
				}
			case "$push":
				if !ok {
					v = []any{}
				}
			}
			row[acc.field] = v
		}
		out = append(out, row)
	}
	return out, nil
}

func accumulate(g *groupState, acc accumulator, val any, present bool) {
	cur, seen := g.values[acc.field]
	switch acc.op {
	case "$sum", "$avg":
		f, ok := ToFloat(val)
		if !present || !ok {
			return
		}
		total, _ := cur.(float64)
		g.values[acc.field] = total + f
		g.counts[acc.field]++
	case "$min":
		if present && val != nil && (!seen || Compare(val, cur) < 0) {
			g.values[acc.field] = val
		}
	case "$max":
		if present && val != nil && (!seen || Compare(val, cur) > 0) {
			g.values[acc.field] = val
		}
	case "$first":
		if !seen {
			g.values[acc.field] = val
		}
	case "$last":
		g.values[acc.field] = val
	case "$push":
		list, _ := cur.([]any)
		if present {
			g.values[acc.field] = append(list, val)
		}
	}
}
