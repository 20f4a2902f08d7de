package query

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnsupported is wrapped by every error reporting an operator or stage
// this package does not implement.
var ErrUnsupported = errors.New("query: unsupported")

// Match reports whether doc satisfies filter. An empty filter matches everything.
func Match(doc map[string]any, filter map[string]any) (bool, error) {
	for key, cond := range filter {
		ok, err := matchKey(doc, key, cond)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchKey(doc map[string]any, key string, cond any) (bool, error) {
	switch key {
	case "$and", "$or", "$nor":
		clauses, err := clauseList(key, cond)
		if err != nil {
			return false, err
		}
		return matchLogical(doc, key, clauses)
	}
	if strings.HasPrefix(key, "$") {
		return false, fmt.Errorf("%w: top-level operator %s", ErrUnsupported, key)
	}
	value, present := Lookup(doc, key)
	if ops, ok := operatorMap(cond); ok {
		return matchOperators(value, present, ops)
	}
	return present && equalOrContains(value, cond), nil
}

func matchLogical(doc map[string]any, op string, clauses []map[string]any) (bool, error) {
	for _, clause := range clauses {
		ok, err := Match(doc, clause)
		if err != nil {
			return false, err
		}
		switch {
		case op == "$and" && !ok:
			return false, nil
		case op == "$or" && ok:
			return true, nil
		case op == "$nor" && ok:
			return false, nil
		}
	}
	return op != "$or", nil
}

func clauseList(op string, cond any) ([]map[string]any, error) {
	list, ok := cond.([]any)
	if !ok {
		if maps, ok := cond.([]map[string]any); ok {
			return maps, nil
		}
		return nil, fmt.Errorf("query: %s expects an array of filters", op)
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		m, ok := asMap(item)
		if !ok {
			return nil, fmt.Errorf("query: %s expects an array of filters", op)
		}
		out = append(out, m)
	}
	return out, nil
}

// operatorMap reports whether cond is an operator document like {"$gt": 3}.
func operatorMap(cond any) (map[string]any, bool) {
	m, ok := asMap(cond)
	if !ok || len(m) == 0 {
		return nil, false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return m, true
}

func matchOperators(value any, present bool, ops map[string]any) (bool, error) {
	var options string
	if o, ok := ops["$options"].(string); ok {
		options = o
	}
	for op, arg := range ops {
		ok, err := matchOperator(value, present, op, arg, options)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchOperator(value any, present bool, op string, arg any, options string) (bool, error) {
	switch op {
	case "$eq":
		return present && equalOrContains(value, arg), nil
	case "$ne":
		return !present || !equalOrContains(value, arg), nil
	case "$gt", "$gte", "$lt", "$lte":
		if !present {
			return false, nil
		}
		return anyElement(value, func(v any) bool { return compareOp(op, v, arg) }), nil
	case "$in", "$nin":
		list, ok := arg.([]any)
		if !ok {
			return false, fmt.Errorf("query: %s expects an array", op)
		}
		found := false
		for _, candidate := range list {
			if present && equalOrContains(value, candidate) {
				found = true
				break
			}
		}
		if op == "$in" {
			return found, nil
		}
		return !found, nil
	case "$exists":
		want, ok := arg.(bool)
		if !ok {
			want = truthy(arg)
		}
		return present == want, nil
	case "$regex":
		pattern, ok := arg.(string)
		if !ok {
			return false, errors.New("query: $regex expects a string")
		}
		if strings.Contains(options, "i") {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, fmt.Errorf("query: $regex: %w", err)
		}
		return present && anyElement(value, func(v any) bool {
			s, ok := v.(string)
			return ok && re.MatchString(s)
		}), nil
	case "$options":
		return true, nil
	case "$size":
		n, ok := ToFloat(arg)
		if !ok {
			return false, errors.New("query: $size expects a number")
		}
		list, isList := value.([]any)
		return present && isList && float64(len(list)) == n, nil
	case "$all":
		want, ok := arg.([]any)
		if !ok {
			return false, errors.New("query: $all expects an array")
		}
		for _, w := range want {
			if !present || !equalOrContains(value, w) {
				return false, nil
			}
		}
		return true, nil
	case "$not":
		inner, ok := operatorMap(arg)
		if !ok {
			return false, errors.New("query: $not expects an operator document")
		}
		matched, err := matchOperators(value, present, inner)
		return !matched, err
	}
	return false, fmt.Errorf("%w: operator %s", ErrUnsupported, op)
}

func compareOp(op string, v, arg any) bool {
	if typeRank(v) != typeRank(arg) {
		return false
	}
	c := Compare(v, arg)
	switch op {
	case "$gt":
		return c > 0
	case "$gte":
		return c >= 0
	case "$lt":
		return c < 0
	default:
		return c <= 0
	}
}

// equalOrContains matches scalar equality, or membership when value is an array.
func equalOrContains(value, want any) bool {
	if Equal(value, want) {
		return true
	}
	if list, ok := value.([]any); ok {
		for _, item := range list {
			if Equal(item, want) {
				return true
			}
		}
	}
	return false
}

func anyElement(value any, fn func(any) bool) bool {
	if fn(value) {
		return true
	}
	if list, ok := value.([]any); ok {
		for _, item := range list {
			if fn(item) {
				return true
			}
		}
	}
	return false
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	}
	if f, ok := ToFloat(v); ok {
		return f != 0
	}
	return true
}

// asMap accepts map[string]any and named map types built on it.
func asMap(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	return convertMap(v)
}
