package query

import (
	"errors"
	"testing"
)

func people() []map[string]any {
	return []map[string]any{
		{"_id": "1", "nombre": "Alberto", "ciudad": "Madrid", "edad": float64(34), "tags": []any{"a", "b"}},
		{"_id": "2", "nombre": "Ana", "ciudad": "Sevilla", "edad": float64(28), "tags": []any{"a"}},
		{"_id": "3", "nombre": "Luis", "ciudad": "Madrid", "edad": float64(41)},
		{"_id": "4", "nombre": "Eva", "ciudad": "Sevilla", "edad": float64(28)},
	}
}

func TestAggregateMatchSortLimit(t *testing.T) {
	out, err := Aggregate(people(), []map[string]any{
		{"$match": map[string]any{"edad": map[string]any{"$gte": 28}}},
		{"$sort": []any{map[string]any{"edad": -1}, map[string]any{"nombre": 1}}},
		{"$skip": 1},
		{"$limit": 2},
	})
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}
	if len(out) != 2 || out[0]["nombre"] != "Alberto" || out[1]["nombre"] != "Ana" {
		t.Fatalf("unexpected result: %v", out)
	}
}

func TestAggregateGroup(t *testing.T) {
	out, err := Aggregate(people(), []map[string]any{
		{"$group": map[string]any{
			"_id":     "$ciudad",
			"total":   map[string]any{"$sum": 1},
			"media":   map[string]any{"$avg": "$edad"},
			"mayor":   map[string]any{"$max": "$edad"},
			"menor":   map[string]any{"$min": "$edad"},
			"nombres": map[string]any{"$push": "$nombre"},
			"primero": map[string]any{"$first": "$nombre"},
		}},
		{"$sort": map[string]any{"_id": 1}},
	})
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(out))
	}
	madrid := out[0]
	if madrid["_id"] != "Madrid" || madrid["total"] != float64(2) || madrid["media"] != 37.5 {
		t.Fatalf("unexpected madrid group: %v", madrid)
	}
	if madrid["mayor"] != float64(41) || madrid["menor"] != float64(34) || madrid["primero"] != "Alberto" {
		t.Fatalf("unexpected madrid extremes: %v", madrid)
	}
	if names := madrid["nombres"].([]any); len(names) != 2 {
		t.Fatalf("expected two pushed names, got %v", names)
	}
}

func TestAggregateProjectCountUnwind(t *testing.T) {
	out, err := Aggregate(people(), []map[string]any{
		{"$project": map[string]any{"nombre": 1, "alias": "$ciudad", "_id": 0}},
	})
	if err != nil {
		t.Fatalf("project failed: %v", err)
	}
	if _, ok := out[0]["_id"]; ok || out[0]["alias"] != "Madrid" || out[0]["nombre"] != "Alberto" || len(out[0]) != 2 {
		t.Fatalf("unexpected projection: %v", out[0])
	}

	out, err = Aggregate(people(), []map[string]any{
		{"$project": map[string]any{"tags": 0}},
	})
	if err != nil {
		t.Fatalf("exclusion failed: %v", err)
	}
	if _, ok := out[0]["tags"]; ok || out[0]["_id"] != "1" {
		t.Fatalf("unexpected exclusion: %v", out[0])
	}

	out, err = Aggregate(people(), []map[string]any{
		{"$unwind": "$tags"},
		{"$count": "n"},
	})
	if err != nil {
		t.Fatalf("unwind/count failed: %v", err)
	}
	if len(out) != 1 || out[0]["n"] != float64(3) {
		t.Fatalf("expected 3 unwound rows, got %v", out)
	}
}

func TestAggregateErrors(t *testing.T) {
	cases := [][]map[string]any{
		{{"$lookup": map[string]any{}}},
		{{"$sort": map[string]any{"a": 1, "b": 1}}},
		{{"$limit": -1}},
		{{"$group": map[string]any{"total": map[string]any{"$sum": 1}}}},
		{{"$project": map[string]any{"a": 1, "b": 0}}},
		{{"$match": map[string]any{}, "$limit": 1}},
	}
	for i, pipeline := range cases {
		if _, err := Aggregate(people(), pipeline); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
	if _, err := Aggregate(people(), []map[string]any{{"$lookup": map[string]any{}}}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected unsupported stage error, got %v", err)
	}
}
