package sqldialect

import (
	"errors"
	"strings"
	"testing"
)

func TestForMapsDriverNames(t *testing.T) {
	cases := map[string]Dialect{
		"pgx":      Postgres,
		"postgres": Postgres,
		"mysql":    MySQL,
		"sqlite":   SQLite,
		"":         SQLite,
	}
	for name, want := range cases {
		if got := For(name); got != want {
			t.Fatalf("expected %q to map to %v, got %v", name, want, got)
		}
	}
}

func TestPlaceholders(t *testing.T) {
	if got := Postgres.Placeholders(2, 3); got != "$2,$3,$4" {
		t.Fatalf("unexpected postgres placeholders: %s", got)
	}
	if got := SQLite.Placeholders(1, 2); got != "?,?" {
		t.Fatalf("unexpected sqlite placeholders: %s", got)
	}
}

func TestUpsert(t *testing.T) {
	pg := Postgres.Upsert("t", "k", "v", "ea")
	if !strings.Contains(pg, "ON CONFLICT (k) DO UPDATE SET v = excluded.v, ea = excluded.ea") || !strings.Contains(pg, "$3") {
		t.Fatalf("unexpected postgres upsert: %s", pg)
	}
	my := MySQL.Upsert("t", "k", "v")
	if !strings.Contains(my, "ON DUPLICATE KEY UPDATE v = VALUES(v)") {
		t.Fatalf("unexpected mysql upsert: %s", my)
	}
	lite := SQLite.Upsert("t", "k", "v")
	if !strings.Contains(lite, "ON CONFLICT (k)") {
		t.Fatalf("unexpected sqlite upsert: %s", lite)
	}
}

func TestIsDuplicate(t *testing.T) {
	if !Postgres.IsDuplicate(errors.New("duplicate key value violates")) {
		t.Fatalf("expected duplicate detection pg")
	}
	if !MySQL.IsDuplicate(errors.New("Duplicate entry")) {
		t.Fatalf("expected duplicate detection mysql")
	}
	if SQLite.IsDuplicate(errors.New("other")) {
		t.Fatalf("unexpected duplicate detection")
	}
	if SQLite.IsDuplicate(nil) {
		t.Fatalf("nil error is not a duplicate")
	}
}

func TestValidateTableName(t *testing.T) {
	for _, ok := range []string{"cache_entries", "public.docs"} {
		if err := ValidateTableName(ok); err != nil {
			t.Fatalf("expected %q valid: %v", ok, err)
		}
	}
	for _, bad := range []string{"", "  ", "drop table;", "a.b-c"} {
		if err := ValidateTableName(bad); err == nil {
			t.Fatalf("expected %q invalid", bad)
		}
	}
}
