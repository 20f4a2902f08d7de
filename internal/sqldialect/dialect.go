// Package sqldialect holds the small amount of SQL that differs between the
// sqlite, postgres and mysql drivers used by the cache and document stores.
package sqldialect

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect identifies the SQL flavour behind a database/sql driver name.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
	MySQL
)

var identPartRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// For maps a database/sql driver name onto its dialect. Unknown names are
// treated as sqlite.
func For(driverName string) Dialect {
	switch driverName {
	case "postgres", "pgx":
		return Postgres
	case "mysql":
		return MySQL
	default:
		return SQLite
	}
}

// Placeholder returns the i-th (1-based) bind parameter.
func (d Dialect) Placeholder(i int) string {
	if d == Postgres {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}

// Placeholders returns n comma separated bind parameters starting at from.
func (d Dialect) Placeholders(from, n int) string {
	parts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		parts = append(parts, d.Placeholder(from+i))
	}
	return strings.Join(parts, ",")
}

// Upsert renders an insert that overwrites the non-key columns on conflict.
// Placeholders are numbered in column order.
func (d Dialect) Upsert(table, key string, cols ...string) string {
	all := append([]string{key}, cols...)
	values := d.Placeholders(1, len(all))
	sets := make([]string, 0, len(cols))
	for _, col := range cols {
		switch d {
		case MySQL:
			sets = append(sets, fmt.Sprintf("%s = VALUES(%s)", col, col))
		default:
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", col, col))
		}
	}
	if d == MySQL {
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s",
			table, strings.Join(all, ", "), values, strings.Join(sets, ", "))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		table, strings.Join(all, ", "), values, key, strings.Join(sets, ", "))
}

// BlobType is the column type for opaque byte payloads.
func (d Dialect) BlobType() string {
	switch d {
	case Postgres:
		return "BYTEA"
	case MySQL:
		return "LONGBLOB"
	default:
		return "BLOB"
	}
}

// KeyType is the column type for short string primary keys.
func (d Dialect) KeyType() string {
	if d == MySQL {
		return "VARCHAR(255)"
	}
	return "TEXT"
}

// IsDuplicate reports whether err is a unique-constraint violation.
func (d Dialect) IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	switch d {
	case Postgres:
		return strings.Contains(msg, "duplicate key value")
	case MySQL:
		return strings.Contains(msg, "Duplicate entry")
	default:
		return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "unique constraint")
	}
}

// ValidateTableName rejects anything but plain (optionally schema-qualified) identifiers.
func ValidateTableName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("sql table name is required")
	}
	for _, part := range strings.Split(name, ".") {
		if !identPartRE.MatchString(part) {
			return fmt.Errorf("invalid sql table name %q", name)
		}
	}
	return nil
}
