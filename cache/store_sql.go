package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goforj/odm/internal/sqldialect"
)

type sqlStore struct {
	db         *sql.DB
	table      string
	dialect    sqldialect.Dialect
	prefix     string
	defaultTTL time.Duration
	getStmt    *sql.Stmt
	upsertStmt *sql.Stmt
	touchStmt  *sql.Stmt
	deleteStmt *sql.Stmt
	flushStmt  *sql.Stmt
}

func newSQLStore(cfg StoreConfig) (Store, error) {
	if cfg.SQLDriverName == "" || cfg.SQLDSN == "" {
		return nil, errors.New("sql driver requires driver name and dsn")
	}
	db, err := sql.Open(cfg.SQLDriverName, cfg.SQLDSN)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return newSQLStoreWithDB(db, cfg)
}

func newSQLStoreWithDB(db *sql.DB, cfg StoreConfig) (Store, error) {
	table := cfg.SQLTable
	if table == "" {
		table = defaultSQLTable
	}
	if err := sqldialect.ValidateTableName(table); err != nil {
		return nil, err
	}
	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	s := &sqlStore{
		db:         db,
		table:      table,
		dialect:    sqldialect.For(cfg.SQLDriverName),
		prefix:     cfg.Prefix,
		defaultTTL: ttl,
	}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	if err := s.prepareStatements(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *sqlStore) Driver() Driver { return DriverSQL }

func (s *sqlStore) ensureSchema() error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		k %s PRIMARY KEY,
		v %s NOT NULL,
		ea BIGINT NOT NULL
	)`, s.table, s.dialect.KeyType(), s.dialect.BlobType())
	_, err := s.db.Exec(stmt)
	return err
}

func (s *sqlStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v []byte
	var exp int64
	err := s.getStmt.QueryRowContext(ctx, s.cacheKey(key)).Scan(&v, &exp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if time.Now().UnixMilli() > exp {
		_, _ = s.deleteStmt.ExecContext(ctx, s.cacheKey(key))
		return nil, false, nil
	}
	return cloneBytes(v), true, nil
}

func (s *sqlStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	exp := time.Now().Add(ttl).UnixMilli()
	_, err := s.upsertStmt.ExecContext(ctx, s.cacheKey(key), value, exp)
	return err
}

// Touch only extends rows that have not logically expired yet.
func (s *sqlStore) Touch(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	now := time.Now()
	res, err := s.touchStmt.ExecContext(ctx, now.Add(ttl).UnixMilli(), s.cacheKey(key), now.UnixMilli())
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (s *sqlStore) Delete(ctx context.Context, key string) (bool, error) {
	_, live, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !live {
		return false, nil
	}
	res, err := s.deleteStmt.ExecContext(ctx, s.cacheKey(key))
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (s *sqlStore) DeleteMany(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	args := make([]any, 0, len(keys))
	for _, k := range keys {
		args = append(args, s.cacheKey(k))
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE k IN (%s)", s.table, s.dialect.Placeholders(1, len(keys))), args...)
	return err
}

func (s *sqlStore) Flush(ctx context.Context) error {
	_, err := s.flushStmt.ExecContext(ctx, s.scopePattern())
	return err
}

func (s *sqlStore) cacheKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

func (s *sqlStore) scopePattern() string {
	if s.prefix == "" {
		return "%"
	}
	escaped := strings.NewReplacer("%", "\\%", "_", "\\_").Replace(s.prefix)
	return escaped + ":%"
}

func (s *sqlStore) prepareStatements() error {
	ph := s.dialect.Placeholder
	var err error
	if s.getStmt, err = s.db.Prepare(fmt.Sprintf("SELECT v, ea FROM %s WHERE k = %s", s.table, ph(1))); err != nil {
		return err
	}
	if s.upsertStmt, err = s.db.Prepare(s.dialect.Upsert(s.table, "k", "v", "ea")); err != nil {
		return err
	}
	if s.touchStmt, err = s.db.Prepare(fmt.Sprintf("UPDATE %s SET ea = %s WHERE k = %s AND ea >= %s", s.table, ph(1), ph(2), ph(3))); err != nil {
		return err
	}
	if s.deleteStmt, err = s.db.Prepare(fmt.Sprintf("DELETE FROM %s WHERE k = %s", s.table, ph(1))); err != nil {
		return err
	}
	flush := fmt.Sprintf("DELETE FROM %s WHERE k LIKE %s", s.table, ph(1))
	if s.dialect == sqldialect.SQLite {
		flush += " ESCAPE '\\'"
	}
	if s.flushStmt, err = s.db.Prepare(flush); err != nil {
		return err
	}
	return nil
}
