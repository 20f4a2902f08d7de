package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/goforj/odm/docstore/query"
	"github.com/goforj/odm/internal/sqldialect"
)

// SQLDatabase stores each collection as a table of JSON bodies. Filters are
// evaluated in process, except an exact "_id" lookup which is pushed down.
type SQLDatabase struct {
	db          *sql.DB
	dialect     sqldialect.Dialect
	tablePrefix string
	ownsDB      bool

	mu          sync.Mutex
	collections map[string]*SQLCollection
}

// SQLOption customises an SQLDatabase.
type SQLOption func(*SQLDatabase)

// WithTablePrefix prefixes every collection table name.
func WithTablePrefix(prefix string) SQLOption {
	return func(d *SQLDatabase) { d.tablePrefix = prefix }
}

// OpenSQL opens driverName/dsn ("sqlite", "pgx" or "mysql") and pings it.
func OpenSQL(ctx context.Context, driverName, dsn string, opts ...SQLOption) (*SQLDatabase, error) {
	if driverName == "" || dsn == "" {
		return nil, errors.New("docstore: sql requires driver name and dsn")
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	d := NewSQLDatabase(db, driverName, opts...)
	d.ownsDB = true
	return d, nil
}

// NewSQLDatabase wraps an existing handle. Close leaves the handle open.
func NewSQLDatabase(db *sql.DB, driverName string, opts ...SQLOption) *SQLDatabase {
	d := &SQLDatabase{
		db:          db,
		dialect:     sqldialect.For(driverName),
		collections: map[string]*SQLCollection{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Collection returns the named collection, creating its table on first use.
func (d *SQLDatabase) Collection(ctx context.Context, name string) (Collection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.collections[name]; ok {
		return c, nil
	}
	table := d.tablePrefix + name
	if err := sqldialect.ValidateTableName(table); err != nil {
		return nil, fmt.Errorf("docstore: collection %q: %w", name, err)
	}
	c := &SQLCollection{name: name, table: table, db: d.db, dialect: d.dialect}
	if err := c.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("docstore: create collection %q: %w", name, err)
	}
	d.collections[name] = c
	return c, nil
}

func (d *SQLDatabase) Close() error {
	if !d.ownsDB {
		return nil
	}
	return d.db.Close()
}

// SQLCollection is a Collection backed by one table.
type SQLCollection struct {
	name    string
	table   string
	db      *sql.DB
	dialect sqldialect.Dialect
}

var sqlSeq atomic.Int64

// nextSeq keeps insertion order stable within and across processes.
func nextSeq() int64 {
	now := time.Now().UnixNano()
	for {
		last := sqlSeq.Load()
		if now <= last {
			now = last + 1
		}
		if sqlSeq.CompareAndSwap(last, now) {
			return now
		}
	}
}

func (c *SQLCollection) Name() string { return c.name }

func (c *SQLCollection) ensureSchema(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id %s PRIMARY KEY,
		body %s NOT NULL,
		seq BIGINT NOT NULL
	)`, c.table, c.dialect.KeyType(), c.dialect.BlobType()))
	return err
}

func (c *SQLCollection) Insert(ctx context.Context, doc Document) (string, error) {
	id := uuid.NewString()
	body, err := encodeWithID(doc, id)
	if err != nil {
		return "", err
	}
	ph := c.dialect.Placeholders(1, 3)
	if _, err := c.db.ExecContext(ctx, fmt.Sprintf("INSERT INTO %s (id, body, seq) VALUES (%s)", c.table, ph), id, body, nextSeq()); err != nil {
		return "", err
	}
	return id, nil
}

func (c *SQLCollection) UpdateByID(ctx context.Context, id string, doc Document) error {
	if id == "" {
		return errors.New("docstore: update requires an id")
	}
	body, err := encodeWithID(doc, id)
	if err != nil {
		return err
	}
	ph := c.dialect.Placeholder
	for attempt := 0; attempt < 2; attempt++ {
		res, err := c.db.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET body = %s WHERE id = %s", c.table, ph(1), ph(2)), body, id)
		if err != nil {
			return err
		}
		if rows, err := res.RowsAffected(); err == nil && rows > 0 {
			return nil
		}
		_, err = c.db.ExecContext(ctx, fmt.Sprintf("INSERT INTO %s (id, body, seq) VALUES (%s)", c.table, c.dialect.Placeholders(1, 3)), id, body, nextSeq())
		if err == nil {
			return nil
		}
		if !c.dialect.IsDuplicate(err) {
			return err
		}
		// mysql reports zero affected rows for an identical body; the row exists.
		if c.dialect == sqldialect.MySQL {
			return nil
		}
	}
	return fmt.Errorf("docstore: update %q lost a race with a concurrent insert", id)
}

func (c *SQLCollection) DeleteByID(ctx context.Context, id string) (bool, error) {
	res, err := c.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = %s", c.table, c.dialect.Placeholder(1)), id)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (c *SQLCollection) Find(ctx context.Context, filter Filter) (Cursor, error) {
	rows, err := c.query(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &rowsCursor{rows: rows, filter: filter}, nil
}

func (c *SQLCollection) FindOne(ctx context.Context, filter Filter) (Document, bool, error) {
	cur, err := c.Find(ctx, filter)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = cur.Close(ctx) }()
	if cur.Next(ctx) {
		return cur.Current(), true, nil
	}
	return nil, false, cur.Err()
}

func (c *SQLCollection) Aggregate(ctx context.Context, pipeline Pipeline) (Cursor, error) {
	cur, err := c.Find(ctx, nil)
	if err != nil {
		return nil, err
	}
	docs, err := All(ctx, cur)
	if err != nil {
		return nil, err
	}
	return aggregate(docs, pipeline)
}

func (c *SQLCollection) query(ctx context.Context, filter Filter) (*sql.Rows, error) {
	if id, ok := idFromFilter(filter); ok {
		return c.db.QueryContext(ctx, fmt.Sprintf("SELECT body FROM %s WHERE id = %s", c.table, c.dialect.Placeholder(1)), id)
	}
	return c.db.QueryContext(ctx, fmt.Sprintf("SELECT body FROM %s ORDER BY seq, id", c.table))
}

func encodeWithID(doc Document, id string) ([]byte, error) {
	stored, err := withID(doc, id)
	if err != nil {
		return nil, err
	}
	return marshalDocument(stored)
}

// rowsCursor streams table rows, skipping those the filter rejects.
type rowsCursor struct {
	rows   *sql.Rows
	filter Filter
	cur    Document
	err    error
	done   bool
}

func (c *rowsCursor) Next(ctx context.Context) bool {
	if c.done {
		return false
	}
	for c.rows.Next() {
		if err := ctx.Err(); err != nil {
			return c.fail(err)
		}
		var body []byte
		if err := c.rows.Scan(&body); err != nil {
			return c.fail(err)
		}
		doc, err := Decode(body)
		if err != nil {
			return c.fail(err)
		}
		ok, err := query.Match(doc, c.filter)
		if err != nil {
			return c.fail(err)
		}
		if ok {
			c.cur = doc
			return true
		}
	}
	c.err = c.rows.Err()
	c.finish()
	return false
}

func (c *rowsCursor) fail(err error) bool {
	c.err = err
	c.finish()
	return false
}

func (c *rowsCursor) finish() {
	c.done = true
	c.cur = nil
	_ = c.rows.Close()
}

func (c *rowsCursor) Current() Document { return c.cur }

func (c *rowsCursor) Err() error { return c.err }

func (c *rowsCursor) Close(context.Context) error {
	if c.done {
		return nil
	}
	c.done = true
	c.cur = nil
	return c.rows.Close()
}
