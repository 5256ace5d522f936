// Package testutil provides an in-memory stand-in for the Postgres reference
// table. It speaks database/sql and understands exactly the statements the
// postgres store issues: the reference DDL, the bucket upsert and the
// bucket/payload select.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
)

// ReferenceDB holds reference(bucket, payload) rows. Upserts issued inside a
// transaction become visible on commit. The Fail* switches and RowsErr inject
// failures into the matching statement.
type ReferenceDB struct {
	mu      sync.Mutex
	payload map[string][]byte

	// Statements records every statement executed or queried, in order.
	Statements []string

	FailPing   bool
	FailDDL    bool
	FailBegin  bool
	FailSelect bool
	FailCommit bool
	// FailBucket makes the upsert of that bucket fail.
	FailBucket string
	// RowsErr is returned while iterating a select.
	RowsErr error
}

// NewReferenceDB returns an empty reference table.
func NewReferenceDB() *ReferenceDB {
	return &ReferenceDB{payload: make(map[string][]byte)}
}

// DB opens a *sql.DB backed by the table.
func (r *ReferenceDB) DB() *sql.DB {
	return sql.OpenDB(connector{ref: r})
}

// Put stores payload under bucket outside of any transaction.
func (r *ReferenceDB) Put(bucket string, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payload[bucket] = slices.Clone(payload)
}

// Payload returns the committed payload of bucket.
func (r *ReferenceDB) Payload(bucket string) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payload[bucket]
	return slices.Clone(p), ok
}

// Len returns the number of committed rows.
func (r *ReferenceDB) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payload)
}

func (r *ReferenceDB) record(stmt string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Statements = append(r.Statements, stmt)
}

type statement int

const (
	stmtUnknown statement = iota
	stmtDDL
	stmtUpsert
	stmtSelect
)

func classify(query string) statement {
	q := strings.ToUpper(strings.Join(strings.Fields(query), " "))
	switch {
	case strings.HasPrefix(q, "CREATE TABLE IF NOT EXISTS REFERENCE"):
		return stmtDDL
	case strings.HasPrefix(q, "INSERT INTO REFERENCE(BUCKET,PAYLOAD)"):
		return stmtUpsert
	case strings.HasPrefix(q, "SELECT BUCKET, PAYLOAD FROM REFERENCE"):
		return stmtSelect
	}
	return stmtUnknown
}

type connector struct{ ref *ReferenceDB }

func (c connector) Connect(context.Context) (driver.Conn, error) {
	return &conn{ref: c.ref}, nil
}

func (c connector) Driver() driver.Driver { return referenceDriver{ref: c.ref} }

type referenceDriver struct{ ref *ReferenceDB }

func (d referenceDriver) Open(string) (driver.Conn, error) { return &conn{ref: d.ref}, nil }

// conn stages upserts in pending while a transaction is open.
type conn struct {
	ref     *ReferenceDB
	pending map[string][]byte
}

var (
	_ driver.ExecerContext  = (*conn)(nil)
	_ driver.QueryerContext = (*conn)(nil)
	_ driver.ConnBeginTx    = (*conn)(nil)
	_ driver.Pinger         = (*conn)(nil)
)

func (c *conn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("testutil: prepared statements are not supported")
}

func (c *conn) Close() error { return nil }

func (c *conn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *conn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.ref.FailBegin {
		return nil, errors.New("testutil: begin failed")
	}
	c.pending = make(map[string][]byte)
	return tx{c: c}, nil
}

func (c *conn) Ping(context.Context) error {
	if c.ref.FailPing {
		return errors.New("testutil: ping failed")
	}
	return nil
}

func (c *conn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.ref.record(query)
	switch classify(query) {
	case stmtDDL:
		if c.ref.FailDDL {
			return nil, errors.New("testutil: ddl failed")
		}
		return driver.RowsAffected(0), nil
	case stmtUpsert:
		bucket, payload, err := upsertArgs(args)
		if err != nil {
			return nil, err
		}
		if bucket == c.ref.FailBucket {
			return nil, fmt.Errorf("testutil: upsert %s failed", bucket)
		}
		if c.pending != nil {
			c.pending[bucket] = payload
		} else {
			c.ref.Put(bucket, payload)
		}
		return driver.RowsAffected(1), nil
	}
	return nil, fmt.Errorf("testutil: unsupported exec %q", query)
}

func upsertArgs(args []driver.NamedValue) (string, []byte, error) {
	if len(args) != 2 {
		return "", nil, fmt.Errorf("testutil: upsert wants 2 args, got %d", len(args))
	}
	bucket, ok := args[0].Value.(string)
	if !ok {
		return "", nil, fmt.Errorf("testutil: bucket must be a string, got %T", args[0].Value)
	}
	switch v := args[1].Value.(type) {
	case []byte:
		return bucket, slices.Clone(v), nil
	case string:
		return bucket, []byte(v), nil
	}
	return "", nil, fmt.Errorf("testutil: payload must be bytes, got %T", args[1].Value)
}

func (c *conn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	c.ref.record(query)
	if classify(query) != stmtSelect {
		return nil, fmt.Errorf("testutil: unsupported query %q", query)
	}
	if c.ref.FailSelect {
		return nil, errors.New("testutil: select failed")
	}
	c.ref.mu.Lock()
	defer c.ref.mu.Unlock()
	buckets := make([]string, 0, len(c.ref.payload))
	for bucket := range c.ref.payload {
		buckets = append(buckets, bucket)
	}
	slices.Sort(buckets)
	out := &rows{err: c.ref.RowsErr}
	for _, bucket := range buckets {
		out.data = append(out.data, [2]driver.Value{bucket, slices.Clone(c.ref.payload[bucket])})
	}
	return out, nil
}

type tx struct{ c *conn }

func (t tx) Commit() error {
	pending := t.c.pending
	t.c.pending = nil
	if t.c.ref.FailCommit {
		return errors.New("testutil: commit failed")
	}
	for bucket, payload := range pending {
		t.c.ref.Put(bucket, payload)
	}
	return nil
}

func (t tx) Rollback() error {
	t.c.pending = nil
	return nil
}

type rows struct {
	data [][2]driver.Value
	pos  int
	err  error
}

func (r *rows) Columns() []string { return []string{"bucket", "payload"} }

func (r *rows) Close() error { return nil }

func (r *rows) Next(dest []driver.Value) error {
	if r.err != nil {
		return r.err
	}
	if r.pos >= len(r.data) {
		return io.EOF
	}
	dest[0], dest[1] = r.data[r.pos][0], r.data[r.pos][1]
	r.pos++
	return nil
}
