// Package testutil provides an in-memory database/sql driver that stands in
// for the postgres state table: one payload per bucket.
package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync/atomic"
)

var stubSeq atomic.Uint64

// StubConn records the statements it receives and keeps the state table in
// memory. The Fail* switches make the matching step return an error.
type StubConn struct {
	Statements []string
	State      map[string][]byte
	Commits    int

	FailPing   bool
	FailCreate bool
	FailSelect bool
	FailBegin  bool
	FailUpsert bool
	FailCommit bool
}

// NewStubDB registers a fresh driver and returns a sql.DB bound to it.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{State: make(map[string][]byte)}
	name := fmt.Sprintf("agentbook-stub-%d", stubSeq.Add(1))
	sql.Register(name, stubDriver{conn: conn})
	db, err := sql.Open(name, "")
	if err != nil {
		panic(err)
	}
	return db, conn
}

type stubDriver struct{ conn *StubConn }

func (d stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

// Prepare implements driver.Conn; the store only uses the context fast paths.
func (c *StubConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("stub: prepared statements unsupported")
}

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(context.Context) error {
	if c.FailPing {
		return errors.New("stub: ping refused")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, errors.New("stub: begin refused")
	}
	return stubTx{conn: c}, nil
}

// ExecContext handles the table DDL and the bucket upsert.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.Statements = append(c.Statements, query)
	switch verb(query) {
	case "CREATE":
		if c.FailCreate {
			return nil, errors.New("stub: create refused")
		}
		return driver.RowsAffected(0), nil
	case "INSERT":
		if c.FailUpsert {
			return nil, errors.New("stub: upsert refused")
		}
		if len(args) != 2 {
			return nil, fmt.Errorf("stub: upsert wants 2 args, got %d", len(args))
		}
		bucket, ok := args[0].Value.(string)
		if !ok {
			return nil, fmt.Errorf("stub: bucket must be a string, got %T", args[0].Value)
		}
		payload, ok := args[1].Value.([]byte)
		if !ok {
			return nil, fmt.Errorf("stub: payload must be bytes, got %T", args[1].Value)
		}
		c.State[bucket] = bytes.Clone(payload)
		return driver.RowsAffected(1), nil
	}
	return nil, fmt.Errorf("stub: unsupported statement %q", query)
}

// QueryContext returns every state row ordered by bucket.
func (c *StubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	c.Statements = append(c.Statements, query)
	if verb(query) != "SELECT" {
		return nil, fmt.Errorf("stub: unsupported query %q", query)
	}
	if c.FailSelect {
		return nil, errors.New("stub: select refused")
	}
	rows := &stubRows{}
	for _, bucket := range slices.Sorted(maps.Keys(c.State)) {
		rows.rows = append(rows.rows, []driver.Value{bucket, bytes.Clone(c.State[bucket])})
	}
	return rows, nil
}

func verb(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

type stubTx struct{ conn *StubConn }

func (t stubTx) Commit() error {
	if t.conn.FailCommit {
		return errors.New("stub: commit refused")
	}
	t.conn.Commits++
	return nil
}

func (stubTx) Rollback() error { return nil }

type stubRows struct {
	rows [][]driver.Value
	next int
}

func (*stubRows) Columns() []string { return []string{"bucket", "payload"} }
func (*stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.next >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.next])
	r.next++
	return nil
}
