package testutil

import (
	"context"
	"database/sql/driver"
	"testing"
)

const upsert = "INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload"

func TestStubDBUpsertsAndQueriesRows(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()

	for _, row := range []struct{ bucket, payload string }{
		{"policies", `[]`},
		{"contacts", `[]`},
		{"policies", `[{"id":"abc123"}]`},
	} {
		args := []driver.NamedValue{{Ordinal: 1, Value: row.bucket}, {Ordinal: 2, Value: []byte(row.payload)}}
		if _, err := conn.ExecContext(ctx, upsert, args); err != nil {
			t.Fatalf("upsert %s: %v", row.bucket, err)
		}
	}
	if len(conn.State) != 2 {
		t.Fatalf("expected one row per bucket, got %v", conn.State)
	}

	rows, err := conn.QueryContext(ctx, "SELECT bucket, payload FROM state", nil)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	defer func() { _ = rows.Close() }()
	dest := make([]driver.Value, 2)
	var got []string
	for rows.Next(dest) == nil {
		got = append(got, dest[0].(string)+"="+string(dest[1].([]byte)))
	}
	if len(got) != 2 || got[0] != "contacts=[]" || got[1] != `policies=[{"id":"abc123"}]` {
		t.Fatalf("unexpected rows %v", got)
	}
}

func TestStubDBRejectsUnknownStatements(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()
	if _, err := conn.ExecContext(ctx, "DELETE FROM state", nil); err == nil {
		t.Fatalf("expected unsupported statement error")
	}
	if _, err := conn.ExecContext(ctx, upsert, []driver.NamedValue{{Value: "contacts"}}); err == nil {
		t.Fatalf("expected arity error")
	}
	if _, err := conn.QueryContext(ctx, "UPDATE state SET payload = ''", nil); err == nil {
		t.Fatalf("expected unsupported query error")
	}
}

func TestStubDBFailureSwitches(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()
	conn.FailPing = true
	if err := conn.Ping(ctx); err == nil {
		t.Fatalf("expected ping failure")
	}
	conn.FailCreate = true
	if _, err := conn.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS state (bucket TEXT)", nil); err == nil {
		t.Fatalf("expected create failure")
	}
	conn.FailBegin = true
	if _, err := conn.BeginTx(ctx, driver.TxOptions{}); err == nil {
		t.Fatalf("expected begin failure")
	}
	conn.FailSelect = true
	if _, err := conn.QueryContext(ctx, "SELECT bucket, payload FROM state", nil); err == nil {
		t.Fatalf("expected select failure")
	}
	conn.FailUpsert = true
	if _, err := conn.ExecContext(ctx, upsert, []driver.NamedValue{{Value: "contacts"}, {Value: []byte("[]")}}); err == nil {
		t.Fatalf("expected upsert failure")
	}
}
