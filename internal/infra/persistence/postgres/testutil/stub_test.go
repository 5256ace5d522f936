package testutil

import (
	"context"
	"testing"
)

const upsert = `INSERT INTO reference(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload`

func TestReferenceDBUpsertAndSelect(t *testing.T) {
	ctx := context.Background()
	ref := NewReferenceDB()
	db := ref.DB()
	defer func() { _ = db.Close() }()

	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS reference (bucket TEXT PRIMARY KEY, payload JSONB NOT NULL)"); err != nil {
		t.Fatalf("ddl: %v", err)
	}
	for _, payload := range []string{`[1]`, `[2]`} {
		if _, err := db.ExecContext(ctx, upsert, "species", []byte(payload)); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	ref.Put("enclosures", []byte(`[]`))
	if ref.Len() != 2 {
		t.Fatalf("expected one row per bucket, got %d", ref.Len())
	}

	rows, err := db.QueryContext(ctx, "SELECT bucket, payload FROM reference")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	defer func() { _ = rows.Close() }()
	var got []string
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			t.Fatalf("scan: %v", err)
		}
		got = append(got, bucket+"="+string(payload))
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(got) != 2 || got[0] != "enclosures=[]" || got[1] != "species=[2]" {
		t.Fatalf("unexpected rows %v", got)
	}
	if len(ref.Statements) != 4 {
		t.Fatalf("expected statements to be recorded, got %v", ref.Statements)
	}
}

func TestReferenceDBTransactions(t *testing.T) {
	ctx := context.Background()
	ref := NewReferenceDB()
	db := ref.DB()
	defer func() { _ = db.Close() }()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := tx.ExecContext(ctx, upsert, "species", []byte(`[]`)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if ref.Len() != 0 {
		t.Fatalf("uncommitted upsert is visible")
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if ref.Len() != 0 {
		t.Fatalf("rolled back upsert is visible")
	}

	tx, err = db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := tx.ExecContext(ctx, upsert, "species", []byte(`[3]`)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if payload, ok := ref.Payload("species"); !ok || string(payload) != `[3]` {
		t.Fatalf("committed payload = %q, %v", payload, ok)
	}
}

func TestReferenceDBFailureSwitches(t *testing.T) {
	ctx := context.Background()
	ref := NewReferenceDB()
	db := ref.DB()
	defer func() { _ = db.Close() }()

	ref.FailPing = true
	if err := db.PingContext(ctx); err == nil {
		t.Fatalf("expected ping failure")
	}
	ref.FailPing = false

	ref.FailDDL = true
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS reference (bucket TEXT)"); err == nil {
		t.Fatalf("expected ddl failure")
	}

	ref.FailBucket = "species"
	if _, err := db.ExecContext(ctx, upsert, "species", []byte(`[]`)); err == nil {
		t.Fatalf("expected upsert failure")
	}
	if _, err := db.ExecContext(ctx, upsert, "enclosures", []byte(`[]`)); err != nil {
		t.Fatalf("other buckets still upsert: %v", err)
	}

	ref.FailSelect = true
	if _, err := db.QueryContext(ctx, "SELECT bucket, payload FROM reference"); err == nil {
		t.Fatalf("expected select failure")
	}

	ref.FailBegin = true
	if _, err := db.BeginTx(ctx, nil); err == nil {
		t.Fatalf("expected begin failure")
	}

	if _, err := db.ExecContext(ctx, "DELETE FROM reference"); err == nil {
		t.Fatalf("expected unsupported statement error")
	}
}
