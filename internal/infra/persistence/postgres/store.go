// Package postgres stores the reference catalog in a Postgres table of JSONB
// payloads keyed by bucket.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"habitatcore/pkg/domain"
)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/habitatcore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

var buckets = []string{"enclosures", "species"}

// Store reads and provisions the reference table.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open connects using dsn (falls back to defaultDSN), verifies the connection
// and ensures the reference table exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureReferenceTable(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func ensureReferenceTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS reference (
		bucket TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure reference table: %w", err)
	}
	return nil
}

// Load reads both reference buckets and validates the resulting catalog.
func (s *Store) Load(ctx context.Context) (domain.Catalog, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM reference`)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("select reference: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cat domain.Catalog
	targets := map[string]any{
		"enclosures": &cat.Enclosures,
		"species":    &cat.Species,
	}
	found := make(map[string]bool, len(targets))
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return domain.Catalog{}, fmt.Errorf("scan reference: %w", err)
		}
		target, ok := targets[bucket]
		if !ok || len(payload) == 0 {
			continue
		}
		if err := json.Unmarshal(payload, target); err != nil {
			return domain.Catalog{}, fmt.Errorf("decode %s: %w", bucket, err)
		}
		found[bucket] = true
	}
	if err := rows.Err(); err != nil {
		return domain.Catalog{}, fmt.Errorf("iterate reference: %w", err)
	}
	for _, bucket := range buckets {
		if !found[bucket] {
			return domain.Catalog{}, fmt.Errorf("reference bucket %q missing", bucket)
		}
	}
	if err := cat.Validate(); err != nil {
		return domain.Catalog{}, fmt.Errorf("invalid reference data: %w", err)
	}
	return cat, nil
}

// Publish replaces both reference buckets with cat in one transaction.
func (s *Store) Publish(ctx context.Context, cat domain.Catalog) error {
	if err := cat.Validate(); err != nil {
		return fmt.Errorf("refuse to publish invalid catalog: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range buckets {
		var data []byte
		switch bucket {
		case "enclosures":
			data, err = json.Marshal(cat.Enclosures)
		case "species":
			data, err = json.Marshal(cat.Species)
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO reference(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload`, bucket, data); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
