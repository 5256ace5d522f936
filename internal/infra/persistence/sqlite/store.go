// Package sqlite stores the reference catalog in a single SQLite table as
// JSON blobs keyed by bucket.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"habitatcore/pkg/domain"
)

const (
	defaultPath = "habitatcore.db"

	bucketEnclosures = "enclosures"
	bucketSpecies    = "species"
)

var buckets = []string{bucketEnclosures, bucketSpecies}

// Store reads and provisions the reference table.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// Open opens (creating when needed) the database at path and ensures the
// reference table exists.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS reference (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create reference table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Load reads both reference buckets and validates the resulting catalog.
func (s *Store) Load(ctx context.Context) (domain.Catalog, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM reference`)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("select reference: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cat domain.Catalog
	found := make(map[string]bool, len(buckets))
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return domain.Catalog{}, fmt.Errorf("scan: %w", err)
		}
		switch bucket {
		case bucketEnclosures:
			if err := json.Unmarshal(payload, &cat.Enclosures); err != nil {
				return domain.Catalog{}, fmt.Errorf("decode enclosures: %w", err)
			}
		case bucketSpecies:
			if err := json.Unmarshal(payload, &cat.Species); err != nil {
				return domain.Catalog{}, fmt.Errorf("decode species: %w", err)
			}
		default:
			continue
		}
		found[bucket] = true
	}
	if err := rows.Err(); err != nil {
		return domain.Catalog{}, fmt.Errorf("iterate reference: %w", err)
	}
	for _, bucket := range buckets {
		if !found[bucket] {
			return domain.Catalog{}, fmt.Errorf("reference bucket %q missing in %s", bucket, s.path)
		}
	}
	if err := cat.Validate(); err != nil {
		return domain.Catalog{}, fmt.Errorf("invalid reference data in %s: %w", s.path, err)
	}
	return cat, nil
}

// Publish replaces both reference buckets with cat in one transaction.
func (s *Store) Publish(ctx context.Context, cat domain.Catalog) (retErr error) {
	if err := cat.Validate(); err != nil {
		return fmt.Errorf("refuse to publish invalid catalog: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range buckets {
		var data []byte
		switch bucket {
		case bucketEnclosures:
			data, err = json.Marshal(cat.Enclosures)
		case bucketSpecies:
			data, err = json.Marshal(cat.Species)
		}
		if err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, `INSERT INTO reference(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket, data); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	return tx.Commit()
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
