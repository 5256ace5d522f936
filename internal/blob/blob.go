// Package blob re-exports the blob abstractions and selects a driver from
// configuration. Other packages depend on this package, never on the
// drivers under internal/infra/blob.
package blob

import (
	"context"
	"fmt"

	"github.com/caarlos0/env/v11"

	"habitatcore/internal/blob/core"
	fsstore "habitatcore/internal/infra/blob/fs"
	memorystore "habitatcore/internal/infra/blob/memory"
	s3store "habitatcore/internal/infra/blob/s3"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
	// S3Config configures the S3 driver.
	S3Config = s3store.Config
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	// ErrNotFound is returned when a key does not exist.
	ErrNotFound = core.ErrNotFound
	// ErrExists is returned by Put when the key already holds a blob.
	ErrExists = core.ErrExists
)

// Config selects and configures a blob driver.
//
//	HABITATCORE_BLOB_DRIVER: fs|s3|memory (default fs)
//	HABITATCORE_BLOB_FS_ROOT: directory root when driver=fs (default ./blobdata)
//	HABITATCORE_BLOB_S3_*: see S3Config
type Config struct {
	Driver string   `env:"HABITATCORE_BLOB_DRIVER" envDefault:"fs"`
	FSRoot string   `env:"HABITATCORE_BLOB_FS_ROOT" envDefault:"./blobdata"`
	S3     S3Config `envPrefix:"HABITATCORE_BLOB_S3_"`
}

// ConfigFromEnv parses Config from the process environment.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse blob env: %w", err)
	}
	return cfg, nil
}

// Open constructs the Store named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch Driver(cfg.Driver) {
	case DriverFilesystem, "":
		return fsstore.New(cfg.FSRoot)
	case DriverS3:
		return s3store.New(ctx, cfg.S3)
	case DriverMemory:
		return memorystore.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}

// NewMemory returns an in-memory Store suitable for tests.
func NewMemory() Store { return memorystore.New() }

// NewMockS3ForTests exposes the S3 driver backed by an in-process fake transport.
func NewMockS3ForTests() Store { return s3store.NewMockForTests() }
