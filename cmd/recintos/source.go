package main

import (
	"context"
	"errors"
	"fmt"

	"habitatcore/internal/blob"
	"habitatcore/internal/catalog"
	"habitatcore/internal/infra/persistence/postgres"
	"habitatcore/internal/infra/persistence/sqlite"
	"habitatcore/pkg/domain"
)

// backend is an opened catalog source together with its provisioning hook.
type backend struct {
	source  catalog.Source
	publish func(context.Context, domain.Catalog) error
	close   func() error
}

func openBackend(ctx context.Context, cfg config) (backend, error) {
	noop := func() error { return nil }
	switch cfg.Source {
	case sourceBuiltin, "":
		return backend{source: catalog.Builtin(), close: noop}, nil
	case sourceBlob:
		blobCfg, err := blob.ConfigFromEnv()
		if err != nil {
			return backend{}, err
		}
		store, err := blob.Open(ctx, blobCfg)
		if err != nil {
			return backend{}, fmt.Errorf("open blob store: %w", err)
		}
		return backend{
			source: catalog.NewBlobSource(store, cfg.Key),
			publish: func(ctx context.Context, cat domain.Catalog) error {
				_, err := catalog.Publish(ctx, store, cfg.Key, cat)
				return err
			},
			close: noop,
		}, nil
	case sourceSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return backend{}, err
		}
		return backend{source: store, publish: store.Publish, close: store.Close}, nil
	case sourcePostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return backend{}, err
		}
		return backend{source: store, publish: store.Publish, close: store.Close}, nil
	default:
		return backend{}, fmt.Errorf("unknown catalog source %q", cfg.Source)
	}
}

// loadCatalog reads the catalog from path when set, otherwise from the
// configured source.
func loadCatalog(ctx context.Context, cfg config, path string) (cat domain.Catalog, err error) {
	if path != "" {
		return catalog.LoadFile(path)
	}
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return domain.Catalog{}, err
	}
	defer func() { err = errors.Join(err, b.close()) }()
	return b.source.Load(ctx)
}

func seed(ctx context.Context, cfg config) (err error) {
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, b.close()) }()
	if b.publish == nil {
		return fmt.Errorf("catalog source %q cannot be seeded", cfg.Source)
	}
	return b.publish(ctx, catalog.Reference())
}
