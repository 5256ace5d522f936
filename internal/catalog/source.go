package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"habitatcore/internal/blob"
	"habitatcore/pkg/domain"
)

// DefaultKey is the blob key of the reference catalog document.
const DefaultKey = "reference/catalog.yaml"

// Source loads the reference tables once, at start-up.
type Source interface {
	Load(ctx context.Context) (domain.Catalog, error)
}

// Static serves a fixed catalog.
type Static struct {
	Catalog domain.Catalog
}

// Builtin returns a Source serving the reference dataset.
func Builtin() Static {
	return Static{Catalog: Reference()}
}

// Load implements Source. The returned catalog is a copy.
func (s Static) Load(context.Context) (domain.Catalog, error) {
	if err := s.Catalog.Validate(); err != nil {
		return domain.Catalog{}, fmt.Errorf("catalog: invalid static catalog: %w", err)
	}
	return s.Catalog.Clone(), nil
}

// BlobSource reads a YAML catalog document from a blob store.
type BlobSource struct {
	Store blob.Store
	Key   string
}

// NewBlobSource returns a BlobSource reading key, or DefaultKey when key is empty.
func NewBlobSource(store blob.Store, key string) *BlobSource {
	if key == "" {
		key = DefaultKey
	}
	return &BlobSource{Store: store, Key: key}
}

// Load implements Source.
func (s *BlobSource) Load(ctx context.Context) (domain.Catalog, error) {
	_, rc, err := s.Store.Get(ctx, s.Key)
	if errors.Is(err, blob.ErrNotFound) {
		dir := path.Dir(s.Key)
		if dir == "." {
			dir = ""
		} else {
			dir += "/"
		}
		if keys, lerr := Revisions(ctx, s.Store, dir); lerr == nil && len(keys) > 0 {
			return domain.Catalog{}, fmt.Errorf("catalog: fetch %s from %s: %w (published: %s)",
				s.Key, s.Store.Driver(), err, strings.Join(keys, ", "))
		}
	}
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("catalog: fetch %s from %s: %w", s.Key, s.Store.Driver(), err)
	}
	defer rc.Close()
	cat, err := Decode(rc)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("catalog: %s: %w", s.Key, err)
	}
	return cat, nil
}

// Publish writes cat as a YAML document under key. Keys are write-once; a new
// revision must use a new key.
func Publish(ctx context.Context, store blob.Store, key string, cat domain.Catalog) (blob.Info, error) {
	if err := cat.Validate(); err != nil {
		return blob.Info{}, fmt.Errorf("catalog: refuse to publish invalid catalog: %w", err)
	}
	if key == "" {
		key = DefaultKey
	}
	payload, err := Marshal(cat)
	if err != nil {
		return blob.Info{}, err
	}
	info, err := store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{ContentType: ContentType})
	if err != nil {
		return blob.Info{}, fmt.Errorf("catalog: publish %s: %w", key, err)
	}
	return info, nil
}

// Revisions returns the keys published under prefix, ordered by key.
func Revisions(ctx context.Context, store blob.Store, prefix string) ([]string, error) {
	infos, err := store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("catalog: list %s: %w", prefix, err)
	}
	keys := make([]string, 0, len(infos))
	for _, info := range infos {
		keys = append(keys, info.Key)
	}
	return keys, nil
}
