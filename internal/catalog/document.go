package catalog

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"habitatcore/pkg/domain"
)

// ContentType is the media type recorded for catalog documents in blob storage.
const ContentType = "application/yaml"

// Document is the on-disk shape of a reference catalog.
//
// Example:
//
//	enclosures:
//	  - id: 1
//	    biome: savana
//	    capacity: 10
//	    occupied: 3
//	    residents: [MACACO]
//	species:
//	  - name: MACACO
//	    size: 1
//	    biomes: [savana, floresta]
//	    gregarious: true
type Document struct {
	Enclosures []domain.Enclosure `yaml:"enclosures"`
	Species    []domain.Species   `yaml:"species"`
}

// LoadFile reads and validates a catalog document from disk.
func LoadFile(path string) (domain.Catalog, error) {
	f, err := os.Open(path) // #nosec G304 -- operator-supplied catalog path
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("catalog: open %q: %w", path, err)
	}
	defer f.Close()

	cat, err := Decode(f)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("catalog: parse %q: %w", path, err)
	}
	return cat, nil
}

// Decode parses a YAML catalog document and validates the resulting tables.
// Unknown keys are rejected.
func Decode(r io.Reader) (domain.Catalog, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return domain.Catalog{}, fmt.Errorf("catalog: decode yaml: %w", err)
	}
	cat := domain.Catalog{Enclosures: doc.Enclosures, Species: doc.Species}
	if err := cat.Validate(); err != nil {
		return domain.Catalog{}, fmt.Errorf("catalog: invalid document: %w", err)
	}
	return cat, nil
}

// Encode renders cat as a YAML document.
func Encode(w io.Writer, cat domain.Catalog) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(Document{Enclosures: cat.Enclosures, Species: cat.Species}); err != nil {
		return fmt.Errorf("catalog: encode yaml: %w", err)
	}
	return enc.Close()
}

// Marshal returns the YAML encoding of cat.
func Marshal(cat domain.Catalog) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, cat); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
