// Package domain defines the habitat reference entities, value types, and
// rule evaluation primitives used by habitatcore.
package domain

import (
	"errors"
	"fmt"
	"slices"
)

// EntityType identifies the type of record a violation refers to.
type EntityType string

// Supported entity type identifiers.
const (
	// EntityEnclosure identifies an enclosure record.
	EntityEnclosure EntityType = "enclosure"
	// EntitySpecies identifies a species catalog entry.
	EntitySpecies EntityType = "species"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine admissibility and logging.
const (
	// SeverityBlock excludes the enclosure from the viable set.
	SeverityBlock Severity = "block"
	// SeverityWarn is reported but keeps the enclosure admissible.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Enclosure is a habitat unit with a fixed capacity, current occupancy and
// the set of species already living in it.
type Enclosure struct {
	ID        int      `json:"id" yaml:"id"`
	Biome     string   `json:"biome" yaml:"biome"`
	Capacity  int      `json:"capacity" yaml:"capacity"`
	Occupied  int      `json:"occupied" yaml:"occupied"`
	Residents []string `json:"residents,omitempty" yaml:"residents,omitempty"`
}

// FreeSpace returns the capacity units not yet occupied.
func (e Enclosure) FreeSpace() int {
	return e.Capacity - e.Occupied
}

// Empty reports whether nothing occupies the enclosure.
func (e Enclosure) Empty() bool {
	return e.Occupied == 0
}

// Houses reports whether species is among the residents.
func (e Enclosure) Houses(species string) bool {
	return slices.Contains(e.Residents, species)
}

// Clone returns a deep copy so callers cannot alias the residents slice.
func (e Enclosure) Clone() Enclosure {
	e.Residents = slices.Clone(e.Residents)
	return e
}

// Species is a catalog entry describing the space an individual consumes,
// the biomes it tolerates, and the capability tags that drive placement rules.
type Species struct {
	Name string `json:"name" yaml:"name"`
	// Size is the number of capacity units consumed per individual.
	Size int `json:"size" yaml:"size"`
	// Biomes is ordered; the first entry is the primary biome.
	Biomes []string `json:"biomes" yaml:"biomes"`
	// Predator species may not share an enclosure with a newcomer species.
	Predator bool `json:"predator,omitempty" yaml:"predator,omitempty"`
	// StrictBiome species only live where the biome equals the primary biome.
	StrictBiome bool `json:"strict_biome,omitempty" yaml:"strict_biome,omitempty"`
	// Gregarious species may not be placed alone in an empty enclosure.
	Gregarious bool `json:"gregarious,omitempty" yaml:"gregarious,omitempty"`
	// SharedBiome, when set, is the only biome where the species may join
	// an enclosure housing other species.
	SharedBiome string `json:"shared_biome,omitempty" yaml:"shared_biome,omitempty"`
}

// PrimaryBiome returns the first compatible biome, or "" when none is listed.
func (s Species) PrimaryBiome() string {
	if len(s.Biomes) == 0 {
		return ""
	}
	return s.Biomes[0]
}

// Tolerates reports whether biome is listed among the compatible biomes.
func (s Species) Tolerates(biome string) bool {
	return slices.Contains(s.Biomes, biome)
}

// Clone returns a deep copy of the entry.
func (s Species) Clone() Species {
	s.Biomes = slices.Clone(s.Biomes)
	return s
}

// Catalog bundles the two reference tables consulted by the evaluator. A
// catalog is treated as immutable once handed to an evaluator.
type Catalog struct {
	Enclosures []Enclosure `json:"enclosures" yaml:"enclosures"`
	Species    []Species   `json:"species" yaml:"species"`
}

// Clone returns a deep copy of the catalog.
func (c Catalog) Clone() Catalog {
	out := Catalog{
		Enclosures: make([]Enclosure, 0, len(c.Enclosures)),
		Species:    make([]Species, 0, len(c.Species)),
	}
	for _, e := range c.Enclosures {
		out.Enclosures = append(out.Enclosures, e.Clone())
	}
	for _, s := range c.Species {
		out.Species = append(out.Species, s.Clone())
	}
	return out
}

// FindSpecies returns the catalog entry keyed by name.
func (c Catalog) FindSpecies(name string) (Species, bool) {
	for _, s := range c.Species {
		if s.Name == name {
			return s.Clone(), true
		}
	}
	return Species{}, false
}

// FindEnclosure returns the enclosure with the supplied identifier.
func (c Catalog) FindEnclosure(id int) (Enclosure, bool) {
	for _, e := range c.Enclosures {
		if e.ID == id {
			return e.Clone(), true
		}
	}
	return Enclosure{}, false
}

// SpeciesNames lists catalog keys in catalog order.
func (c Catalog) SpeciesNames() []string {
	names := make([]string, 0, len(c.Species))
	for _, s := range c.Species {
		names = append(names, s.Name)
	}
	return names
}

// Validate checks the structural invariants of both tables and returns every
// problem found joined into a single error.
func (c Catalog) Validate() error {
	var errs []error
	ids := make(map[int]struct{}, len(c.Enclosures))
	for i, e := range c.Enclosures {
		if e.ID <= 0 {
			errs = append(errs, fmt.Errorf("enclosure[%d]: id must be positive, got %d", i, e.ID))
		}
		if _, dup := ids[e.ID]; dup {
			errs = append(errs, fmt.Errorf("enclosure[%d]: duplicate id %d", i, e.ID))
		}
		ids[e.ID] = struct{}{}
		if e.Biome == "" {
			errs = append(errs, fmt.Errorf("enclosure %d: biome required", e.ID))
		}
		if e.Capacity <= 0 {
			errs = append(errs, fmt.Errorf("enclosure %d: capacity must be positive, got %d", e.ID, e.Capacity))
		}
		if e.Occupied < 0 || e.Occupied > e.Capacity {
			errs = append(errs, fmt.Errorf("enclosure %d: occupied %d outside [0, %d]", e.ID, e.Occupied, e.Capacity))
		}
		for _, r := range e.Residents {
			if r == "" {
				errs = append(errs, fmt.Errorf("enclosure %d: empty resident name", e.ID))
			}
		}
	}
	names := make(map[string]struct{}, len(c.Species))
	for i, s := range c.Species {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("species[%d]: name required", i))
		}
		if _, dup := names[s.Name]; dup {
			errs = append(errs, fmt.Errorf("species[%d]: duplicate name %q", i, s.Name))
		}
		names[s.Name] = struct{}{}
		if s.Size <= 0 {
			errs = append(errs, fmt.Errorf("species %s: size must be positive, got %d", s.Name, s.Size))
		}
		if len(s.Biomes) == 0 {
			errs = append(errs, fmt.Errorf("species %s: at least one biome required", s.Name))
		}
		if slices.Contains(s.Biomes, "") {
			errs = append(errs, fmt.Errorf("species %s: empty biome label", s.Name))
		}
	}
	return errors.Join(errs...)
}

// Placement captures the figures derived when a quantity of a species is
// tentatively placed into one enclosure.
type Placement struct {
	Enclosure Enclosure
	Species   Species
	Quantity  int
	// FreeSpace is the enclosure capacity left before placement.
	FreeSpace int
	// BaseSpace is quantity times the species size, saturated when the
	// product does not fit in an int.
	BaseSpace int
	// RequiredSpace is BaseSpace plus the mixed-occupancy buffer.
	RequiredSpace int
	// Mixed is set when the enclosure has residents and none of them is the
	// requested species.
	Mixed bool
	// ExactBiome is set when the enclosure biome equals the primary biome.
	ExactBiome bool
}

// FreeAfter returns the capacity that remains once the placement happens.
// The subtraction is done in steps so a saturated RequiredSpace cannot wrap.
func (p Placement) FreeAfter() int {
	return p.Enclosure.Capacity - p.Enclosure.Occupied - p.RequiredSpace
}

// Violation describes a single rule finding against an enclosure.
type Violation struct {
	Rule        string
	Severity    Severity
	Message     string
	Entity      EntityType
	EnclosureID int
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Blocking returns only the blocking violations.
func (r Result) Blocking() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			out = append(out, v)
		}
	}
	return out
}
