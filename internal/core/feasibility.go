package core

import (
	"fmt"
	"slices"
	"strings"
)

// Viable is an enclosure that can receive the requested group. FreeAfter is
// the capacity left once the group and any mixed-occupancy buffer are
// accounted for.
type Viable struct {
	EnclosureID int
	FreeAfter   int
	Capacity    int
	ExactBiome  bool
}

// Description renders the externally visible line for the enclosure.
func (v Viable) Description() string {
	return fmt.Sprintf("Recinto %d (espaço livre: %d total: %d)", v.EnclosureID, v.FreeAfter, v.Capacity)
}

// Feasibility is the ordered set of admissible enclosures.
type Feasibility struct {
	Viable []Viable
}

// Descriptions returns the description of each viable enclosure in order.
func (f Feasibility) Descriptions() []string {
	out := make([]string, 0, len(f.Viable))
	for _, v := range f.Viable {
		out = append(out, v.Description())
	}
	return out
}

// sortViable puts exact-biome matches first and orders each group by the
// byte-wise comparison of the descriptions, so "Recinto 10" precedes
// "Recinto 2".
func sortViable(vs []Viable) {
	slices.SortStableFunc(vs, func(a, b Viable) int {
		if a.ExactBiome != b.ExactBiome {
			if a.ExactBiome {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Description(), b.Description())
	})
}
