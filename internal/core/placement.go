package core

import (
	"math"
	"strings"

	"habitatcore/pkg/domain"
)

// MixedOccupancyBuffer is the extra capacity reserved when a species joins
// an enclosure that already houses a different species.
const MixedOccupancyBuffer = 1

// newPlacement derives the space figures for placing quantity individuals of
// species into enclosure.
func newPlacement(enclosure domain.Enclosure, species domain.Species, quantity int) domain.Placement {
	p := domain.Placement{
		Enclosure:  enclosure,
		Species:    species,
		Quantity:   quantity,
		FreeSpace:  enclosure.FreeSpace(),
		BaseSpace:  spaceFor(quantity, species.Size),
		Mixed:      len(enclosure.Residents) > 0 && !enclosure.Houses(species.Name),
		ExactBiome: enclosure.Biome == species.PrimaryBiome(),
	}
	p.RequiredSpace = p.BaseSpace
	if p.Mixed {
		p.RequiredSpace += MixedOccupancyBuffer
	}
	return p
}

// maxSpace is the largest space figure a placement carries. Groups whose
// footprint does not fit in an int saturate here; the headroom keeps the
// mixed buffer from wrapping. The capacity rule decides with fits, never with
// the saturated figure.
const maxSpace = math.MaxInt - MixedOccupancyBuffer

// spaceFor returns quantity*size, saturated at maxSpace.
func spaceFor(quantity, size int) int {
	if size > 0 && quantity > maxSpace/size {
		return maxSpace
	}
	return quantity * size
}

// fits reports whether quantity individuals of the given size, plus extra,
// fit in free without computing a product that could overflow.
func fits(free, quantity, size, extra int) bool {
	room := free - extra
	if room < 0 || size <= 0 {
		return room >= 0
	}
	return quantity <= room/size
}

// biomeCompatible is a literal label heuristic, not a taxonomy: exact match,
// list membership, or substring containment between the enclosure label and
// the primary biome in either direction.
func biomeCompatible(biome string, species domain.Species) bool {
	primary := species.PrimaryBiome()
	if primary == "" {
		return false
	}
	return biome == primary ||
		species.Tolerates(biome) ||
		strings.Contains(primary, biome) ||
		strings.Contains(biome, primary)
}
