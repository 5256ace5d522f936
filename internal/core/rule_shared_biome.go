package core

import (
	"context"
	"fmt"

	"habitatcore/pkg/domain"
)

// NewSharedBiomeRule returns the rule restricting mixed-occupancy placements
// of species with a SharedBiome to enclosures of that biome.
func NewSharedBiomeRule() domain.Rule {
	return sharedBiomeRule{}
}

type sharedBiomeRule struct{}

func (sharedBiomeRule) Name() string { return RuleSharedBiome }

func (sharedBiomeRule) Evaluate(_ context.Context, _ domain.PlacementView, p domain.Placement) (domain.Result, error) {
	if p.Species.SharedBiome == "" || !p.Mixed || p.Enclosure.Biome == p.Species.SharedBiome {
		return domain.Result{}, nil
	}
	return block(RuleSharedBiome, p, fmt.Sprintf("%s only shares enclosures of biome %q, enclosure %d is %q",
		p.Species.Name, p.Species.SharedBiome, p.Enclosure.ID, p.Enclosure.Biome)), nil
}
