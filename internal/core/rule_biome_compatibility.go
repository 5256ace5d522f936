package core

import (
	"context"
	"fmt"

	"habitatcore/pkg/domain"
)

// NewBiomeCompatibilityRule returns the rule rejecting enclosures whose biome
// the species does not tolerate.
func NewBiomeCompatibilityRule() domain.Rule {
	return biomeCompatibilityRule{}
}

type biomeCompatibilityRule struct{}

func (biomeCompatibilityRule) Name() string { return RuleBiomeCompatibility }

func (biomeCompatibilityRule) Evaluate(_ context.Context, _ domain.PlacementView, p domain.Placement) (domain.Result, error) {
	if biomeCompatible(p.Enclosure.Biome, p.Species) {
		return domain.Result{}, nil
	}
	return block(RuleBiomeCompatibility, p, fmt.Sprintf("enclosure %d biome %q not compatible with %s %v",
		p.Enclosure.ID, p.Enclosure.Biome, p.Species.Name, p.Species.Biomes)), nil
}
