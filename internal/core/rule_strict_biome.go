package core

import (
	"context"
	"fmt"

	"habitatcore/pkg/domain"
)

// NewStrictBiomeRule returns the rule confining strict-biome species to
// enclosures labelled exactly with their primary biome.
func NewStrictBiomeRule() domain.Rule {
	return strictBiomeRule{}
}

type strictBiomeRule struct{}

func (strictBiomeRule) Name() string { return RuleStrictBiome }

func (strictBiomeRule) Evaluate(_ context.Context, _ domain.PlacementView, p domain.Placement) (domain.Result, error) {
	if !p.Species.StrictBiome || p.ExactBiome {
		return domain.Result{}, nil
	}
	return block(RuleStrictBiome, p, fmt.Sprintf("%s requires biome %q, enclosure %d is %q",
		p.Species.Name, p.Species.PrimaryBiome(), p.Enclosure.ID, p.Enclosure.Biome)), nil
}
