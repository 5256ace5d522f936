package core

import (
	"context"
	"fmt"

	"habitatcore/pkg/domain"
)

// NewSolitaryPlacementRule returns the rule preventing a lone individual of a
// gregarious species from being placed in an empty enclosure.
func NewSolitaryPlacementRule() domain.Rule {
	return solitaryPlacementRule{}
}

type solitaryPlacementRule struct{}

func (solitaryPlacementRule) Name() string { return RuleSolitaryPlacement }

func (solitaryPlacementRule) Evaluate(_ context.Context, _ domain.PlacementView, p domain.Placement) (domain.Result, error) {
	if p.Species.Gregarious && p.Quantity == 1 && p.Enclosure.Empty() {
		return block(RuleSolitaryPlacement, p, fmt.Sprintf("a single %s cannot be left alone in empty enclosure %d",
			p.Species.Name, p.Enclosure.ID)), nil
	}
	return domain.Result{}, nil
}
