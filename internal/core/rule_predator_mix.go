package core

import (
	"context"
	"fmt"

	"habitatcore/pkg/domain"
)

// NewPredatorMixRule returns the rule keeping predators apart from other
// species: a newcomer may not join resident predators, and a predator may
// not join residents of another species.
func NewPredatorMixRule() domain.Rule {
	return predatorMixRule{}
}

type predatorMixRule struct{}

func (predatorMixRule) Name() string { return RulePredatorMix }

func (predatorMixRule) Evaluate(_ context.Context, view domain.PlacementView, p domain.Placement) (domain.Result, error) {
	if p.Enclosure.Houses(p.Species.Name) {
		return domain.Result{}, nil
	}
	for _, resident := range p.Enclosure.Residents {
		if s, ok := view.FindSpecies(resident); ok && s.Predator {
			return block(RulePredatorMix, p, fmt.Sprintf("enclosure %d houses predator %s",
				p.Enclosure.ID, resident)), nil
		}
	}
	if p.Species.Predator && p.Mixed {
		return block(RulePredatorMix, p, fmt.Sprintf("predator %s cannot join %v in enclosure %d",
			p.Species.Name, p.Enclosure.Residents, p.Enclosure.ID)), nil
	}
	return domain.Result{}, nil
}
