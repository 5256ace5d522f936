package core

import (
	"context"
	"fmt"

	"habitatcore/pkg/domain"
)

// NewCapacityRule returns the rule enforcing that the free space covers the
// requested individuals plus the mixed-occupancy buffer.
func NewCapacityRule() domain.Rule {
	return capacityRule{}
}

type capacityRule struct{}

func (capacityRule) Name() string { return RuleCapacity }

func (capacityRule) Evaluate(_ context.Context, _ domain.PlacementView, p domain.Placement) (domain.Result, error) {
	extra := p.RequiredSpace - p.BaseSpace
	switch {
	case !fits(p.FreeSpace, p.Quantity, p.Species.Size, 0):
		return block(RuleCapacity, p, fmt.Sprintf("enclosure %d has %d free, %d %s need %d",
			p.Enclosure.ID, p.FreeSpace, p.Quantity, p.Species.Name, p.BaseSpace)), nil
	case !fits(p.FreeSpace, p.Quantity, p.Species.Size, extra):
		return block(RuleCapacity, p, fmt.Sprintf("enclosure %d has %d free, mixed occupancy needs %d",
			p.Enclosure.ID, p.FreeSpace, p.RequiredSpace)), nil
	}
	return domain.Result{}, nil
}
