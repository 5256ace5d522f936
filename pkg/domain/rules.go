package domain

import "context"

// PlacementView provides read-only access to the reference tables during
// rule evaluation.
type PlacementView interface {
	ListEnclosures() []Enclosure
	ListSpecies() []Species
	FindSpecies(name string) (Species, bool)
	FindEnclosure(id int) (Enclosure, bool)
}

// Rule decides whether a tentative placement is acceptable.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view PlacementView, placement Placement) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Rules returns the registered rule names in registration order.
func (e *RulesEngine) Rules() []string {
	names := make([]string, 0, len(e.rules))
	for _, r := range e.rules {
		names = append(names, r.Name())
	}
	return names
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, view PlacementView, placement Placement) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view, placement)
		if err != nil {
			return Result{}, err
		}
		combined.Merge(res)
	}
	return combined, nil
}
