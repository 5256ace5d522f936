package core

import "habitatcore/pkg/domain"

// Rule names reported in violations.
const (
	RuleBiomeCompatibility = "biome_compatibility"
	RuleStrictBiome        = "strict_biome"
	RuleCapacity           = "capacity"
	RulePredatorMix        = "predator_mix"
	RuleSolitaryPlacement  = "solitary_placement"
	RuleSharedBiome        = "shared_biome"
)

// NewDefaultRulesEngine builds a rules engine with the built-in placement policy set.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewBiomeCompatibilityRule())
	engine.Register(NewStrictBiomeRule())
	engine.Register(NewCapacityRule())
	engine.Register(NewPredatorMixRule())
	engine.Register(NewSolitaryPlacementRule())
	engine.Register(NewSharedBiomeRule())
	return engine
}

func block(rule string, p domain.Placement, message string) domain.Result {
	return domain.Result{Violations: []domain.Violation{{
		Rule:        rule,
		Severity:    domain.SeverityBlock,
		Message:     message,
		Entity:      domain.EntityEnclosure,
		EnclosureID: p.Enclosure.ID,
	}}}
}
