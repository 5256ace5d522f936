package core

import (
	"context"
	"errors"
	"math"
	"reflect"
	"slices"
	"sync"
	"testing"

	"habitatcore/internal/catalog"
	"habitatcore/pkg/domain"
)

func newReferenceEvaluator(t *testing.T, opts ...Option) *Evaluator {
	t.Helper()
	ev, err := NewEvaluator(catalog.Reference(), opts...)
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}
	return ev
}

func TestEvaluateReferenceScenarios(t *testing.T) {
	ev := newReferenceEvaluator(t)
	cases := []struct {
		species  string
		quantity int
		want     []string
		err      error
	}{
		{species: catalog.Macaco, quantity: 1, want: []string{
			"Recinto 1 (espaço livre: 6 total: 10)",
			"Recinto 3 (espaço livre: 3 total: 7)",
		}},
		{species: catalog.Macaco, quantity: 2, want: []string{
			"Recinto 1 (espaço livre: 5 total: 10)",
			"Recinto 2 (espaço livre: 3 total: 5)",
			"Recinto 3 (espaço livre: 2 total: 7)",
		}},
		{species: catalog.Macaco, quantity: 10, err: domain.ErrNoViableEnclosure},
		{species: catalog.Crocodilo, quantity: 1, want: []string{
			"Recinto 4 (espaço livre: 5 total: 8)",
		}},
		{species: catalog.Hipopotamo, quantity: 1, want: []string{
			"Recinto 3 (espaço livre: 0 total: 7)",
			"Recinto 4 (espaço livre: 4 total: 8)",
		}},
		{species: catalog.Hipopotamo, quantity: 2, want: []string{
			"Recinto 4 (espaço livre: 0 total: 8)",
		}},
		{species: catalog.Leao, quantity: 1, want: []string{
			"Recinto 5 (espaço livre: 3 total: 9)",
		}},
		{species: catalog.Gazela, quantity: 1, want: []string{
			"Recinto 1 (espaço livre: 4 total: 10)",
			"Recinto 3 (espaço livre: 3 total: 7)",
		}},
		{species: catalog.Leopardo, quantity: 1, err: domain.ErrNoViableEnclosure},
		{species: "UNICORNIO", quantity: 1, err: domain.ErrInvalidSpecies},
		{species: catalog.Macaco, quantity: 0, err: domain.ErrInvalidQuantity},
		{species: catalog.Macaco, quantity: -3, err: domain.ErrInvalidQuantity},
		{species: "", quantity: 1, err: domain.ErrInvalidSpecies},
		{species: "macaco", quantity: 1, err: domain.ErrInvalidSpecies},
		{species: catalog.Gazela, quantity: 1 << 62, err: domain.ErrNoViableEnclosure},
		{species: catalog.Gazela, quantity: math.MaxInt, err: domain.ErrNoViableEnclosure},
		{species: catalog.Macaco, quantity: math.MaxInt, err: domain.ErrNoViableEnclosure},
		{species: catalog.Hipopotamo, quantity: math.MaxInt/4 + 1, err: domain.ErrNoViableEnclosure},
		{species: catalog.Crocodilo, quantity: MaxQuantity, err: domain.ErrNoViableEnclosure},
	}
	for _, tc := range cases {
		feas, err := ev.Evaluate(context.Background(), tc.species, tc.quantity)
		if tc.err != nil {
			if !errors.Is(err, tc.err) {
				t.Fatalf("%s x%d: expected %v, got %v", tc.species, tc.quantity, tc.err, err)
			}
			if len(feas.Viable) != 0 {
				t.Fatalf("%s x%d: expected no viable enclosures alongside error", tc.species, tc.quantity)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s x%d: unexpected error %v", tc.species, tc.quantity, err)
		}
		if got := feas.Descriptions(); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s x%d: expected %q, got %q", tc.species, tc.quantity, tc.want, got)
		}
	}
}

func TestInvalidSpeciesCheckedBeforeQuantity(t *testing.T) {
	ev := newReferenceEvaluator(t)
	if _, err := ev.Evaluate(context.Background(), "UNICORNIO", 0); !errors.Is(err, domain.ErrInvalidSpecies) {
		t.Fatalf("expected invalid species, got %v", err)
	}
}

func TestEvaluateInvariants(t *testing.T) {
	ev := newReferenceEvaluator(t)
	ctx := context.Background()
	quantities := []int{MaxQuantity, 1 << 62, math.MaxInt / 2, math.MaxInt/2 + 1, math.MaxInt}
	for quantity := 1; quantity <= 12; quantity++ {
		quantities = append(quantities, quantity)
	}
	for _, species := range ev.Catalog().SpeciesNames() {
		for _, quantity := range quantities {
			feas, err := ev.Evaluate(ctx, species, quantity)
			if err != nil {
				if !errors.Is(err, domain.ErrNoViableEnclosure) {
					t.Fatalf("%s x%d: unexpected error %v", species, quantity, err)
				}
				continue
			}
			seenInexact := false
			for i, v := range feas.Viable {
				if v.FreeAfter < 0 {
					t.Fatalf("%s x%d: negative free space in %s", species, quantity, v.Description())
				}
				if v.ExactBiome && seenInexact {
					t.Fatalf("%s x%d: exact match after inexact one: %q", species, quantity, feas.Descriptions())
				}
				seenInexact = seenInexact || !v.ExactBiome
				if i > 0 && feas.Viable[i-1].ExactBiome == v.ExactBiome && feas.Viable[i-1].Description() > v.Description() {
					t.Fatalf("%s x%d: descriptions out of order: %q", species, quantity, feas.Descriptions())
				}
			}
			again, err := ev.Evaluate(ctx, species, quantity)
			if err != nil || !reflect.DeepEqual(feas, again) {
				t.Fatalf("%s x%d: second evaluation differs: %v %v", species, quantity, again, err)
			}
		}
	}
	if !reflect.DeepEqual(ev.Catalog(), catalog.Reference()) {
		t.Fatalf("evaluation mutated the catalog")
	}
}

func TestEvaluateHugeEnclosureDoesNotWrap(t *testing.T) {
	cat := domain.Catalog{
		Enclosures: []domain.Enclosure{{ID: 1, Biome: "savana", Capacity: math.MaxInt}},
		Species:    []domain.Species{{Name: "ELEFANTE", Size: 2, Biomes: []string{"savana"}}},
	}
	ev, err := NewEvaluator(cat)
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}
	ctx := context.Background()
	if _, err := ev.Evaluate(ctx, "ELEFANTE", math.MaxInt/2+1); !errors.Is(err, domain.ErrNoViableEnclosure) {
		t.Fatalf("expected overflowing group to be rejected, got %v", err)
	}
	feas, err := ev.Evaluate(ctx, "ELEFANTE", math.MaxInt/2)
	if err != nil {
		t.Fatalf("evaluate largest group: %v", err)
	}
	if len(feas.Viable) != 1 || feas.Viable[0].FreeAfter != 1 {
		t.Fatalf("unexpected feasibility %+v", feas)
	}
}

func TestOrderingIsLexicographicWithinGroups(t *testing.T) {
	cat := domain.Catalog{
		Enclosures: []domain.Enclosure{
			{ID: 1, Biome: "savana e rio", Capacity: 10},
			{ID: 2, Biome: "savana", Capacity: 10},
			{ID: 10, Biome: "savana", Capacity: 10},
			{ID: 7, Biome: "savana e rio", Capacity: 10},
		},
		Species: []domain.Species{{Name: "ZEBRA", Size: 1, Biomes: []string{"savana"}}},
	}
	ev, err := NewEvaluator(cat)
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}
	feas, err := ev.Evaluate(context.Background(), "ZEBRA", 1)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	want := []string{
		"Recinto 10 (espaço livre: 9 total: 10)",
		"Recinto 2 (espaço livre: 9 total: 10)",
		"Recinto 1 (espaço livre: 9 total: 10)",
		"Recinto 7 (espaço livre: 9 total: 10)",
	}
	if got := feas.Descriptions(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestNewEvaluatorRejectsInvalidCatalog(t *testing.T) {
	cat := catalog.Reference()
	cat.Enclosures[0].Occupied = 99
	if _, err := NewEvaluator(cat); err == nil {
		t.Fatalf("expected invalid catalog error")
	}
}

func TestNewEvaluatorCopiesCatalog(t *testing.T) {
	cat := catalog.Reference()
	ev, err := NewEvaluator(cat)
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}
	cat.Enclosures[0].Residents[0] = catalog.Leao
	cat.Species[0].Biomes[0] = "rio"
	feas, err := ev.Evaluate(context.Background(), catalog.Macaco, 1)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if feas.Viable[0].EnclosureID != 1 {
		t.Fatalf("caller mutation leaked into evaluator: %q", feas.Descriptions())
	}
}

func TestEvaluateIgnoresCancellation(t *testing.T) {
	ev := newReferenceEvaluator(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	feas, err := ev.Evaluate(ctx, catalog.Crocodilo, 1)
	if err != nil || len(feas.Viable) != 1 {
		t.Fatalf("expected result despite cancelled context, got %v %v", feas, err)
	}
}

func TestEvaluateConcurrentUse(t *testing.T) {
	ev := newReferenceEvaluator(t)
	want, err := ev.Evaluate(context.Background(), catalog.Macaco, 2)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := ev.Evaluate(context.Background(), catalog.Macaco, 2)
			if err != nil {
				errs <- err
				return
			}
			if !reflect.DeepEqual(got, want) {
				errs <- errors.New("concurrent result differs")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

type failingRule struct{ err error }

func (failingRule) Name() string { return "failing" }

func (r failingRule) Evaluate(context.Context, domain.PlacementView, domain.Placement) (domain.Result, error) {
	return domain.Result{}, r.err
}

type warnRule struct{}

func (warnRule) Name() string { return "warn_only" }

func (warnRule) Evaluate(_ context.Context, _ domain.PlacementView, p domain.Placement) (domain.Result, error) {
	return domain.Result{Violations: []domain.Violation{{
		Rule: "warn_only", Severity: domain.SeverityWarn, EnclosureID: p.Enclosure.ID,
	}}}, nil
}

func TestCustomRulesEngine(t *testing.T) {
	boom := errors.New("boom")
	engine := domain.NewRulesEngine()
	engine.Register(failingRule{err: boom})
	ev := newReferenceEvaluator(t, WithRulesEngine(engine))
	_, err := ev.Evaluate(context.Background(), catalog.Macaco, 1)
	if !errors.Is(err, boom) || domain.IsEvaluationError(err) {
		t.Fatalf("expected wrapped rule error, got %v", err)
	}

	engine = domain.NewRulesEngine()
	engine.Register(warnRule{})
	ev = newReferenceEvaluator(t, WithRulesEngine(engine))
	feas, err := ev.Evaluate(context.Background(), catalog.Macaco, 1)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(feas.Viable) != len(ev.Catalog().Enclosures) {
		t.Fatalf("warnings must not exclude enclosures, got %q", feas.Descriptions())
	}
}

func TestExplainReportsBlockingRules(t *testing.T) {
	ev := newReferenceEvaluator(t)
	assessments, err := ev.Explain(context.Background(), catalog.Hipopotamo, 2)
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if len(assessments) != 5 {
		t.Fatalf("expected one assessment per enclosure, got %d", len(assessments))
	}
	rulesFor := func(id int) []string {
		for _, a := range assessments {
			if a.Placement.Enclosure.ID == id {
				var names []string
				for _, v := range a.Violations {
					names = append(names, v.Rule)
				}
				return names
			}
		}
		t.Fatalf("enclosure %d missing", id)
		return nil
	}
	if got := rulesFor(1); !slices.Contains(got, RuleSharedBiome) {
		t.Fatalf("enclosure 1: expected shared_biome exclusion, got %v", got)
	}
	if got := rulesFor(3); !reflect.DeepEqual(got, []string{RuleCapacity}) {
		t.Fatalf("enclosure 3: expected only capacity exclusion, got %v", got)
	}
	if got := rulesFor(4); len(got) != 0 {
		t.Fatalf("enclosure 4: expected admissible, got %v", got)
	}
	if got := rulesFor(5); !slices.Contains(got, RulePredatorMix) || !slices.Contains(got, RuleSharedBiome) {
		t.Fatalf("enclosure 5: expected predator_mix and shared_biome, got %v", got)
	}
	if !assessments[3].Admissible() || assessments[0].Admissible() {
		t.Fatalf("unexpected admissibility flags")
	}
}

func TestExplainSolitaryAndPredatorCases(t *testing.T) {
	ev := newReferenceEvaluator(t)
	assessments, err := ev.Explain(context.Background(), catalog.Macaco, 1)
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if v := assessments[1].Violations; len(v) != 1 || v[0].Rule != RuleSolitaryPlacement || v[0].EnclosureID != 2 {
		t.Fatalf("enclosure 2: expected solitary_placement, got %+v", v)
	}

	assessments, err = ev.Explain(context.Background(), catalog.Leao, 1)
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if v := assessments[2].Violations; len(v) != 1 || v[0].Rule != RulePredatorMix {
		t.Fatalf("enclosure 3: expected predator_mix for LEAO, got %+v", v)
	}

	if _, err := ev.Explain(context.Background(), "UNICORNIO", 1); !errors.Is(err, domain.ErrInvalidSpecies) {
		t.Fatalf("expected invalid species, got %v", err)
	}
}
