package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"habitatcore/pkg/domain"
)

// Operation names reported to metrics recorders.
const (
	OperationEvaluate = "evaluate"
	OperationExplain  = "explain"
)

// Outcome labels reported to metrics recorders.
const (
	OutcomeViable          = "viable"
	OutcomeInvalidSpecies  = "invalid_species"
	OutcomeInvalidQuantity = "invalid_quantity"
	OutcomeNoViable        = "no_viable"
	OutcomeError           = "error"
)

// MetricsRecorder receives one observation per evaluator call.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation, outcome string, duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, string, time.Duration) {}

// Option customises an Evaluator.
type Option func(*evaluatorOptions)

type evaluatorOptions struct {
	engine  *domain.RulesEngine
	logger  *slog.Logger
	metrics MetricsRecorder
	now     func() time.Time
}

func defaultOptions() evaluatorOptions {
	return evaluatorOptions{
		engine:  NewDefaultRulesEngine(),
		logger:  slog.New(slog.DiscardHandler),
		metrics: noopMetrics{},
		now:     time.Now,
	}
}

// WithLogger routes evaluator diagnostics to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *evaluatorOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics installs a metrics recorder.
func WithMetrics(recorder MetricsRecorder) Option {
	return func(o *evaluatorOptions) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithRulesEngine replaces the default placement policy.
func WithRulesEngine(engine *domain.RulesEngine) Option {
	return func(o *evaluatorOptions) {
		if engine != nil {
			o.engine = engine
		}
	}
}

// WithClock overrides the time source used for duration measurements.
func WithClock(now func() time.Time) Option {
	return func(o *evaluatorOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// Evaluator decides which enclosures can receive a group of animals. It holds
// an immutable copy of the catalog and is safe for concurrent use.
type Evaluator struct {
	view    catalogView
	engine  *domain.RulesEngine
	logger  *slog.Logger
	metrics MetricsRecorder
	now     func() time.Time
}

// NewEvaluator validates cat and returns an evaluator over a private copy of it.
func NewEvaluator(cat domain.Catalog, opts ...Option) (*Evaluator, error) {
	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("core: invalid catalog: %w", err)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Evaluator{
		view:    catalogView{catalog: cat.Clone()},
		engine:  o.engine,
		logger:  o.logger,
		metrics: o.metrics,
		now:     o.now,
	}, nil
}

// Catalog returns a copy of the reference tables the evaluator consults.
func (e *Evaluator) Catalog() domain.Catalog {
	return e.view.catalog.Clone()
}

// Assessment is the verdict for one enclosure.
type Assessment struct {
	Placement  domain.Placement
	Violations []domain.Violation
}

// Admissible reports whether no blocking violation excluded the enclosure.
func (a Assessment) Admissible() bool {
	return !domain.Result{Violations: a.Violations}.HasBlocking()
}

// Evaluate returns the admissible enclosures for quantity individuals of
// species, ordered exact-biome first and then by description. The error is
// one of the domain sentinels when the request is invalid or nothing fits.
func (e *Evaluator) Evaluate(ctx context.Context, species string, quantity int) (feas Feasibility, err error) {
	start := e.now()
	defer func() { e.observe(ctx, OperationEvaluate, err, start) }()

	assessments, err := e.assess(ctx, species, quantity)
	if err != nil {
		return Feasibility{}, err
	}
	for _, a := range assessments {
		if !a.Admissible() {
			continue
		}
		feas.Viable = append(feas.Viable, Viable{
			EnclosureID: a.Placement.Enclosure.ID,
			FreeAfter:   a.Placement.FreeAfter(),
			Capacity:    a.Placement.Enclosure.Capacity,
			ExactBiome:  a.Placement.ExactBiome,
		})
	}
	if len(feas.Viable) == 0 {
		return Feasibility{}, domain.ErrNoViableEnclosure
	}
	sortViable(feas.Viable)
	return feas, nil
}

// Explain returns the assessment of every enclosure in catalog order.
func (e *Evaluator) Explain(ctx context.Context, species string, quantity int) (out []Assessment, err error) {
	start := e.now()
	defer func() { e.observe(ctx, OperationExplain, err, start) }()
	return e.assess(ctx, species, quantity)
}

func (e *Evaluator) assess(ctx context.Context, speciesName string, quantity int) ([]Assessment, error) {
	species, ok := e.view.FindSpecies(speciesName)
	if !ok {
		return nil, domain.ErrInvalidSpecies
	}
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	enclosures := e.view.ListEnclosures()
	out := make([]Assessment, 0, len(enclosures))
	for _, enclosure := range enclosures {
		p := newPlacement(enclosure, species, quantity)
		res, err := e.engine.Evaluate(ctx, e.view, p)
		if err != nil {
			return nil, fmt.Errorf("evaluate enclosure %d: %w", enclosure.ID, err)
		}
		for _, v := range res.Blocking() {
			e.logger.DebugContext(ctx, "enclosure excluded",
				slog.Int("enclosure", enclosure.ID),
				slog.String("species", species.Name),
				slog.String("rule", v.Rule),
				slog.String("reason", v.Message))
		}
		out = append(out, Assessment{Placement: p, Violations: res.Violations})
	}
	return out, nil
}

func (e *Evaluator) observe(ctx context.Context, operation string, err error, start time.Time) {
	outcome := outcomeOf(err)
	if outcome == OutcomeError {
		e.logger.ErrorContext(ctx, "evaluation failed", slog.String("operation", operation), slog.Any("error", err))
	}
	e.metrics.Observe(ctx, operation, outcome, e.now().Sub(start))
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeViable
	case errors.Is(err, domain.ErrInvalidSpecies):
		return OutcomeInvalidSpecies
	case errors.Is(err, domain.ErrInvalidQuantity):
		return OutcomeInvalidQuantity
	case errors.Is(err, domain.ErrNoViableEnclosure):
		return OutcomeNoViable
	default:
		return OutcomeError
	}
}

// catalogView exposes the evaluator's catalog to rules. Accessors return copies.
type catalogView struct {
	catalog domain.Catalog
}

func (v catalogView) ListEnclosures() []domain.Enclosure {
	return v.catalog.Clone().Enclosures
}

func (v catalogView) ListSpecies() []domain.Species {
	return v.catalog.Clone().Species
}

func (v catalogView) FindSpecies(name string) (domain.Species, bool) {
	return v.catalog.FindSpecies(name)
}

func (v catalogView) FindEnclosure(id int) (domain.Enclosure, bool) {
	return v.catalog.FindEnclosure(id)
}
