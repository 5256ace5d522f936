// Command recintos reports which enclosures can receive a group of animals.
//
//	recintos -animal MACACO -quantidade 2
//	recintos -request pedido.json
//	echo '{"animal":"LEAO","quantidade":1}' | recintos -request -
//
// The reference catalog comes from the source named by
// HABITATCORE_CATALOG_SOURCE (builtin, blob, sqlite or postgres) unless
// -catalog points at a YAML document. -seed writes the built-in catalog into
// the configured source and exits.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"habitatcore/internal/core"
	"habitatcore/pkg/domain"
)

const (
	exitOK      = 0
	exitFailed  = 1
	exitStartup = 2
)

var (
	exitFunc           = os.Exit
	stdin    io.Reader = os.Stdin
)

// Catalog source names accepted by HABITATCORE_CATALOG_SOURCE.
const (
	sourceBuiltin  = "builtin"
	sourceBlob     = "blob"
	sourceSQLite   = "sqlite"
	sourcePostgres = "postgres"
)

// config is the process environment. The blob driver settings are read by
// blob.ConfigFromEnv when the blob source is selected.
type config struct {
	Source      string `env:"HABITATCORE_CATALOG_SOURCE" envDefault:"builtin"`
	Key         string `env:"HABITATCORE_CATALOG_KEY" envDefault:"reference/catalog.yaml"`
	SQLitePath  string `env:"HABITATCORE_SQLITE_PATH" envDefault:"habitatcore.db"`
	PostgresDSN string `env:"HABITATCORE_POSTGRES_DSN" envDefault:"postgres://localhost/habitatcore?sslmode=disable"`
	LogLevel    string `env:"HABITATCORE_LOG_LEVEL" envDefault:"warn"`
}

type options struct {
	animal     string
	quantidade string
	request    string
	catalog    string
	explain    bool
	metrics    bool
	seed       bool
}

func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("recintos", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var opts options
	fs.StringVar(&opts.animal, "animal", "", "species to place, e.g. MACACO")
	fs.StringVar(&opts.quantidade, "quantidade", "1", "number of individuals")
	fs.StringVar(&opts.request, "request", "", `JSON request file ({"animal": ..., "quantidade": ...}); "-" reads stdin`)
	fs.StringVar(&opts.catalog, "catalog", "", "YAML catalog document overriding HABITATCORE_CATALOG_SOURCE")
	fs.BoolVar(&opts.explain, "explain", false, "print the assessment of every enclosure")
	fs.BoolVar(&opts.metrics, "metrics", false, "write Prometheus metrics to stderr")
	fs.BoolVar(&opts.seed, "seed", false, "publish the built-in catalog to the configured source and exit")
	if err := fs.Parse(args); err != nil {
		return exitStartup
	}
	if !opts.seed && opts.animal == "" && opts.request == "" {
		fmt.Fprintln(stderr, "recintos: -animal or -request is required")
		fs.Usage()
		return exitStartup
	}

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(stderr, "recintos: parse environment: %v\n", err)
		return exitStartup
	}
	logger, err := newLogger(cfg.LogLevel, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "recintos: %v\n", err)
		return exitStartup
	}

	ctx := context.Background()
	if opts.seed {
		if err := seed(ctx, cfg); err != nil {
			logger.Error("seed failed", slog.String("source", cfg.Source), slog.Any("error", err))
			return exitStartup
		}
		logger.Info("catalog seeded", slog.String("source", cfg.Source))
		return exitOK
	}

	cat, err := loadCatalog(ctx, cfg, opts.catalog)
	if err != nil {
		logger.Error("load catalog failed", slog.String("source", cfg.Source), slog.Any("error", err))
		return exitStartup
	}
	reg := prometheus.NewRegistry()
	recorder, err := core.NewPrometheusMetricsRecorder(reg)
	if err != nil {
		logger.Error("metrics setup failed", slog.Any("error", err))
		return exitStartup
	}
	ev, err := core.NewEvaluator(cat, core.WithLogger(logger), core.WithMetrics(recorder))
	if err != nil {
		logger.Error("catalog rejected", slog.Any("error", err))
		return exitStartup
	}

	code := run(ctx, ev, opts, stdout, stderr)
	if opts.metrics {
		if err := writeMetrics(reg, stderr); err != nil {
			logger.Error("write metrics failed", slog.Any("error", err))
		}
	}
	return code
}

func run(ctx context.Context, ev *core.Evaluator, opts options, stdout, stderr io.Writer) int {
	animal, raw := opts.animal, opts.quantidade
	if opts.request != "" {
		req, err := readRequest(opts.request)
		if err != nil {
			return writeJSON(stdout, core.Report{Erro: err.Error()}, exitFailed)
		}
		animal, raw = req.Animal, req.Quantidade.String()
	}
	quantity, err := core.ParseQuantity(raw)
	if err != nil {
		quantity = 0
	}

	if opts.explain {
		assessments, err := ev.Explain(ctx, animal, quantity)
		if err != nil {
			hint(ev, animal, err, stderr)
			return writeJSON(stdout, core.Report{Erro: err.Error()}, exitFailed)
		}
		return writeJSON(stdout, explainLines(assessments), exitOK)
	}

	feas, err := ev.Evaluate(ctx, animal, quantity)
	report := core.NewReport(feas, err)
	if report.Failed() {
		hint(ev, animal, err, stderr)
		return writeJSON(stdout, report, exitFailed)
	}
	return writeJSON(stdout, report, exitOK)
}

func readRequest(path string) (core.Request, error) {
	if path == "-" {
		return core.DecodeRequest(stdin)
	}
	f, err := os.Open(path) // #nosec G304 -- operator-supplied request path
	if err != nil {
		return core.Request{}, fmt.Errorf("open request: %w", err)
	}
	defer f.Close()
	return core.DecodeRequest(f)
}

func hint(ev *core.Evaluator, animal string, err error, stderr io.Writer) {
	if !errors.Is(err, domain.ErrInvalidSpecies) {
		return
	}
	if suggestion, ok := ev.SuggestSpecies(animal); ok {
		fmt.Fprintf(stderr, "did you mean %s?\n", suggestion)
	}
}

type explainViolation struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

type explainLine struct {
	Enclosure     int                `json:"enclosure"`
	Biome         string             `json:"biome"`
	FreeSpace     int                `json:"free_space"`
	RequiredSpace int                `json:"required_space"`
	Mixed         bool               `json:"mixed"`
	ExactBiome    bool               `json:"exact_biome"`
	Admissible    bool               `json:"admissible"`
	Violations    []explainViolation `json:"violations,omitempty"`
}

func explainLines(assessments []core.Assessment) []explainLine {
	out := make([]explainLine, 0, len(assessments))
	for _, a := range assessments {
		line := explainLine{
			Enclosure:     a.Placement.Enclosure.ID,
			Biome:         a.Placement.Enclosure.Biome,
			FreeSpace:     a.Placement.FreeSpace,
			RequiredSpace: a.Placement.RequiredSpace,
			Mixed:         a.Placement.Mixed,
			ExactBiome:    a.Placement.ExactBiome,
			Admissible:    a.Admissible(),
		}
		for _, v := range a.Violations {
			line.Violations = append(line.Violations, explainViolation{Rule: v.Rule, Message: v.Message})
		}
		out = append(out, line)
	}
	return out
}

func writeJSON(w io.Writer, v any, code int) int {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return exitFailed
	}
	return code
}

func writeMetrics(g prometheus.Gatherer, w io.Writer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("encode metrics: %w", err)
		}
	}
	return nil
}

func newLogger(level string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid HABITATCORE_LOG_LEVEL %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}
