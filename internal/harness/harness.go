package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/mirdump/internal/analysis"
	"github.com/roach88/mirdump/internal/compiler"
	"github.com/roach88/mirdump/internal/facts"
	"github.com/roach88/mirdump/internal/ir"
	"github.com/roach88/mirdump/internal/oracle"
	"github.com/roach88/mirdump/internal/places"
	"github.com/roach88/mirdump/internal/store"
)

// Harness holds the per-scenario execution state assertions read from.
type Harness struct {
	store  *store.Store
	logger *slog.Logger
	bodies map[string]*ir.Body
	run    *analysis.Run
}

// RunID returns the fixed run id a scenario is stored under.
func RunID(scenario *Scenario) string {
	return "scenario-" + scenario.Name
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation, with a
// fixed run id so snapshots are reproducible.
//
// Execution flow:
// 1. Load, compile and validate the spec files
// 2. Analyze every body, loading facts per function when configured
// 3. Write the run to the store
// 4. Evaluate assertions against the run, the store and the algebra
//
// A returned error means the scenario could not be executed; assertion
// failures and unexpected analysis errors are reported in the Result.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	value, err := compiler.LoadFiles(scenario.Specs...)
	if err != nil {
		return nil, fmt.Errorf("failed to load specs: %w", err)
	}
	doc, err := compiler.CompileDocument(value)
	if err != nil {
		return nil, fmt.Errorf("failed to compile specs: %w", err)
	}

	h := &Harness{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
		bodies: make(map[string]*ir.Body, len(doc.Bodies)),
	}
	bodies := make([]*ir.Body, 0, len(doc.Bodies))
	for i := range doc.Bodies {
		body := &doc.Bodies[i]
		if errs := compiler.Validate(body); len(errs) > 0 {
			return nil, fmt.Errorf("body %s: %w", body.Name, errs[0])
		}
		h.bodies[body.Name] = body
		bodies = append(bodies, body)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()
	h.store = st

	result := NewResult()
	if err := h.analyze(ctx, scenario, bodies, result); err != nil {
		return nil, err
	}

	for i, a := range scenario.Assertions {
		if err := h.evaluate(ctx, a); err != nil {
			result.AddError(fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return result, nil
}

// analyze runs the analysis and records either the run or the error code
// in result.
func (h *Harness) analyze(ctx context.Context, scenario *Scenario, bodies []*ir.Body, result *Result) error {
	analyzer := analysis.New(
		analysis.WithLogger(h.logger),
		analysis.WithStrict(scenario.Strict),
		analysis.WithRunIDGenerator(analysis.NewFixedGenerator(RunID(scenario))),
	)

	var source analysis.FactSource
	if scenario.Facts != "" {
		source = func(fn string) (*facts.Table, error) {
			return facts.Load(facts.Dir(scenario.Facts, fn))
		}
	}

	run, err := analyzer.AnalyzeAll(ctx, bodies, source)
	if err != nil {
		var ae *analysis.AnalysisError
		if !errors.As(err, &ae) {
			return fmt.Errorf("analysis failed: %w", err)
		}
		result.ErrorCode = string(ae.Code)
		if scenario.ExpectError != string(ae.Code) {
			result.AddError(fmt.Sprintf("analysis failed: %v", err))
		}
		return nil
	}
	if scenario.ExpectError != "" {
		result.AddError(fmt.Sprintf("expected analysis error %s, run succeeded", scenario.ExpectError))
	}

	if _, err := h.store.WriteRun(ctx, run); err != nil {
		return fmt.Errorf("failed to write run: %w", err)
	}
	h.run = run
	result.RunID = run.ID

	for _, res := range run.Results {
		o := oracle.New(h.bodies[res.Function])
		for _, pt := range res.Points {
			result.Points = append(result.Points, PointSnapshot{
				Function:    res.Function,
				At:          pt.Location.String(),
				Initialized: sortedNames(o, pt.Initialized),
				MovedOut:    sortedNames(o, pt.MovedOut),
				Borrowed:    sortedNames(o, pt.Borrowed),
			})
		}
		if len(res.Skipped) > 0 {
			if result.Skipped == nil {
				result.Skipped = make(map[string][]string)
			}
			names := make([]string, 0, len(res.Skipped))
			for name := range res.Skipped {
				names = append(names, name)
			}
			slices.Sort(names)
			result.Skipped[res.Function] = names
		}
	}
	h.logger.Info("scenario analyzed", "scenario", scenario.Name, "run", run.ID, "points", len(result.Points))
	return nil
}

func (h *Harness) normalizer(fn string) (*places.Normalizer, *oracle.TableOracle, error) {
	body, ok := h.bodies[fn]
	if !ok {
		return nil, nil, fmt.Errorf("unknown function %q", fn)
	}
	o := oracle.New(body)
	return places.NewNormalizer(o, places.WithLogger(h.logger)), o, nil
}

func sortedNames(o *oracle.TableOracle, ps []ir.Place) []string {
	names := o.FormatAll(ps)
	slices.Sort(names)
	return names
}
