package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/mirdump/internal/analysis"
	"github.com/roach88/mirdump/internal/compiler"
	"github.com/roach88/mirdump/internal/facts"
	"github.com/roach88/mirdump/internal/ir"
	"github.com/roach88/mirdump/internal/oracle"
	"github.com/roach88/mirdump/internal/store"
)

// AnalyzeOptions holds flags for the analyze command.
type AnalyzeOptions struct {
	*RootOptions
	Facts       string // nll-facts root directory
	Function    string // analyze only this function
	DB          string // persist the run to this database
	Strict      bool   // unsupported types abort the run
	Watch       bool   // re-run on .cue changes
	MaxVisits   int
	Concurrency int
}

// AnalyzeReport is the analyze command's output.
type AnalyzeReport struct {
	RunID     string           `json:"run_id"`
	Stored    bool             `json:"stored"`
	Functions []FunctionReport `json:"functions"`
}

// FunctionReport is the analysis of one function with places rendered as
// source paths.
type FunctionReport struct {
	Name     string            `json:"name"`
	BodyHash string            `json:"body_hash"`
	Visits   int               `json:"visits"`
	Points   []PointReport     `json:"points"`
	Skipped  map[string]string `json:"skipped,omitempty"`
}

// PointReport is the state before one statement or terminator.
type PointReport struct {
	At          string   `json:"at"`
	Initialized []string `json:"initialized"`
	MovedOut    []string `json:"moved_out"`
	Borrowed    []string `json:"borrowed"`
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AnalyzeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "analyze <specs-dir|ir.json>",
		Short: "Compute per-point place states",
		Long: `Run the place-granularity analysis over compiled bodies.

For every program point the analysis reports the places that are
initialized, moved out and borrowed before the statement executes.
Borrowed places come from an nll-facts directory (--facts); without one
no loans are live.

Exit codes:
  0 - Analysis succeeded
  1 - Analysis failed (unsupported type in --strict mode, no convergence, ...)
  2 - Command error (invalid input, unknown function, database error)

Examples:
  mirdump analyze ./specs
  mirdump analyze ./specs --fn demo --facts ./nll-facts
  mirdump analyze ir.json --db mirdump.db --format json
  mirdump analyze ./specs --watch`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if opts.Watch {
				return runWatch(ctx, opts, args[0], cmd)
			}
			return runAnalyze(ctx, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Facts, "facts", "", "nll-facts directory (per-function subdirectories are used when present)")
	cmd.Flags().StringVar(&opts.Function, "fn", "", "analyze only this function")
	cmd.Flags().StringVar(&opts.DB, "db", defaultDBPath(), "store the run in this SQLite database (default $"+EnvDB+")")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "fail on places of unsupported type instead of skipping them")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "re-run when .cue files in the specs directory change")
	cmd.Flags().IntVar(&opts.MaxVisits, "max-visits", analysis.DefaultMaxVisits, "block visit budget per function")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 0, "functions analyzed at once (0 = GOMAXPROCS)")

	return cmd
}

func runAnalyze(ctx context.Context, opts *AnalyzeOptions, input string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loadResult, err := LoadDocument(input)
	if err != nil {
		return loadFailure(formatter, err)
	}
	bodies, err := selectBodies(loadResult.Document, opts.Function)
	if err != nil {
		return commandError(formatter, ErrCodeUnknownFunction, err.Error())
	}
	for _, body := range bodies {
		if errs := compiler.Validate(body); len(errs) > 0 {
			return commandError(formatter, errs[0].Code, fmt.Sprintf("fn.%s.%s: %s", body.Name, errs[0].Field, errs[0].Message))
		}
	}
	formatter.VerboseLog("Analyzing %d function(s) from %s", len(bodies), input)

	analyzerOpts := []analysis.Option{
		analysis.WithLogger(slog.Default()),
		analysis.WithStrict(opts.Strict),
		analysis.WithMaxVisits(opts.MaxVisits),
	}
	if opts.Concurrency > 0 {
		analyzerOpts = append(analyzerOpts, analysis.WithConcurrency(opts.Concurrency))
	}
	run, err := analysis.New(analyzerOpts...).AnalyzeAll(ctx, bodies, factSource(opts.Facts))
	if err != nil {
		var ae *analysis.AnalysisError
		if errors.As(err, &ae) {
			_ = formatter.Error(string(ae.Code), ae.Error(), ae.Details)
			return WrapExitError(ExitFailure, "analysis failed", err)
		}
		if facts.IsParseError(err) {
			return commandError(formatter, ErrCodeBadFacts, err.Error())
		}
		return commandError(formatter, ErrCodeGeneric, fmt.Sprintf("analysis failed: %v", err))
	}

	report := buildReport(run, bodies)
	if opts.DB != "" {
		if err := storeRun(ctx, opts.DB, run); err != nil {
			return commandError(formatter, ErrCodeStore, err.Error())
		}
		report.Stored = true
		formatter.VerboseLog("Stored run %s in %s", run.ID, opts.DB)
	}

	if formatter.Format == "json" {
		return formatter.encode(CLIResponse{Status: "ok", Data: report, RunID: run.ID})
	}
	outputAnalyzeText(formatter, report)
	return nil
}

// selectBodies returns pointers to the document's bodies, or only the one
// named fn.
func selectBodies(doc *ir.Document, fn string) ([]*ir.Body, error) {
	bodies := make([]*ir.Body, 0, len(doc.Bodies))
	for i := range doc.Bodies {
		if fn == "" || doc.Bodies[i].Name == fn {
			bodies = append(bodies, &doc.Bodies[i])
		}
	}
	if fn != "" && len(bodies) == 0 {
		return nil, fmt.Errorf("unknown function %q", fn)
	}
	return bodies, nil
}

// factSource loads facts.Dir(root, fn) for each function. An empty root
// means no loans.
func factSource(root string) analysis.FactSource {
	if root == "" {
		return nil
	}
	return func(fn string) (*facts.Table, error) {
		return facts.Load(facts.Dir(root, fn))
	}
}

func storeRun(ctx context.Context, path string, run *analysis.Run) error {
	st, err := store.Open(path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if _, err := st.WriteRun(ctx, run); err != nil {
		return fmt.Errorf("write run %s: %w", run.ID, err)
	}
	return nil
}

func buildReport(run *analysis.Run, bodies []*ir.Body) *AnalyzeReport {
	byName := make(map[string]*ir.Body, len(bodies))
	for _, b := range bodies {
		byName[b.Name] = b
	}

	report := &AnalyzeReport{RunID: run.ID, Functions: make([]FunctionReport, 0, len(run.Results))}
	for _, res := range run.Results {
		o := oracle.New(byName[res.Function])
		fr := FunctionReport{
			Name:     res.Function,
			BodyHash: res.BodyHash,
			Visits:   res.Visits,
			Points:   make([]PointReport, 0, len(res.Points)),
			Skipped:  res.Skipped,
		}
		for _, pt := range res.Points {
			fr.Points = append(fr.Points, PointReport{
				At:          pt.Location.String(),
				Initialized: sortedPaths(o, pt.Initialized),
				MovedOut:    sortedPaths(o, pt.MovedOut),
				Borrowed:    sortedPaths(o, pt.Borrowed),
			})
		}
		report.Functions = append(report.Functions, fr)
	}
	return report
}

func sortedPaths(o *oracle.TableOracle, ps []ir.Place) []string {
	names := o.FormatAll(ps)
	slices.Sort(names)
	return names
}

func outputAnalyzeText(formatter *OutputFormatter, report *AnalyzeReport) {
	w := formatter.Writer
	fmt.Fprintf(w, "✓ Analyzed %d function(s) (run %s)\n", len(report.Functions), report.RunID)

	for _, fn := range report.Functions {
		fmt.Fprintf(w, "\nfn %s (%d point(s), %d visit(s)):\n", fn.Name, len(fn.Points), fn.Visits)
		for _, pt := range fn.Points {
			fmt.Fprintf(w, "  %-8s init %s  moved %s  borrowed %s\n",
				pt.At, braces(pt.Initialized), braces(pt.MovedOut), braces(pt.Borrowed))
		}
		if len(fn.Skipped) > 0 {
			names := make([]string, 0, len(fn.Skipped))
			for name := range fn.Skipped {
				names = append(names, name)
			}
			slices.Sort(names)
			fmt.Fprintln(w, "  skipped:")
			for _, name := range names {
				fmt.Fprintf(w, "    %s: %s\n", name, fn.Skipped[name])
			}
		}
	}

	if report.Stored {
		fmt.Fprintf(w, "\nStored run %s\n", report.RunID)
	}
}
