package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/mirdump/internal/analysis"
	"github.com/roach88/mirdump/internal/ir"
	"github.com/roach88/mirdump/internal/store"
)

// DumpOptions holds flags for the dump command.
type DumpOptions struct {
	*RootOptions
	DB       string
	Run      string // defaults to the latest run
	Function string
	State    string // initialized | moved_out | borrowed
	At       string // program point, e.g. bb0[1]
	Against  string // diff the run against this older run
}

// DumpResult is the dump command's output for a point state query.
type DumpResult struct {
	Run     store.RunInfo                `json:"run"`
	States  []store.StoredState          `json:"states"`
	Skipped map[string]map[string]string `json:"skipped,omitempty"`
}

// DiffResult is the dump command's output with --against.
type DiffResult struct {
	Old     string              `json:"old"`
	New     string              `json:"new"`
	Changes []store.StateChange `json:"changes"`
}

// NewDumpCommand creates the dump command.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DumpOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Query stored analysis results",
		Long: `Print point states stored by analyze --db.

Places are printed in MIR notation (_1.0, (*_2), (_3 as 1)) since the
store does not keep the source bodies. Without --run the latest run is
used. With --against, prints the point states that differ between the
two runs instead.

Examples:
  mirdump dump --db mirdump.db
  mirdump dump --db mirdump.db --fn demo --state moved_out
  mirdump dump --db mirdump.db --at bb0[1]
  mirdump dump --db mirdump.db --against <older-run-id>`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runDump(ctx, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", defaultDBPath(), "SQLite database path (default $"+EnvDB+")")
	cmd.Flags().StringVar(&opts.Run, "run", "", "run id (default: latest run)")
	cmd.Flags().StringVar(&opts.Function, "fn", "", "only this function")
	cmd.Flags().StringVar(&opts.State, "state", "", "only this state kind ("+strings.Join(analysis.StateKinds, "|")+")")
	cmd.Flags().StringVar(&opts.At, "at", "", "only this program point, e.g. bb0[1]")
	cmd.Flags().StringVar(&opts.Against, "against", "", "diff the run against this older run id")

	return cmd
}

func runDump(ctx context.Context, opts *DumpOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.DB == "" {
		return commandError(formatter, ErrCodeNoDatabase, "no database: pass --db or set "+EnvDB)
	}
	// Opening a missing path would create an empty database.
	if _, err := os.Stat(opts.DB); os.IsNotExist(err) {
		return commandError(formatter, ErrCodeNotFound, fmt.Sprintf("database not found: %s", opts.DB))
	}

	filter, err := dumpFilter(opts)
	if err != nil {
		return commandError(formatter, ErrCodeBadFilter, err.Error())
	}

	st, err := store.Open(opts.DB)
	if err != nil {
		return commandError(formatter, ErrCodeStore, fmt.Sprintf("open store: %v", err))
	}
	defer st.Close()

	var run store.RunInfo
	if opts.Run != "" {
		run, err = st.ReadRunInfo(ctx, opts.Run)
	} else {
		run, err = st.LatestRun(ctx)
	}
	if errors.Is(err, sql.ErrNoRows) {
		if opts.Run != "" {
			return commandError(formatter, ErrCodeNotFound, fmt.Sprintf("run not found: %s", opts.Run))
		}
		return commandError(formatter, ErrCodeNotFound, "database holds no runs")
	}
	if err != nil {
		return commandError(formatter, ErrCodeStore, err.Error())
	}
	formatter.VerboseLog("Reading run %s (seq %d)", run.ID, run.Seq)

	if opts.Against != "" {
		return dumpDiff(ctx, st, formatter, opts.Against, run.ID)
	}

	if opts.Function != "" {
		fns, err := st.ListFunctions(ctx, run.ID)
		if err != nil {
			return commandError(formatter, ErrCodeStore, err.Error())
		}
		if !slices.Contains(fns, opts.Function) {
			return commandError(formatter, ErrCodeUnknownFunction, fmt.Sprintf("run %s has no function %q", run.ID, opts.Function))
		}
	}

	filter.RunID = run.ID
	states, err := st.ReadPointStates(ctx, filter)
	if err != nil {
		return commandError(formatter, ErrCodeStore, err.Error())
	}
	result := DumpResult{Run: run, States: states}

	// Skipped places belong to the whole function, not to a point or state.
	if opts.State == "" && opts.At == "" {
		skipped, err := st.ReadSkipped(ctx, run.ID)
		if err != nil {
			return commandError(formatter, ErrCodeStore, err.Error())
		}
		if opts.Function != "" {
			skipped = map[string]map[string]string{opts.Function: skipped[opts.Function]}
			if skipped[opts.Function] == nil {
				skipped = nil
			}
		}
		if len(skipped) > 0 {
			result.Skipped = skipped
		}
	}

	if formatter.Format == "json" {
		return formatter.encode(CLIResponse{Status: "ok", Data: result, RunID: run.ID})
	}
	outputDumpText(formatter, result)
	return nil
}

func dumpFilter(opts *DumpOptions) (store.PointFilter, error) {
	f := store.PointFilter{Function: opts.Function}
	if opts.State != "" {
		if !slices.Contains(analysis.StateKinds, opts.State) {
			return f, fmt.Errorf("invalid state %q: must be one of %v", opts.State, analysis.StateKinds)
		}
		f.States = []string{opts.State}
	}
	if opts.At != "" {
		loc, err := ir.ParseLocation(opts.At)
		if err != nil {
			return f, fmt.Errorf("invalid --at: %w", err)
		}
		f.Location = &loc
	}
	return f, nil
}

func dumpDiff(ctx context.Context, st *store.Store, formatter *OutputFormatter, oldID, newID string) error {
	changes, err := st.DiffRuns(ctx, oldID, newID)
	if errors.Is(err, sql.ErrNoRows) {
		return commandError(formatter, ErrCodeNotFound, fmt.Sprintf("run not found: %s", oldID))
	}
	if err != nil {
		return commandError(formatter, ErrCodeStore, err.Error())
	}
	result := DiffResult{Old: oldID, New: newID, Changes: changes}

	if formatter.Format == "json" {
		return formatter.encode(CLIResponse{Status: "ok", Data: result, RunID: newID})
	}

	w := formatter.Writer
	if len(changes) == 0 {
		fmt.Fprintf(w, "✓ Runs %s and %s agree\n", oldID, newID)
		return nil
	}
	fmt.Fprintf(w, "%d change(s) from %s to %s\n\n", len(changes), oldID, newID)
	for _, c := range changes {
		switch c.Kind {
		case store.ChangeModified:
			fmt.Fprintf(w, "~ %s %s %s: %s -> %s\n", c.Function, c.Location, c.State, mirPlaces(c.Old.Places), mirPlaces(c.New.Places))
		case store.ChangeAdded:
			fmt.Fprintf(w, "+ %s %s %s: %s\n", c.Function, c.Location, c.State, mirPlaces(c.New.Places))
		case store.ChangeRemoved:
			fmt.Fprintf(w, "- %s %s %s: %s\n", c.Function, c.Location, c.State, mirPlaces(c.Old.Places))
		}
	}
	return nil
}

func outputDumpText(formatter *OutputFormatter, result DumpResult) {
	w := formatter.Writer
	fmt.Fprintf(w, "run %s (seq %d, ir %s, analyzer %s)\n",
		result.Run.ID, result.Run.Seq, result.Run.IRVersion, result.Run.AnalyzerVersion)

	if len(result.States) == 0 {
		fmt.Fprintln(w, "No matching point states.")
	}
	fn := ""
	for _, st := range result.States {
		if st.Function != fn {
			fn = st.Function
			fmt.Fprintf(w, "\nfn %s (body %s):\n", fn, shortHash(st.BodyHash))
		}
		fmt.Fprintf(w, "  %-8s %-11s %s\n", st.Location, st.State, mirPlaces(st.Places))
	}

	if len(result.Skipped) > 0 {
		fns := make([]string, 0, len(result.Skipped))
		for fn := range result.Skipped {
			fns = append(fns, fn)
		}
		slices.Sort(fns)
		fmt.Fprintln(w, "\nskipped:")
		for _, fn := range fns {
			places := make([]string, 0, len(result.Skipped[fn]))
			for p := range result.Skipped[fn] {
				places = append(places, p)
			}
			slices.Sort(places)
			for _, p := range places {
				fmt.Fprintf(w, "  %s %s: %s\n", fn, p, result.Skipped[fn][p])
			}
		}
	}
}

func mirPlaces(ps []ir.Place) string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.String()
	}
	return braces(names)
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
