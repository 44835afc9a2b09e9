package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/mirdump/internal/ir"
	"github.com/roach88/mirdump/internal/oracle"
	"github.com/roach88/mirdump/internal/places"
)

// PlacesOptions holds flags shared by the places subcommands.
type PlacesOptions struct {
	*RootOptions
	Function   string
	Minuend    string
	Subtrahend string
	Guide      string
	Set        []string
}

// ExpandResult is the output of places expand.
type ExpandResult struct {
	Minuend    string   `json:"minuend"`
	Subtrahend string   `json:"subtrahend"`
	Places     []string `json:"places"`
}

// CollapseResult is the output of places collapse.
type CollapseResult struct {
	Guide  string   `json:"guide"`
	Input  []string `json:"input"`
	Places []string `json:"places"`
}

// PrefixResult is the output of places prefix.
type PrefixResult struct {
	Place  string `json:"place"`
	Prefix string `json:"prefix"`
	Holds  bool   `json:"holds"`
}

// NewPlacesCommand creates the places command and its subcommands.
func NewPlacesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlacesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "places",
		Short: "Evaluate the place algebra against a function's types",
		Long: `Evaluate the place algebra operations directly.

Places are written as source paths over a function's locals:
fields by name or index (x.f, p.0), deref as .* and enum variants
as @Variant (o.@Some.0).`,
	}
	cmd.PersistentFlags().StringVar(&opts.Function, "fn", "", "function whose locals and types resolve the places (required)")

	expand := &cobra.Command{
		Use:   "expand <specs-dir>",
		Short: "Places covering minuend minus subtrahend",
		Example: `  mirdump places expand ./specs --fn demo --minuend x --subtrahend x.f.g
  # x - x.f.g = {x.k, x.f.h}`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlacesExpand(opts, args[0], cmd)
		},
	}
	expand.Flags().StringVar(&opts.Minuend, "minuend", "", "place to subtract from (required)")
	expand.Flags().StringVar(&opts.Subtrahend, "subtrahend", "", "place to remove; must extend the minuend (required)")
	_ = expand.MarkFlagRequired("minuend")
	_ = expand.MarkFlagRequired("subtrahend")

	collapse := &cobra.Command{
		Use:   "collapse <specs-dir>",
		Short: "Merge complete sibling groups along a guide place",
		Example: `  mirdump places collapse ./specs --fn demo --guide x.f.g --set x.f.g,x.f.h,x.k
  # collapse {x.f.g, x.f.h, x.k} along x.f.g = {x}`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlacesCollapse(opts, args[0], cmd)
		},
	}
	collapse.Flags().StringVar(&opts.Guide, "guide", "", "place whose ancestors are collapsed (required)")
	collapse.Flags().StringSliceVar(&opts.Set, "set", nil, "comma-separated places in the set")
	_ = collapse.MarkFlagRequired("guide")

	prefix := &cobra.Command{
		Use:           "prefix <specs-dir> <place> <prefix>",
		Short:         "Report whether prefix is a prefix of place",
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlacesPrefix(opts, args[0], args[1], args[2], cmd)
		},
	}

	cmd.AddCommand(expand, collapse, prefix)
	return cmd
}

// placeContext loads the specs and returns the function's oracle and a
// normalizer logging to the process logger.
func placeContext(opts *PlacesOptions, specsDir string, formatter *OutputFormatter) (*oracle.TableOracle, *places.Normalizer, error) {
	if opts.Function == "" {
		return nil, nil, commandError(formatter, ErrCodeUnknownFunction, "--fn is required")
	}
	loadResult, err := LoadDocument(specsDir)
	if err != nil {
		return nil, nil, loadFailure(formatter, err)
	}
	bodies, err := selectBodies(loadResult.Document, opts.Function)
	if err != nil {
		return nil, nil, commandError(formatter, ErrCodeUnknownFunction, err.Error())
	}
	o := oracle.New(bodies[0])
	return o, places.NewNormalizer(o, places.WithLogger(slog.Default())), nil
}

func parsePlaces(o *oracle.TableOracle, formatter *OutputFormatter, paths ...string) ([]ir.Place, error) {
	out := make([]ir.Place, 0, len(paths))
	for _, path := range paths {
		p, err := o.ParsePlace(path)
		if errors.Is(err, oracle.ErrUnsupported) {
			// The path is fine; the function's type table cannot resolve it.
			return nil, algebraFailure(formatter, err)
		}
		if err != nil {
			return nil, commandError(formatter, ErrCodeBadPlace, fmt.Sprintf("place %q: %v", path, err))
		}
		out = append(out, p)
	}
	return out, nil
}

// algebraFailure reports a contract violation or unsupported type.
// Both are failures of the query, not of the command line.
func algebraFailure(formatter *OutputFormatter, err error) error {
	code := ErrCodeGeneric
	var cv *places.ContractViolation
	switch {
	case errors.As(err, &cv):
		code = string(cv.Code)
	case errors.Is(err, oracle.ErrUnsupported):
		code = "UNSUPPORTED_TYPE"
	}
	_ = formatter.Error(code, err.Error(), nil)
	return WrapExitError(ExitFailure, code, err)
}

func runPlacesExpand(opts *PlacesOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	o, norm, err := placeContext(opts, specsDir, formatter)
	if err != nil {
		return err
	}
	ps, err := parsePlaces(o, formatter, opts.Minuend, opts.Subtrahend)
	if err != nil {
		return err
	}

	var got []ir.Place
	err = places.Guard(func() error {
		var err error
		got, err = norm.Expand(ps[0], ps[1])
		return err
	})
	if err != nil {
		return algebraFailure(formatter, err)
	}

	result := ExpandResult{
		Minuend:    o.Format(ps[0]),
		Subtrahend: o.Format(ps[1]),
		Places:     o.FormatAll(got),
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "%s - %s = %s\n", result.Minuend, result.Subtrahend, braces(result.Places))
	return nil
}

func runPlacesCollapse(opts *PlacesOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	o, norm, err := placeContext(opts, specsDir, formatter)
	if err != nil {
		return err
	}
	guide, err := parsePlaces(o, formatter, opts.Guide)
	if err != nil {
		return err
	}
	members, err := parsePlaces(o, formatter, opts.Set...)
	if err != nil {
		return err
	}

	set := places.NewSet(members...)
	input := o.FormatAll(set.Places())
	err = places.Guard(func() error {
		return norm.Generalize(set, guide[0])
	})
	if err != nil {
		return algebraFailure(formatter, err)
	}

	result := CollapseResult{
		Guide:  o.Format(guide[0]),
		Input:  input,
		Places: o.FormatAll(set.Places()),
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "collapse %s along %s = %s\n", braces(result.Input), result.Guide, braces(result.Places))
	return nil
}

func runPlacesPrefix(opts *PlacesOptions, specsDir, place, prefix string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	o, norm, err := placeContext(opts, specsDir, formatter)
	if err != nil {
		return err
	}
	ps, err := parsePlaces(o, formatter, place, prefix)
	if err != nil {
		return err
	}

	result := PrefixResult{
		Place:  o.Format(ps[0]),
		Prefix: o.Format(ps[1]),
		Holds:  norm.IsPrefix(ps[0], ps[1]),
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "%t\n", result.Holds)
	return nil
}
