package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/mirdump/internal/ir"
	"github.com/roach88/mirdump/internal/oracle"
	"github.com/roach88/mirdump/internal/places"
	"github.com/roach88/mirdump/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Context  string // fn and point the assertion was about
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s (%s)\n", e.Type, e.Context)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

func (h *Harness) evaluate(ctx context.Context, a Assertion) error {
	switch a.Type {
	case AssertStateEquals, AssertStateCovers, AssertStateExcludes:
		return h.assertState(a)
	case AssertSkipped:
		return h.assertSkipped(a)
	case AssertStored:
		return h.assertStored(ctx, a)
	case AssertExpand:
		return h.assertExpand(a)
	case AssertCollapse:
		return h.assertCollapse(a)
	case AssertPrefix:
		return h.assertPrefix(a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// pointContext returns the places of a.State at a.At, with the oracle to
// read them.
func (h *Harness) pointContext(a Assertion) ([]ir.Place, *oracle.TableOracle, error) {
	if h.run == nil {
		return nil, nil, fmt.Errorf("%s needs a successful analysis run", a.Type)
	}
	res, ok := h.run.Find(a.Fn)
	if !ok {
		return nil, nil, fmt.Errorf("no result for function %q", a.Fn)
	}
	loc, err := ir.ParseLocation(a.At)
	if err != nil {
		return nil, nil, err
	}
	for _, pt := range res.Points {
		if pt.Location == loc {
			return pt.Places(a.State), oracle.New(h.bodies[a.Fn]), nil
		}
	}
	return nil, nil, fmt.Errorf("function %s has no point %s", a.Fn, a.At)
}

func (h *Harness) assertState(a Assertion) error {
	actual, o, err := h.pointContext(a)
	if err != nil {
		return err
	}
	want, err := parseAll(o, a.Places)
	if err != nil {
		return err
	}
	fail := func(expected string) error {
		return &AssertionError{
			Type:     a.Type,
			Context:  fmt.Sprintf("%s %s %s", a.Fn, a.At, a.State),
			Expected: expected,
			Actual:   fmt.Sprintf("%v", sortedNames(o, actual)),
		}
	}

	switch a.Type {
	case AssertStateEquals:
		if !slices.Equal(sortedNames(o, want), sortedNames(o, actual)) {
			return fail(fmt.Sprintf("%v", sortedNames(o, want)))
		}
	case AssertStateCovers:
		set := places.NewSet(actual...)
		for _, p := range want {
			if !set.Covers(p) {
				return fail(fmt.Sprintf("a set covering %s", o.Format(p)))
			}
		}
	case AssertStateExcludes:
		for _, p := range want {
			for _, m := range actual {
				if places.Overlaps(p, m) {
					return fail(fmt.Sprintf("no member overlapping %s", o.Format(p)))
				}
			}
		}
	}
	return nil
}

// assertSkipped compares names verbatim: a skipped place runs through a
// type the oracle cannot resolve, so only its positional form may parse.
func (h *Harness) assertSkipped(a Assertion) error {
	if h.run == nil {
		return fmt.Errorf("skipped needs a successful analysis run")
	}
	res, ok := h.run.Find(a.Fn)
	if !ok {
		return fmt.Errorf("no result for function %q", a.Fn)
	}
	for _, name := range a.Places {
		if _, ok := res.Skipped[name]; !ok {
			skipped := make([]string, 0, len(res.Skipped))
			for s := range res.Skipped {
				skipped = append(skipped, s)
			}
			slices.Sort(skipped)
			return &AssertionError{
				Type:     a.Type,
				Context:  a.Fn,
				Expected: fmt.Sprintf("%s skipped", name),
				Actual:   fmt.Sprintf("skipped %v", skipped),
			}
		}
	}
	return nil
}

// assertStored reads the persisted row for a point back through the store.
func (h *Harness) assertStored(ctx context.Context, a Assertion) error {
	if h.run == nil {
		return fmt.Errorf("stored needs a successful analysis run")
	}
	body, ok := h.bodies[a.Fn]
	if !ok {
		return fmt.Errorf("unknown function %q", a.Fn)
	}
	loc, err := ir.ParseLocation(a.At)
	if err != nil {
		return err
	}
	rows, err := h.store.ReadPointStates(ctx, store.PointFilter{
		RunID:    h.run.ID,
		Function: a.Fn,
		States:   []string{a.State},
		Location: &loc,
	})
	if err != nil {
		return err
	}
	if len(rows) != 1 {
		return &AssertionError{
			Type:     a.Type,
			Context:  fmt.Sprintf("%s %s %s", a.Fn, a.At, a.State),
			Expected: "exactly one stored row",
			Actual:   fmt.Sprintf("%d rows", len(rows)),
		}
	}

	o := oracle.New(body)
	want, err := parseAll(o, a.Places)
	if err != nil {
		return err
	}
	digest, err := ir.PlaceSetDigest(want)
	if err != nil {
		return err
	}
	if rows[0].Digest != digest {
		return &AssertionError{
			Type:     a.Type,
			Context:  fmt.Sprintf("%s %s %s", a.Fn, a.At, a.State),
			Expected: fmt.Sprintf("%v", sortedNames(o, want)),
			Actual:   fmt.Sprintf("%v", sortedNames(o, rows[0].Places)),
		}
	}
	return nil
}

func (h *Harness) assertExpand(a Assertion) error {
	norm, o, err := h.normalizer(a.Fn)
	if err != nil {
		return err
	}
	minuend, err := o.ParsePlace(a.Minuend)
	if err != nil {
		return err
	}
	subtrahend, err := o.ParsePlace(a.Subtrahend)
	if err != nil {
		return err
	}
	want, err := parseAll(o, a.Places)
	if err != nil {
		return err
	}

	var got []ir.Place
	if err := places.Guard(func() error {
		var err error
		got, err = norm.Expand(minuend, subtrahend)
		return err
	}); err != nil {
		return fmt.Errorf("expand(%s, %s): %w", a.Minuend, a.Subtrahend, err)
	}
	if !slices.Equal(sortedNames(o, want), sortedNames(o, got)) {
		return &AssertionError{
			Type:     a.Type,
			Context:  fmt.Sprintf("%s expand(%s, %s)", a.Fn, a.Minuend, a.Subtrahend),
			Expected: fmt.Sprintf("%v", sortedNames(o, want)),
			Actual:   fmt.Sprintf("%v", sortedNames(o, got)),
		}
	}
	return nil
}

func (h *Harness) assertCollapse(a Assertion) error {
	norm, o, err := h.normalizer(a.Fn)
	if err != nil {
		return err
	}
	guide, err := o.ParsePlace(a.Guide)
	if err != nil {
		return err
	}
	members, err := parseAll(o, a.Set)
	if err != nil {
		return err
	}
	want, err := parseAll(o, a.Places)
	if err != nil {
		return err
	}

	set := places.NewSet(members...)
	if err := places.Guard(func() error { return norm.Generalize(set, guide) }); err != nil {
		return fmt.Errorf("collapse(%v, %s): %w", a.Set, a.Guide, err)
	}
	if !slices.Equal(sortedNames(o, want), sortedNames(o, set.Places())) {
		return &AssertionError{
			Type:     a.Type,
			Context:  fmt.Sprintf("%s collapse(%v, %s)", a.Fn, a.Set, a.Guide),
			Expected: fmt.Sprintf("%v", sortedNames(o, want)),
			Actual:   fmt.Sprintf("%v", sortedNames(o, set.Places())),
		}
	}
	return nil
}

func (h *Harness) assertPrefix(a Assertion) error {
	norm, o, err := h.normalizer(a.Fn)
	if err != nil {
		return err
	}
	place, err := o.ParsePlace(a.Place)
	if err != nil {
		return err
	}
	prefix, err := o.ParsePlace(a.Prefix)
	if err != nil {
		return err
	}
	if got := norm.IsPrefix(place, prefix); got != *a.Holds {
		return &AssertionError{
			Type:     a.Type,
			Context:  fmt.Sprintf("%s is_prefix(%s, %s)", a.Fn, a.Place, a.Prefix),
			Expected: fmt.Sprintf("%t", *a.Holds),
			Actual:   fmt.Sprintf("%t", got),
		}
	}
	return nil
}

func parseAll(o *oracle.TableOracle, names []string) ([]ir.Place, error) {
	out := make([]ir.Place, 0, len(names))
	for _, name := range names {
		p, err := o.ParsePlace(name)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
