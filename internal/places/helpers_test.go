package places

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/mirdump/internal/ir"
	"github.com/roach88/mirdump/internal/oracle"
	"github.com/roach88/mirdump/internal/testutil"
)

func shapesOracle() *oracle.TableOracle {
	return oracle.New(testutil.ShapesBody())
}

// requireViolation runs fn and asserts it panicked with a ContractViolation
// carrying code.
func requireViolation(t *testing.T, code ViolationCode, fn func()) {
	t.Helper()
	err := Guard(func() error {
		fn()
		return nil
	})
	var cv *ContractViolation
	require.ErrorAs(t, err, &cv, "expected a contract violation")
	require.Equal(t, code, cv.Code)
}

// leaves returns the denotation of p as the sorted keys of its fully
// expanded leaf places.
func leaves(t *testing.T, o oracle.Oracle, p ir.Place) []string {
	t.Helper()
	shape, err := o.ShapeOf(p)
	require.NoError(t, err)
	if oracle.Children(shape) == 0 {
		return []string{p.Key()}
	}
	kids, err := children(o, p, NoOmit())
	require.NoError(t, err)
	var out []string
	for _, k := range kids {
		out = append(out, leaves(t, o, k)...)
	}
	slices.Sort(out)
	return out
}

// leavesOf is the multiset union of the denotations of ps, sorted.
// Overlapping places show up as duplicate keys.
func leavesOf(t *testing.T, o oracle.Oracle, ps ...ir.Place) []string {
	t.Helper()
	var out []string
	for _, p := range ps {
		out = append(out, leaves(t, o, p)...)
	}
	slices.Sort(out)
	return out
}

// allPlaces lists p and every descendant of p up to depth more levels.
func allPlaces(t *testing.T, o oracle.Oracle, p ir.Place, depth int) []ir.Place {
	t.Helper()
	out := []ir.Place{p}
	if depth == 0 {
		return out
	}
	shape, err := o.ShapeOf(p)
	require.NoError(t, err)
	if oracle.Children(shape) == 0 {
		return out
	}
	kids, err := children(o, p, NoOmit())
	require.NoError(t, err)
	for _, k := range kids {
		out = append(out, allPlaces(t, o, k, depth-1)...)
	}
	return out
}

func keys(ps []ir.Place) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Key()
	}
	return out
}
