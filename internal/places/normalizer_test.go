package places

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mirdump/internal/ir"
	"github.com/roach88/mirdump/internal/oracle"
	"github.com/roach88/mirdump/internal/testutil"
)

func newTestNormalizer() (*Normalizer, *oracle.TableOracle) {
	o := shapesOracle()
	return NewNormalizer(o, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))), o
}

func TestNormalizerRefine(t *testing.T) {
	n, o := newTestNormalizer()

	tests := []struct {
		name   string
		set    []string
		target string
		want   []string
	}{
		{"splits ancestor", []string{"x"}, "x.f.g", []string{"x.k", "x.f.h", "x.f.g"}},
		{"already member", []string{"x.f.g", "x.k"}, "x.f.g", []string{"x.f.g", "x.k"}},
		{"no ancestor tracked", []string{"x.k"}, "x.f.g", []string{"x.k"}},
		{"descendants tracked", []string{"x.f.g"}, "x.f", []string{"x.f.g"}},
		{"through downcast", []string{"y", "o"}, "o.@Some.0.f", []string{"y", "o.@None", "o.@Some.0.k", "o.@Some.0.f"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := parseSet(o, tt.set...)
			require.NoError(t, n.Refine(set, o.MustParsePlace(tt.target)))
			assert.True(t, parseSet(o, tt.want...).Equal(set), "got %s", set)
		})
	}
}

func TestNormalizerRefineThenGeneralize(t *testing.T) {
	n, o := newTestNormalizer()
	xfg := o.MustParsePlace("x.f.g")

	set := parseSet(o, "x")
	require.NoError(t, n.Refine(set, xfg))
	assert.True(t, parseSet(o, "x.k", "x.f.h", "x.f.g").Equal(set))

	require.NoError(t, n.Generalize(set, xfg))
	assert.True(t, parseSet(o, "x").Equal(set))
}

func TestNormalizerRefineUnsupportedLeavesSetUnchanged(t *testing.T) {
	n, _ := newTestNormalizer()

	m := ir.NewPlace(testutil.LocalM)
	set := NewSet(m)
	err := n.Refine(set, m.Field(0))
	assert.True(t, errors.Is(err, oracle.ErrUnsupported))
	assert.True(t, NewSet(m).Equal(set))
}

func TestNormalizerKill(t *testing.T) {
	n, o := newTestNormalizer()

	tests := []struct {
		name string
		set  []string
		kill string
		want []string
	}{
		{"splits ancestor", []string{"x"}, "x.f.g", []string{"x.k", "x.f.h"}},
		{"removes subtree", []string{"x.f.g", "x.f.h", "x.k"}, "x.f", []string{"x.k"}},
		{"whole local", []string{"x.f", "x.k", "y"}, "x", []string{"y"}},
		{"untracked", []string{"y"}, "x.f", []string{"y"}},
		{"through deref", []string{"r"}, "r.*.k", []string{"r.*.f"}},
		{"unclassified field", []string{"w", "y"}, "w.inner", []string{"w.n", "y"}},
		{"unclassified local", []string{"m", "y"}, "m", []string{"y"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := parseSet(o, tt.set...)
			require.NoError(t, n.Kill(set, o.MustParsePlace(tt.kill)))
			assert.True(t, parseSet(o, tt.want...).Equal(set), "got %s", set)
		})
	}
}

func TestNormalizerGen(t *testing.T) {
	n, o := newTestNormalizer()

	tests := []struct {
		name string
		set  []string
		gen  string
		want []string
	}{
		{"completes siblings", []string{"x.k", "x.f.h"}, "x.f.g", []string{"x"}},
		{"absorbs descendants", []string{"x.f.g"}, "x.f", []string{"x.f"}},
		{"already covered", []string{"x"}, "x.f.g", []string{"x"}},
		{"new local", []string{"y"}, "x.k", []string{"y", "x.k"}},
		{"enum variant", []string{"o.@None"}, "o.@Some", []string{"o"}},
		{"unclassified field", []string{"w.n"}, "w.inner", []string{"w"}},
		{"unclassified local", []string{"y"}, "m", []string{"y", "m"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := parseSet(o, tt.set...)
			require.NoError(t, n.Gen(set, o.MustParsePlace(tt.gen)))
			assert.True(t, parseSet(o, tt.want...).Equal(set), "got %s", set)
		})
	}
}

func TestNormalizerNormalize(t *testing.T) {
	n, o := newTestNormalizer()

	set := parseSet(o, "x.f.g", "x.f.h", "x.k", "r.*.f.g", "r.*.f.h", "r.*.k", "d.t.0", "y")
	require.NoError(t, n.Normalize(set))
	assert.True(t, parseSet(o, "x", "r", "d.t.0", "y").Equal(set), "got %s", set)
}

func TestNormalizerLogsExpand(t *testing.T) {
	var buf bytes.Buffer
	o := shapesOracle()
	n := NewNormalizer(o, WithLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))))

	_, err := n.Expand(o.MustParsePlace("x"), o.MustParsePlace("x.f.g"))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "[enter] expand")
	assert.Contains(t, buf.String(), "[exit] expand")
}

func TestNormalizerIsPrefix(t *testing.T) {
	n, o := newTestNormalizer()
	assert.True(t, n.IsPrefix(o.MustParsePlace("x.f.g"), o.MustParsePlace("x.f")))
	assert.False(t, n.IsPrefix(o.MustParsePlace("x.f"), o.MustParsePlace("x.f.g")))
}
