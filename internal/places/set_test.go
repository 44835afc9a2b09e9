package places

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetBasics(t *testing.T) {
	o := shapesOracle()
	xf, xk := o.MustParsePlace("x.f"), o.MustParsePlace("x.k")

	s := NewSet()
	assert.Equal(t, 0, s.Len())
	assert.True(t, s.Add(xf))
	assert.False(t, s.Add(o.MustParsePlace("x.f")), "structurally equal place is a duplicate")
	assert.True(t, s.Contains(xf))
	assert.False(t, s.Contains(xk))

	assert.False(t, s.Remove(xk))
	assert.True(t, s.Remove(xf))
	assert.Equal(t, 0, s.Len())
}

func TestSetPlacesSorted(t *testing.T) {
	o := shapesOracle()
	s := parseSet(o, "r.*", "x.k", "x.f.g", "x", "o.@Some", "o.@None")

	assert.Equal(t, []string{"x", "x.f.g", "x.k", "r.*", "o.@None", "o.@Some"}, o.FormatAll(s.Places()))
	assert.Equal(t, "{_0, _0.0.0, _0.1, (*_1), (_2 as 0), (_2 as 1)}", s.String())
}

func TestSetCloneIsIndependent(t *testing.T) {
	o := shapesOracle()
	s := parseSet(o, "x.f")
	c := s.Clone()
	c.Add(o.MustParsePlace("x.k"))

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 2, c.Len())
	assert.False(t, s.Equal(c))
}

func TestSetAncestorAndCovers(t *testing.T) {
	o := shapesOracle()
	s := parseSet(o, "x.f", "r")

	anc, ok := s.Ancestor(o.MustParsePlace("x.f.g"))
	require.True(t, ok)
	assert.Equal(t, "x.f", o.Format(anc))

	anc, ok = s.Ancestor(o.MustParsePlace("x.f"))
	require.True(t, ok)
	assert.Equal(t, "x.f", o.Format(anc))

	assert.True(t, s.Covers(o.MustParsePlace("r.*.k")))
	assert.False(t, s.Covers(o.MustParsePlace("x")))
	assert.False(t, s.Covers(o.MustParsePlace("x.k")))
}

func TestSetRemoveSubtree(t *testing.T) {
	o := shapesOracle()
	s := parseSet(o, "x.f.g", "x.f.h", "x.k", "d.s")

	s.RemoveSubtree(o.MustParsePlace("x.f"))
	assert.True(t, parseSet(o, "x.k", "d.s").Equal(s))

	s.RemoveSubtree(o.MustParsePlace("x.k"))
	assert.True(t, parseSet(o, "d.s").Equal(s))
}

func TestSetDigestIgnoresInsertionOrder(t *testing.T) {
	o := shapesOracle()

	a, err := parseSet(o, "x.f", "x.k", "r").Digest()
	require.NoError(t, err)
	b, err := parseSet(o, "r", "x.k", "x.f").Digest()
	require.NoError(t, err)
	c, err := parseSet(o, "x.f", "x.k").Digest()
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
