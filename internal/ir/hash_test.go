package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBody() Body {
	x := NewPlace(0)
	return Body{
		Name:   "demo",
		Locals: []LocalDecl{{Name: "x", Type: "S", Arg: true}, {Name: "y", Type: "i32"}},
		Types: map[string]TypeDef{
			"S": {Name: "S", Kind: KindStruct, Fields: []FieldDef{{Name: "f", Type: "i32"}, {Name: "k", Type: "i32"}}},
		},
		Blocks: []BasicBlock{{
			Name: "bb0",
			Statements: []Statement{{
				Kind:   StmtAssign,
				Place:  &Place{Local: 1},
				Rvalue: &Rvalue{Kind: RvalueUse, Operands: []Operand{{Kind: OperandMove, Place: &x}}},
			}},
			Terminator: Terminator{Kind: TermReturn},
		}},
	}
}

func TestBodyHashDeterministic(t *testing.T) {
	h1, err := BodyHash(sampleBody())
	require.NoError(t, err)
	h2, err := BodyHash(sampleBody())
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestBodyHashChangesWithContent(t *testing.T) {
	a := sampleBody()
	b := sampleBody()
	b.Locals[1].Type = "u8"

	ha, err := BodyHash(a)
	require.NoError(t, err)
	hb, err := BodyHash(b)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
}

func TestPlaceSetDigestOrderIndependent(t *testing.T) {
	p := NewPlace(0, Field{Index: 1})
	q := NewPlace(0, Field{Index: 0}, Field{Index: 1})
	r := NewPlace(2, Deref{})

	d1, err := PlaceSetDigest([]Place{p, q, r})
	require.NoError(t, err)
	d2, err := PlaceSetDigest([]Place{r, p, q, p})
	require.NoError(t, err)

	assert.Equal(t, d1, d2)
}

func TestPlaceSetDigestDistinguishesSets(t *testing.T) {
	d1, err := PlaceSetDigest([]Place{NewPlace(0)})
	require.NoError(t, err)
	d2, err := PlaceSetDigest([]Place{NewPlace(0, Field{Index: 0})})
	require.NoError(t, err)
	empty, err := PlaceSetDigest(nil)
	require.NoError(t, err)

	assert.NotEqual(t, d1, d2)
	assert.NotEqual(t, d1, empty)
}

func TestHashDomainSeparation(t *testing.T) {
	data := []byte(`["_0"]`)
	assert.NotEqual(t, hashWithDomain(DomainBody, data), hashWithDomain(DomainPlaceSet, data))
}
