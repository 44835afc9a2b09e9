package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func diamondBody() *Body {
	return &Body{
		Name:   "diamond",
		Locals: []LocalDecl{{Name: "x", Type: "i32"}},
		Blocks: []BasicBlock{
			{Name: "bb0", Terminator: Terminator{Kind: TermSwitch, Targets: []int{1, 2}}},
			{Name: "bb1", Statements: []Statement{{Kind: StmtNop}}, Terminator: Terminator{Kind: TermGoto, Targets: []int{3}}},
			{Name: "bb2", Terminator: Terminator{Kind: TermGoto, Targets: []int{3}}},
			{Name: "bb3", Terminator: Terminator{Kind: TermReturn}},
		},
	}
}

func TestBodyPredecessors(t *testing.T) {
	b := diamondBody()

	assert.Empty(t, b.Predecessors(0))
	assert.Equal(t, []int{0}, b.Predecessors(1))
	assert.Equal(t, []int{1, 2}, b.Predecessors(3))
	assert.Equal(t, []int{1, 2}, b.Successors(0))
	assert.Nil(t, b.Successors(9))
}

func TestBodyLocations(t *testing.T) {
	locs := diamondBody().Locations()

	want := []Location{
		{Block: 0, Statement: 0},
		{Block: 1, Statement: 0}, {Block: 1, Statement: 1},
		{Block: 2, Statement: 0},
		{Block: 3, Statement: 0},
	}
	assert.Equal(t, want, locs)
}

func TestBodyStatementAt(t *testing.T) {
	b := diamondBody()

	stmt, ok := b.StatementAt(Location{Block: 1, Statement: 0})
	require.True(t, ok)
	assert.Equal(t, StmtNop, stmt.Kind)

	_, ok = b.StatementAt(Location{Block: 1, Statement: 1})
	assert.False(t, ok, "terminator location has no statement")
	_, ok = b.StatementAt(Location{Block: 7, Statement: 0})
	assert.False(t, ok)
}

func TestBodyLookups(t *testing.T) {
	b := diamondBody()

	l, ok := b.LocalByName("x")
	require.True(t, ok)
	assert.Equal(t, Local(0), l)
	_, ok = b.LocalByName("nope")
	assert.False(t, ok)

	assert.Equal(t, "x", b.LocalName(0))
	assert.Equal(t, "_5", b.LocalName(5))

	idx, ok := b.BlockByName("bb3")
	require.True(t, ok)
	assert.Equal(t, 3, idx)
}

func TestRefTarget(t *testing.T) {
	tests := []struct {
		ty      string
		pointee string
		ok      bool
	}{
		{"&S", "S", true},
		{"&mut S", "S", true},
		{"*const u8", "u8", true},
		{"*mut (i32, i32)", "(i32, i32)", true},
		{"& &S", "&S", true},
		{"S", "", false},
		{"&", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.ty, func(t *testing.T) {
			pointee, ok := RefTarget(tt.ty)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.pointee, pointee)
		})
	}
}

func TestTupleElems(t *testing.T) {
	elems, ok := TupleElems("(i32, (u8, bool), &S)")
	require.True(t, ok)
	assert.Equal(t, []string{"i32", "(u8, bool)", "&S"}, elems)

	_, ok = TupleElems("()")
	assert.False(t, ok, "unit is a scalar")
	_, ok = TupleElems("S")
	assert.False(t, ok)
}

func TestIsScalarType(t *testing.T) {
	assert.True(t, IsScalarType("i32"))
	assert.True(t, IsScalarType("()"))
	assert.False(t, IsScalarType("S"))
	assert.False(t, IsScalarType("&i32"))
}
