package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mirdump/internal/ir"
)

const demoSpec = `
types: {
	S: struct: [{name: "f", type: "T"}, {name: "k", type: "i32"}]
	T: struct: [{name: "g", type: "i32"}, {name: "h", type: "i32"}]
	P: tuple: ["i32", "&S"]
	O: enum: [{name: "None"}, {name: "Some", fields: [{name: "0", type: "S"}]}]
}
fn: demo: {
	locals: [
		{name: "x", type: "S", arg: true},
		{name: "r", type: "&S"},
		{name: "y", type: "i32"},
		{name: "o", type: "O"},
	]
	blocks: [{
		name: "bb0"
		statements: [
			{assign: "r", ref: "x.f", mut: true},
			{assign: "y", use: ["move x.f.g"]},
			{storage_dead: "y"},
		]
		terminator: {goto: "bb1"}
	}, {
		name: "bb1"
		terminator: {switch: {on: "copy o", targets: ["bb2", "bb3"]}}
	}, {
		name: "bb2"
		statements: [{assign: "o", aggregate: ["move x", "const 1"]}]
		terminator: {call: {args: ["copy o.@Some.0.k"], destination: "y", target: "bb3"}}
	}, {
		name: "bb3"
		terminator: {drop: {place: "x", target: "bb4"}}
	}, {
		name: "bb4"
		terminator: {return: true}
	}]
}
fn: empty: {
	blocks: [{terminator: {return: true}}]
}
`

func compileString(t *testing.T, src string) cue.Value {
	t.Helper()
	v := cuecontext.New().CompileString(src)
	require.NoError(t, v.Err())
	return v
}

func TestCompileDocument(t *testing.T) {
	doc, err := CompileDocument(compileString(t, demoSpec))
	require.NoError(t, err)

	assert.Equal(t, ir.IRVersion, doc.IRVersion)
	require.Len(t, doc.Bodies, 2)
	assert.Equal(t, "demo", doc.Bodies[0].Name)
	assert.Equal(t, "empty", doc.Bodies[1].Name)

	demo := doc.Bodies[0]
	require.Len(t, demo.Locals, 4)
	assert.True(t, demo.Locals[0].Arg)
	assert.False(t, demo.Locals[1].Arg)
	assert.Len(t, demo.Types, 4)
	require.Len(t, demo.Blocks, 5)

	bb0 := demo.Blocks[0]
	require.Len(t, bb0.Statements, 3)

	ref := bb0.Statements[0]
	assert.Equal(t, ir.StmtAssign, ref.Kind)
	assert.Equal(t, "_1", ref.Place.String())
	require.NotNil(t, ref.Rvalue)
	assert.Equal(t, ir.RvalueRef, ref.Rvalue.Kind)
	assert.True(t, ref.Rvalue.Mutable)
	assert.Equal(t, ir.NewPlace(0).Field(0), *ref.Rvalue.Place)

	use := bb0.Statements[1]
	require.Len(t, use.Rvalue.Operands, 1)
	assert.Equal(t, ir.OperandMove, use.Rvalue.Operands[0].Kind)
	assert.Equal(t, ir.NewPlace(0).Field(0).Field(0), *use.Rvalue.Operands[0].Place)

	assert.Equal(t, ir.Statement{Kind: ir.StmtStorageDead, Local: 2}, bb0.Statements[2])
	assert.Equal(t, ir.Terminator{Kind: ir.TermGoto, Targets: []int{1}}, bb0.Terminator)

	sw := demo.Blocks[1].Terminator
	assert.Equal(t, ir.TermSwitch, sw.Kind)
	assert.Equal(t, []int{2, 3}, sw.Targets)
	require.Len(t, sw.Args, 1)
	assert.Equal(t, ir.OperandCopy, sw.Args[0].Kind)
	assert.Empty(t, demo.Blocks[1].Statements)

	agg := demo.Blocks[2].Statements[0].Rvalue
	assert.Equal(t, ir.RvalueAggregate, agg.Kind)
	require.Len(t, agg.Operands, 2)
	assert.Equal(t, ir.OperandConst, agg.Operands[1].Kind)
	assert.Nil(t, agg.Operands[1].Place)

	call := demo.Blocks[2].Terminator
	assert.Equal(t, ir.TermCall, call.Kind)
	assert.Equal(t, []int{3}, call.Targets)
	assert.Equal(t, ir.NewPlace(3).Downcast(1).Field(0).Field(1), *call.Args[0].Place)
	assert.Equal(t, ir.NewPlace(2), *call.Destination)

	drop := demo.Blocks[3].Terminator
	assert.Equal(t, ir.TermDrop, drop.Kind)
	assert.Equal(t, ir.NewPlace(0), *drop.Place)
	assert.Equal(t, []int{4}, drop.Targets)

	assert.Equal(t, ir.TermReturn, demo.Blocks[4].Terminator.Kind)

	// Unnamed blocks are named by position.
	assert.Equal(t, "bb0", doc.Bodies[1].Blocks[0].Name)

	for _, body := range doc.Bodies {
		assert.Empty(t, Validate(&body), "compiled body %s should validate", body.Name)
	}
}

func TestCompileDocumentWithoutFunctions(t *testing.T) {
	doc, err := CompileDocument(compileString(t, `types: {}`))
	require.NoError(t, err)
	assert.Empty(t, doc.Bodies)
}

func TestCompileTypes(t *testing.T) {
	v := compileString(t, demoSpec)
	types, err := CompileTypes(v.LookupPath(cue.ParsePath("types")))
	require.NoError(t, err)

	assert.Equal(t, ir.TypeDef{Name: "T", Kind: ir.KindStruct, Fields: []ir.FieldDef{
		{Name: "g", Type: "i32"},
		{Name: "h", Type: "i32"},
	}}, types["T"])
	assert.Equal(t, ir.TypeDef{Name: "P", Kind: ir.KindTuple, Fields: []ir.FieldDef{
		{Name: "0", Type: "i32"},
		{Name: "1", Type: "&S"},
	}}, types["P"])
	assert.Equal(t, ir.TypeDef{Name: "O", Kind: ir.KindEnum, Variants: []ir.VariantDef{
		{Name: "None"},
		{Name: "Some", Fields: []ir.FieldDef{{Name: "0", Type: "S"}}},
	}}, types["O"])
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		field   string
		message string
	}{
		{
			name:    "two kinds",
			src:     `types: A: {struct: [], tuple: []}`,
			field:   "types.A",
			message: "exactly one of struct, tuple or enum",
		},
		{
			name:    "field without type",
			src:     `types: A: struct: [{name: "f"}]`,
			field:   "types.A.struct[0].type",
			message: "type is required",
		},
		{
			name:    "missing blocks",
			src:     `fn: f: {locals: []}`,
			field:   "fn.f.blocks",
			message: "blocks are required",
		},
		{
			name:    "missing terminator",
			src:     `fn: f: blocks: [{name: "bb0"}]`,
			field:   "fn.f.blocks[0].terminator",
			message: "terminator is required",
		},
		{
			name:    "unknown block",
			src:     `fn: f: blocks: [{terminator: {goto: "nowhere"}}]`,
			field:   "fn.f.blocks[0].terminator.goto",
			message: `unknown block "nowhere"`,
		},
		{
			name: "unknown field",
			src: `
				types: T: struct: [{name: "g", type: "i32"}]
				fn: f: {
					locals: [{name: "t", type: "T"}]
					blocks: [{statements: [{assign: "t.nope", use: ["const"]}], terminator: {return: true}}]
				}`,
			field:   "fn.f.blocks[0].statements[0].assign",
			message: "nope",
		},
		{
			name: "deref of a value",
			src: `
				fn: f: {
					locals: [{name: "y", type: "i32"}]
					blocks: [{statements: [{assign: "y.*", use: ["const"]}], terminator: {return: true}}]
				}`,
			field: "fn.f.blocks[0].statements[0].assign",
		},
		{
			name: "bad operand",
			src: `
				fn: f: {
					locals: [{name: "y", type: "i32"}]
					blocks: [{statements: [{assign: "y", use: ["steal y"]}], terminator: {return: true}}]
				}`,
			field:   "fn.f.blocks[0].statements[0].use[0]",
			message: "must start with move, copy or const",
		},
		{
			name: "rvalue missing",
			src: `
				fn: f: {
					locals: [{name: "y", type: "i32"}]
					blocks: [{statements: [{assign: "y"}], terminator: {return: true}}]
				}`,
			field:   "fn.f.blocks[0].statements[0]",
			message: "assign requires one of use, aggregate or ref",
		},
		{
			name: "unknown storage local",
			src: `
				fn: f: blocks: [{statements: [{storage_live: "ghost"}], terminator: {return: true}}]`,
			field:   "fn.f.blocks[0].statements[0].storage_live",
			message: `unknown local "ghost"`,
		},
		{
			name:    "unknown statement",
			src:     `fn: f: blocks: [{statements: [{launch: "y"}], terminator: {return: true}}]`,
			field:   "fn.f.blocks[0].statements[0]",
			message: "statement must be one of",
		},
		{
			name:    "unknown terminator",
			src:     `fn: f: blocks: [{terminator: {halt: true}}]`,
			field:   "fn.f.blocks[0].terminator",
			message: "terminator must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileDocument(compileString(t, tt.src))
			require.Error(t, err)

			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
			if tt.message != "" {
				assert.Contains(t, ce.Message, tt.message)
			}
		})
	}
}

func TestCompileErrorFormat(t *testing.T) {
	err := &CompileError{Field: "fn.f.blocks", Message: "blocks are required"}
	assert.Equal(t, "fn.f.blocks: blocks are required", err.Error())

	_, cerr := CompileDocument(compileString(t, `fn: f: {locals: []}`))
	require.Error(t, cerr)
	assert.Contains(t, cerr.Error(), "fn.f.blocks: blocks are required")
}
