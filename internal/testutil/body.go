package testutil

import "github.com/roach88/mirdump/internal/ir"

// ShapesBody returns a body whose locals cover every shape the oracle can
// report. It has a single block that returns immediately; tests that need
// control flow build their own blocks on top of it.
//
//	S = struct { f: T, k: i32 }
//	T = struct { g: i32, h: i32 }
//	P = (i32, &S)
//	O = enum { None, Some(S) }
//	E = enum { Only { v: i32 } }
//	D = struct { s: S, t: (i32, u8), r: &T, o: O }
//	W = struct { inner: Mystery, n: i32 }
//
// Locals, in order: x: S (arg), r: &S, o: O, p: P, e: E, d: D, y: i32,
// m: Mystery (not in the type table), u: (), w: W.
func ShapesBody() *ir.Body {
	return &ir.Body{
		Name: "shapes",
		Locals: []ir.LocalDecl{
			{Name: "x", Type: "S", Arg: true},
			{Name: "r", Type: "&S"},
			{Name: "o", Type: "O"},
			{Name: "p", Type: "P"},
			{Name: "e", Type: "E"},
			{Name: "d", Type: "D"},
			{Name: "y", Type: "i32"},
			{Name: "m", Type: "Mystery"},
			{Name: "u", Type: "()"},
			{Name: "w", Type: "W"},
		},
		Types: map[string]ir.TypeDef{
			"S": {Name: "S", Kind: ir.KindStruct, Fields: []ir.FieldDef{
				{Name: "f", Type: "T"},
				{Name: "k", Type: "i32"},
			}},
			"T": {Name: "T", Kind: ir.KindStruct, Fields: []ir.FieldDef{
				{Name: "g", Type: "i32"},
				{Name: "h", Type: "i32"},
			}},
			"P": {Name: "P", Kind: ir.KindTuple, Fields: []ir.FieldDef{
				{Name: "0", Type: "i32"},
				{Name: "1", Type: "&S"},
			}},
			"O": {Name: "O", Kind: ir.KindEnum, Variants: []ir.VariantDef{
				{Name: "None"},
				{Name: "Some", Fields: []ir.FieldDef{{Name: "0", Type: "S"}}},
			}},
			"E": {Name: "E", Kind: ir.KindEnum, Variants: []ir.VariantDef{
				{Name: "Only", Fields: []ir.FieldDef{{Name: "v", Type: "i32"}}},
			}},
			"D": {Name: "D", Kind: ir.KindStruct, Fields: []ir.FieldDef{
				{Name: "s", Type: "S"},
				{Name: "t", Type: "(i32, u8)"},
				{Name: "r", Type: "&T"},
				{Name: "o", Type: "O"},
			}},
			"W": {Name: "W", Kind: ir.KindStruct, Fields: []ir.FieldDef{
				{Name: "inner", Type: "Mystery"},
				{Name: "n", Type: "i32"},
			}},
		},
		Blocks: []ir.BasicBlock{
			{Name: "bb0", Terminator: ir.Terminator{Kind: ir.TermReturn}},
		},
	}
}

// Shapes locals by index.
const (
	LocalX ir.Local = iota
	LocalR
	LocalO
	LocalP
	LocalE
	LocalD
	LocalY
	LocalM
	LocalU
	LocalW
)
