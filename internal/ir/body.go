package ir

import (
	"slices"
	"strings"
)

// TypeKind classifies an entry of a Body's type table.
type TypeKind string

const (
	KindStruct TypeKind = "struct"
	KindTuple  TypeKind = "tuple"
	KindEnum   TypeKind = "enum"
)

// FieldDef is a named, typed field. Tuple elements use "0", "1", ...
type FieldDef struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// VariantDef is one variant of an enum type.
type VariantDef struct {
	Name   string     `json:"name"`
	Fields []FieldDef `json:"fields"`
}

// TypeDef is an aggregate type definition.
// Fields is used by structs and tuples; Variants by enums.
type TypeDef struct {
	Name     string       `json:"name"`
	Kind     TypeKind     `json:"kind"`
	Fields   []FieldDef   `json:"fields,omitempty"`
	Variants []VariantDef `json:"variants,omitempty"`
}

// LocalDecl declares a local slot. Arg marks function arguments, which are
// initialized on entry.
type LocalDecl struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Arg  bool   `json:"arg,omitempty"`
}

// OperandKind distinguishes how an operand reads its place.
type OperandKind string

const (
	OperandCopy  OperandKind = "copy"
	OperandMove  OperandKind = "move"
	OperandConst OperandKind = "const"
)

// Operand is an rvalue input. Place is nil for constants.
type Operand struct {
	Kind  OperandKind `json:"kind"`
	Place *Place      `json:"place,omitempty"`
}

// RvalueKind distinguishes assignment sources.
type RvalueKind string

const (
	RvalueUse       RvalueKind = "use"
	RvalueRef       RvalueKind = "ref"
	RvalueAggregate RvalueKind = "aggregate"
)

// Rvalue is the right-hand side of an assignment.
// Ref rvalues borrow Place; use and aggregate rvalues read Operands.
type Rvalue struct {
	Kind     RvalueKind `json:"kind"`
	Operands []Operand  `json:"operands,omitempty"`
	Place    *Place     `json:"place,omitempty"`
	Mutable  bool       `json:"mutable,omitempty"`
}

// StatementKind distinguishes statements.
type StatementKind string

const (
	StmtAssign      StatementKind = "assign"
	StmtStorageLive StatementKind = "storage_live"
	StmtStorageDead StatementKind = "storage_dead"
	StmtNop         StatementKind = "nop"
)

// Statement is a non-terminating instruction of a basic block.
type Statement struct {
	Kind   StatementKind `json:"kind"`
	Place  *Place        `json:"place,omitempty"`
	Rvalue *Rvalue       `json:"rvalue,omitempty"`
	Local  Local         `json:"local,omitempty"`
}

// TerminatorKind distinguishes block terminators.
type TerminatorKind string

const (
	TermGoto   TerminatorKind = "goto"
	TermSwitch TerminatorKind = "switch"
	TermCall   TerminatorKind = "call"
	TermDrop   TerminatorKind = "drop"
	TermReturn TerminatorKind = "return"
)

// Terminator ends a basic block. Targets are block indices.
type Terminator struct {
	Kind        TerminatorKind `json:"kind"`
	Targets     []int          `json:"targets,omitempty"`
	Args        []Operand      `json:"args,omitempty"`
	Destination *Place         `json:"destination,omitempty"`
	Place       *Place         `json:"place,omitempty"`
}

// BasicBlock is a straight-line statement sequence and its terminator.
type BasicBlock struct {
	Name       string      `json:"name"`
	Statements []Statement `json:"statements"`
	Terminator Terminator  `json:"terminator"`
}

// Body is the mid-level IR of one function: locals, the type table the
// locals refer to, and the control-flow graph. Block 0 is the entry.
type Body struct {
	Name   string             `json:"name"`
	Locals []LocalDecl        `json:"locals"`
	Types  map[string]TypeDef `json:"types"`
	Blocks []BasicBlock       `json:"blocks"`
}

// LocalByName finds a local by its declared name.
func (b *Body) LocalByName(name string) (Local, bool) {
	for i, decl := range b.Locals {
		if decl.Name == name {
			return Local(i), true
		}
	}
	return 0, false
}

// LocalName returns the declared name of l, or its MIR rendering when the
// local is out of range or unnamed.
func (b *Body) LocalName(l Local) string {
	if int(l) < len(b.Locals) && b.Locals[l].Name != "" {
		return b.Locals[l].Name
	}
	return l.String()
}

// BlockByName finds a block index by name.
func (b *Body) BlockByName(name string) (int, bool) {
	for i, blk := range b.Blocks {
		if blk.Name == name {
			return i, true
		}
	}
	return 0, false
}

// Successors returns the targets of block's terminator.
func (b *Body) Successors(block int) []int {
	if block < 0 || block >= len(b.Blocks) {
		return nil
	}
	return b.Blocks[block].Terminator.Targets
}

// Predecessors returns, in ascending order, every block whose terminator
// targets block.
func (b *Body) Predecessors(block int) []int {
	var preds []int
	for i, blk := range b.Blocks {
		if slices.Contains(blk.Terminator.Targets, block) {
			preds = append(preds, i)
		}
	}
	return preds
}

// Locations lists every program point of the body in IR order: each
// block's statements followed by its terminator.
func (b *Body) Locations() []Location {
	var locs []Location
	for i, blk := range b.Blocks {
		for j := 0; j <= len(blk.Statements); j++ {
			locs = append(locs, Location{Block: i, Statement: j})
		}
	}
	return locs
}

// StatementAt returns the statement at loc. ok is false for terminator
// locations and out-of-range locations.
func (b *Body) StatementAt(loc Location) (*Statement, bool) {
	if loc.Block < 0 || loc.Block >= len(b.Blocks) {
		return nil, false
	}
	stmts := b.Blocks[loc.Block].Statements
	if loc.Statement < 0 || loc.Statement >= len(stmts) {
		return nil, false
	}
	return &stmts[loc.Statement], true
}

// Scalar types are atomic: they have no sub-places.
var scalarTypes = map[string]bool{
	"()": true, "bool": true, "char": true, "str": true, "!": true,
	"i8": true, "i16": true, "i32": true, "i64": true, "i128": true, "isize": true,
	"u8": true, "u16": true, "u32": true, "u64": true, "u128": true, "usize": true,
	"f32": true, "f64": true,
}

// IsScalarType reports whether ty names a built-in scalar.
func IsScalarType(ty string) bool {
	return scalarTypes[strings.TrimSpace(ty)]
}

// RefTarget reports whether ty is a reference or raw pointer type
// (&T, &mut T, *const T, *mut T) and returns the pointee type.
func RefTarget(ty string) (string, bool) {
	ty = strings.TrimSpace(ty)
	var rest string
	switch {
	case strings.HasPrefix(ty, "&"):
		rest = strings.TrimSpace(ty[1:])
		if after, ok := strings.CutPrefix(rest, "mut "); ok {
			rest = after
		}
	case strings.HasPrefix(ty, "*"):
		rest = strings.TrimSpace(ty[1:])
		if after, ok := strings.CutPrefix(rest, "mut "); ok {
			rest = after
		} else if after, ok := strings.CutPrefix(rest, "const "); ok {
			rest = after
		}
	default:
		return "", false
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "", false
	}
	return rest, true
}

// TupleElems reports whether ty is an inline tuple "(A, B, ...)" and returns
// its element types. "()" is the unit scalar, not a tuple.
func TupleElems(ty string) ([]string, bool) {
	ty = strings.TrimSpace(ty)
	if len(ty) < 2 || ty[0] != '(' || ty[len(ty)-1] != ')' {
		return nil, false
	}
	inner := strings.TrimSpace(ty[1 : len(ty)-1])
	if inner == "" {
		return nil, false
	}
	var elems []string
	depth, start := 0, 0
	for i, r := range inner {
		switch r {
		case '(', '[', '<':
			depth++
		case ')', ']', '>':
			depth--
		case ',':
			if depth == 0 {
				elems = append(elems, strings.TrimSpace(inner[start:i]))
				start = i + 1
			}
		}
	}
	if last := strings.TrimSpace(inner[start:]); last != "" {
		elems = append(elems, last)
	}
	return elems, true
}
