package compiler

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/mirdump/internal/ir"
	"github.com/roach88/mirdump/internal/oracle"
)

// Validation error codes (E200-E299)
const (
	// Body structure (E201-E204)
	ErrNoBlocks       = "E201" // body has no blocks
	ErrDuplicateLocal = "E202" // two locals share a name
	ErrDuplicateBlock = "E203" // two blocks share a name
	ErrUnknownTarget  = "E204" // terminator targets a missing block

	// Places and instructions (E205-E209)
	ErrUnknownLocal        = "E205" // place or storage statement names a missing local
	ErrInvalidPlace        = "E206" // projection does not fit the local's type
	ErrMalformedStatement  = "E207" // statement is missing a required part
	ErrMalformedTerminator = "E208" // terminator has the wrong target count or parts
	ErrMalformedOperand    = "E209" // move/copy without a place or const with one

	// Type table (E210-E212)
	ErrMalformedType = "E210" // unknown kind or name mismatch
	ErrDuplicateName = "E211" // duplicate field or variant name
	ErrRecursiveType = "E212" // type contains itself by value
)

// ValidationError represents a body validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a body against the structural rules the analysis relies
// on. Returns all errors found (does not fail-fast).
//
// Places whose type the oracle cannot classify are not errors: the analysis
// skips them at run time.
func Validate(body *ir.Body) []ValidationError {
	v := &validator{body: body, oracle: oracle.New(body)}
	v.types()
	v.locals()
	v.blocks()
	return v.errs
}

type validator struct {
	body   *ir.Body
	oracle *oracle.TableOracle
	errs   []ValidationError
}

func (v *validator) add(code, field, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	})
}

func (v *validator) types() {
	for _, name := range sortedTypeNames(v.body.Types) {
		def := v.body.Types[name]
		field := "types." + name
		if def.Name != name {
			v.add(ErrMalformedType, field+".name", "type registered as %q is named %q", name, def.Name)
		}
		switch def.Kind {
		case ir.KindStruct, ir.KindTuple:
			if len(def.Variants) > 0 {
				v.add(ErrMalformedType, field, "%s type %s declares variants", def.Kind, name)
			}
			v.fieldNames(def.Fields, field+".fields")
		case ir.KindEnum:
			if len(def.Fields) > 0 {
				v.add(ErrMalformedType, field, "enum %s declares fields outside a variant", name)
			}
			seen := make(map[string]bool)
			for i, variant := range def.Variants {
				if seen[variant.Name] {
					v.add(ErrDuplicateName, fmt.Sprintf("%s.variants[%d]", field, i), "duplicate variant name: %q", variant.Name)
				}
				seen[variant.Name] = true
				v.fieldNames(variant.Fields, fmt.Sprintf("%s.variants[%d].fields", field, i))
			}
		default:
			v.add(ErrMalformedType, field+".kind", "unknown type kind %q", def.Kind)
		}
	}

	for _, cycle := range AnalyzeTypeCycles(v.body.Types) {
		v.add(ErrRecursiveType, "types."+cycle.Path[0], "%s", cycle.Message)
	}
}

func (v *validator) fieldNames(fields []ir.FieldDef, field string) {
	seen := make(map[string]bool)
	for i, f := range fields {
		if seen[f.Name] {
			v.add(ErrDuplicateName, fmt.Sprintf("%s[%d]", field, i), "duplicate field name: %q", f.Name)
		}
		seen[f.Name] = true
	}
}

func (v *validator) locals() {
	seen := make(map[string]bool)
	for i, decl := range v.body.Locals {
		if strings.TrimSpace(decl.Name) == "" {
			continue
		}
		if seen[decl.Name] {
			v.add(ErrDuplicateLocal, fmt.Sprintf("locals[%d].name", i), "duplicate local name: %q", decl.Name)
		}
		seen[decl.Name] = true
	}
}

func (v *validator) blocks() {
	if len(v.body.Blocks) == 0 {
		v.add(ErrNoBlocks, "blocks", "body %s has no blocks", v.body.Name)
		return
	}

	seen := make(map[string]bool)
	for b, blk := range v.body.Blocks {
		field := fmt.Sprintf("blocks[%d]", b)
		if blk.Name != "" {
			if seen[blk.Name] {
				v.add(ErrDuplicateBlock, field+".name", "duplicate block name: %q", blk.Name)
			}
			seen[blk.Name] = true
		}
		for i, stmt := range blk.Statements {
			v.statement(stmt, fmt.Sprintf("%s.statements[%d]", field, i))
		}
		v.terminator(blk.Terminator, field+".terminator")
	}
}

func (v *validator) statement(stmt ir.Statement, field string) {
	switch stmt.Kind {
	case ir.StmtAssign:
		if stmt.Place == nil {
			v.add(ErrMalformedStatement, field+".place", "assignment has no destination")
		} else {
			v.place(*stmt.Place, field+".place")
		}
		if stmt.Rvalue == nil {
			v.add(ErrMalformedStatement, field+".rvalue", "assignment has no rvalue")
			return
		}
		v.rvalue(*stmt.Rvalue, field+".rvalue")
	case ir.StmtStorageLive, ir.StmtStorageDead:
		if int(stmt.Local) >= len(v.body.Locals) {
			v.add(ErrUnknownLocal, field+".local", "unknown local %s", stmt.Local)
		}
	case ir.StmtNop:
	default:
		v.add(ErrMalformedStatement, field+".kind", "unknown statement kind %q", stmt.Kind)
	}
}

func (v *validator) rvalue(rv ir.Rvalue, field string) {
	switch rv.Kind {
	case ir.RvalueRef:
		if rv.Place == nil {
			v.add(ErrMalformedStatement, field+".place", "ref rvalue has no place")
		} else {
			v.place(*rv.Place, field+".place")
		}
	case ir.RvalueUse, ir.RvalueAggregate:
		v.operands(rv.Operands, field+".operands")
	default:
		v.add(ErrMalformedStatement, field+".kind", "unknown rvalue kind %q", rv.Kind)
	}
}

func (v *validator) operands(ops []ir.Operand, field string) {
	for i, op := range ops {
		f := fmt.Sprintf("%s[%d]", field, i)
		switch op.Kind {
		case ir.OperandMove, ir.OperandCopy:
			if op.Place == nil {
				v.add(ErrMalformedOperand, f, "%s operand has no place", op.Kind)
				continue
			}
			v.place(*op.Place, f+".place")
		case ir.OperandConst:
			if op.Place != nil {
				v.add(ErrMalformedOperand, f, "const operand reads a place")
			}
		default:
			v.add(ErrMalformedOperand, f+".kind", "unknown operand kind %q", op.Kind)
		}
	}
}

func (v *validator) terminator(term ir.Terminator, field string) {
	for i, t := range term.Targets {
		if t < 0 || t >= len(v.body.Blocks) {
			v.add(ErrUnknownTarget, fmt.Sprintf("%s.targets[%d]", field, i), "unknown block %d", t)
		}
	}
	v.operands(term.Args, field+".args")

	n := len(term.Targets)
	switch term.Kind {
	case ir.TermGoto:
		if n != 1 {
			v.add(ErrMalformedTerminator, field+".targets", "goto needs exactly one target, has %d", n)
		}
	case ir.TermSwitch:
		if n == 0 {
			v.add(ErrMalformedTerminator, field+".targets", "switch needs at least one target")
		}
	case ir.TermCall:
		if n > 1 {
			v.add(ErrMalformedTerminator, field+".targets", "call has at most one target, has %d", n)
		}
		if term.Destination != nil {
			v.place(*term.Destination, field+".destination")
		}
	case ir.TermDrop:
		if n > 1 {
			v.add(ErrMalformedTerminator, field+".targets", "drop has at most one target, has %d", n)
		}
		if term.Place == nil {
			v.add(ErrMalformedTerminator, field+".place", "drop has no place")
		} else {
			v.place(*term.Place, field+".place")
		}
	case ir.TermReturn:
		if n != 0 {
			v.add(ErrMalformedTerminator, field+".targets", "return has no targets, has %d", n)
		}
	default:
		v.add(ErrMalformedTerminator, field+".kind", "unknown terminator kind %q", term.Kind)
	}
}

// place checks that p names a local and that its projection fits the
// local's type.
func (v *validator) place(p ir.Place, field string) {
	if int(p.Local) >= len(v.body.Locals) {
		v.add(ErrUnknownLocal, field, "unknown local %s", p.Local)
		return
	}
	if err := v.oracle.Check(p); err != nil && !errors.Is(err, oracle.ErrUnsupported) {
		v.add(ErrInvalidPlace, field, "place %s: %v", p, err)
	}
}

func sortedTypeNames(types map[string]ir.TypeDef) []string {
	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
