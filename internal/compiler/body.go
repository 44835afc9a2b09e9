package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"

	"github.com/roach88/mirdump/internal/ir"
	"github.com/roach88/mirdump/internal/oracle"
)

// CompileDocument compiles every function under the top-level `fn` struct,
// sharing the top-level `types` table, into an IR document. Bodies keep
// their declaration order.
func CompileDocument(root cue.Value) (*ir.Document, error) {
	if err := root.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	types, err := CompileTypes(root.LookupPath(cue.ParsePath("types")))
	if err != nil {
		return nil, err
	}

	doc := &ir.Document{IRVersion: ir.IRVersion, Bodies: []ir.Body{}}
	fns := root.LookupPath(cue.ParsePath("fn"))
	if !fns.Exists() {
		return doc, nil
	}
	iter, err := fns.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		body, err := CompileBody(iter.Value(), types)
		if err != nil {
			return nil, err
		}
		doc.Bodies = append(doc.Bodies, *body)
	}
	return doc, nil
}

// CompileBody parses one function into a Body. The function name is the
// value's last path selector; types is copied into the body.
//
//	fn: demo: {
//		locals: [{name: "x", type: "S", arg: true}, {name: "r", type: "&S"}]
//		blocks: [{
//			name: "bb0"
//			statements: [{assign: "r", ref: "x.f"}]
//			terminator: {return: true}
//		}]
//	}
//
// Place paths are resolved against the body's locals and types, so an
// unknown field or a deref of a non-reference is a compile error.
func CompileBody(v cue.Value, types map[string]ir.TypeDef) (*ir.Body, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	body := &ir.Body{Types: make(map[string]ir.TypeDef, len(types))}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		body.Name = strings.Trim(labels[len(labels)-1].String(), `"`)
	}
	for name, def := range types {
		body.Types[name] = def
	}

	var err error
	body.Locals, err = parseLocals(v, "fn."+body.Name)
	if err != nil {
		return nil, err
	}

	blocksVal := v.LookupPath(cue.ParsePath("blocks"))
	if !blocksVal.Exists() {
		return nil, &CompileError{
			Field:   "fn." + body.Name + ".blocks",
			Message: "blocks are required",
			Pos:     v.Pos(),
		}
	}
	blockVals, err := listValues(blocksVal)
	if err != nil {
		return nil, err
	}

	// Names first, so terminators can jump forward.
	body.Blocks = make([]ir.BasicBlock, len(blockVals))
	for i, bv := range blockVals {
		name, ok, err := optionalString(bv, "name")
		if err != nil {
			return nil, err
		}
		if !ok {
			name = fmt.Sprintf("bb%d", i)
		}
		body.Blocks[i].Name = name
	}

	c := &bodyCompiler{body: body, oracle: oracle.New(body)}
	for i, bv := range blockVals {
		field := fmt.Sprintf("fn.%s.blocks[%d]", body.Name, i)
		if err := c.block(&body.Blocks[i], bv, field); err != nil {
			return nil, err
		}
	}
	return body, nil
}

func parseLocals(v cue.Value, field string) ([]ir.LocalDecl, error) {
	localsVal := v.LookupPath(cue.ParsePath("locals"))
	if !localsVal.Exists() {
		return nil, nil
	}
	vals, err := listValues(localsVal)
	if err != nil {
		return nil, err
	}
	locals := make([]ir.LocalDecl, 0, len(vals))
	for i, lv := range vals {
		path := fmt.Sprintf("%s.locals[%d]", field, i)
		name, err := requireString(lv, "name", path)
		if err != nil {
			return nil, err
		}
		ty, err := requireString(lv, "type", path)
		if err != nil {
			return nil, err
		}
		decl := ir.LocalDecl{Name: name, Type: ty}
		if argVal := lv.LookupPath(cue.ParsePath("arg")); argVal.Exists() {
			decl.Arg, err = argVal.Bool()
			if err != nil {
				return nil, formatCUEError(err)
			}
		}
		locals = append(locals, decl)
	}
	return locals, nil
}

// bodyCompiler resolves names against a body whose locals, types and block
// names are already known.
type bodyCompiler struct {
	body   *ir.Body
	oracle *oracle.TableOracle
}

func (c *bodyCompiler) block(blk *ir.BasicBlock, v cue.Value, field string) error {
	if stmtsVal := v.LookupPath(cue.ParsePath("statements")); stmtsVal.Exists() {
		vals, err := listValues(stmtsVal)
		if err != nil {
			return err
		}
		for i, sv := range vals {
			stmt, err := c.statement(sv, fmt.Sprintf("%s.statements[%d]", field, i))
			if err != nil {
				return err
			}
			blk.Statements = append(blk.Statements, stmt)
		}
	}
	if blk.Statements == nil {
		blk.Statements = []ir.Statement{}
	}

	termVal := v.LookupPath(cue.ParsePath("terminator"))
	if !termVal.Exists() {
		return &CompileError{
			Field:   field + ".terminator",
			Message: "terminator is required",
			Pos:     v.Pos(),
		}
	}
	term, err := c.terminator(termVal, field+".terminator")
	if err != nil {
		return err
	}
	blk.Terminator = term
	return nil
}

// statement parses one of:
//
//	{assign: "p", use: ["move q", "copy r", "const"]}
//	{assign: "p", aggregate: [...]}
//	{assign: "p", ref: "q", mut: true}
//	{storage_live: "x"} / {storage_dead: "x"} / {nop: true}
func (c *bodyCompiler) statement(v cue.Value, field string) (ir.Statement, error) {
	if target, ok, err := optionalString(v, "assign"); err != nil {
		return ir.Statement{}, err
	} else if ok {
		p, err := c.place(target, v, field+".assign")
		if err != nil {
			return ir.Statement{}, err
		}
		rv, err := c.rvalue(v, field)
		if err != nil {
			return ir.Statement{}, err
		}
		return ir.Statement{Kind: ir.StmtAssign, Place: &p, Rvalue: rv}, nil
	}

	for _, kind := range []ir.StatementKind{ir.StmtStorageLive, ir.StmtStorageDead} {
		name, ok, err := optionalString(v, string(kind))
		if err != nil {
			return ir.Statement{}, err
		}
		if !ok {
			continue
		}
		local, found := c.body.LocalByName(name)
		if !found {
			return ir.Statement{}, &CompileError{
				Field:   field + "." + string(kind),
				Message: fmt.Sprintf("unknown local %q", name),
				Pos:     v.Pos(),
			}
		}
		return ir.Statement{Kind: kind, Local: local}, nil
	}

	if v.LookupPath(cue.ParsePath("nop")).Exists() {
		return ir.Statement{Kind: ir.StmtNop}, nil
	}
	return ir.Statement{}, &CompileError{
		Field:   field,
		Message: "statement must be one of assign, storage_live, storage_dead or nop",
		Pos:     v.Pos(),
	}
}

func (c *bodyCompiler) rvalue(v cue.Value, field string) (*ir.Rvalue, error) {
	if src, ok, err := optionalString(v, "ref"); err != nil {
		return nil, err
	} else if ok {
		p, err := c.place(src, v, field+".ref")
		if err != nil {
			return nil, err
		}
		rv := &ir.Rvalue{Kind: ir.RvalueRef, Place: &p}
		if mutVal := v.LookupPath(cue.ParsePath("mut")); mutVal.Exists() {
			rv.Mutable, err = mutVal.Bool()
			if err != nil {
				return nil, formatCUEError(err)
			}
		}
		return rv, nil
	}

	for _, kind := range []ir.RvalueKind{ir.RvalueUse, ir.RvalueAggregate} {
		opsVal := v.LookupPath(cue.MakePath(cue.Str(string(kind))))
		if !opsVal.Exists() {
			continue
		}
		ops, err := c.operands(opsVal, field+"."+string(kind))
		if err != nil {
			return nil, err
		}
		return &ir.Rvalue{Kind: kind, Operands: ops}, nil
	}

	return nil, &CompileError{
		Field:   field,
		Message: "assign requires one of use, aggregate or ref",
		Pos:     v.Pos(),
	}
}

// terminator parses one of:
//
//	{goto: "bb1"}
//	{switch: {on: "copy d", targets: ["bb1", "bb2"]}}
//	{call: {args: ["move x"], destination: "y", target: "bb1"}}
//	{drop: {place: "x", target: "bb1"}}
//	{return: true}
func (c *bodyCompiler) terminator(v cue.Value, field string) (ir.Terminator, error) {
	if target, ok, err := optionalString(v, "goto"); err != nil {
		return ir.Terminator{}, err
	} else if ok {
		b, err := c.blockIndex(target, v, field+".goto")
		if err != nil {
			return ir.Terminator{}, err
		}
		return ir.Terminator{Kind: ir.TermGoto, Targets: []int{b}}, nil
	}

	if sw := v.LookupPath(cue.ParsePath("switch")); sw.Exists() {
		term := ir.Terminator{Kind: ir.TermSwitch}
		if on, ok, err := optionalString(sw, "on"); err != nil {
			return term, err
		} else if ok {
			op, err := c.operand(on, sw, field+".switch.on")
			if err != nil {
				return term, err
			}
			term.Args = []ir.Operand{op}
		}
		targets, err := c.blockList(sw.LookupPath(cue.ParsePath("targets")), field+".switch.targets")
		if err != nil {
			return term, err
		}
		term.Targets = targets
		return term, nil
	}

	if call := v.LookupPath(cue.ParsePath("call")); call.Exists() {
		term := ir.Terminator{Kind: ir.TermCall}
		if argsVal := call.LookupPath(cue.ParsePath("args")); argsVal.Exists() {
			args, err := c.operands(argsVal, field+".call.args")
			if err != nil {
				return term, err
			}
			term.Args = args
		}
		if dest, ok, err := optionalString(call, "destination"); err != nil {
			return term, err
		} else if ok {
			p, err := c.place(dest, call, field+".call.destination")
			if err != nil {
				return term, err
			}
			term.Destination = &p
		}
		if err := c.optionalTarget(&term, call, field+".call.target"); err != nil {
			return term, err
		}
		return term, nil
	}

	if drop := v.LookupPath(cue.ParsePath("drop")); drop.Exists() {
		term := ir.Terminator{Kind: ir.TermDrop}
		path, err := requireString(drop, "place", field+".drop")
		if err != nil {
			return term, err
		}
		p, err := c.place(path, drop, field+".drop.place")
		if err != nil {
			return term, err
		}
		term.Place = &p
		if err := c.optionalTarget(&term, drop, field+".drop.target"); err != nil {
			return term, err
		}
		return term, nil
	}

	if v.LookupPath(cue.ParsePath("return")).Exists() {
		return ir.Terminator{Kind: ir.TermReturn}, nil
	}
	return ir.Terminator{}, &CompileError{
		Field:   field,
		Message: "terminator must be one of goto, switch, call, drop or return",
		Pos:     v.Pos(),
	}
}

func (c *bodyCompiler) optionalTarget(term *ir.Terminator, v cue.Value, field string) error {
	target, ok, err := optionalString(v, "target")
	if err != nil || !ok {
		return err
	}
	b, err := c.blockIndex(target, v, field)
	if err != nil {
		return err
	}
	term.Targets = []int{b}
	return nil
}

func (c *bodyCompiler) blockList(v cue.Value, field string) ([]int, error) {
	if !v.Exists() {
		return nil, &CompileError{Field: field, Message: "targets are required", Pos: v.Pos()}
	}
	vals, err := listValues(v)
	if err != nil {
		return nil, err
	}
	targets := make([]int, 0, len(vals))
	for i, tv := range vals {
		name, err := tv.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		b, err := c.blockIndex(name, tv, fmt.Sprintf("%s[%d]", field, i))
		if err != nil {
			return nil, err
		}
		targets = append(targets, b)
	}
	return targets, nil
}

func (c *bodyCompiler) blockIndex(name string, v cue.Value, field string) (int, error) {
	b, ok := c.body.BlockByName(name)
	if !ok {
		return 0, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("unknown block %q", name),
			Pos:     v.Pos(),
		}
	}
	return b, nil
}

func (c *bodyCompiler) operands(v cue.Value, field string) ([]ir.Operand, error) {
	vals, err := listValues(v)
	if err != nil {
		return nil, err
	}
	ops := make([]ir.Operand, 0, len(vals))
	for i, ov := range vals {
		s, err := ov.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		op, err := c.operand(s, ov, fmt.Sprintf("%s[%d]", field, i))
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// operand parses "move <place>", "copy <place>" or "const [literal]".
func (c *bodyCompiler) operand(s string, v cue.Value, field string) (ir.Operand, error) {
	kind, rest, _ := strings.Cut(strings.TrimSpace(s), " ")
	switch ir.OperandKind(kind) {
	case ir.OperandConst:
		return ir.Operand{Kind: ir.OperandConst}, nil
	case ir.OperandMove, ir.OperandCopy:
		p, err := c.place(rest, v, field)
		if err != nil {
			return ir.Operand{}, err
		}
		return ir.Operand{Kind: ir.OperandKind(kind), Place: &p}, nil
	}
	return ir.Operand{}, &CompileError{
		Field:   field,
		Message: fmt.Sprintf("operand %q must start with move, copy or const", s),
		Pos:     v.Pos(),
	}
}

func (c *bodyCompiler) place(path string, v cue.Value, field string) (ir.Place, error) {
	p, err := c.oracle.ParsePlace(path)
	if err != nil {
		return ir.Place{}, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}
	return p, nil
}

func listValues(v cue.Value) ([]cue.Value, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var vals []cue.Value
	for iter.Next() {
		vals = append(vals, iter.Value())
	}
	return vals, nil
}
