package oracle

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/mirdump/internal/ir"
)

// TableOracle resolves place types against a Body's local declarations and
// type table. It holds no mutable state and is safe for concurrent use as
// long as the body is not modified.
type TableOracle struct {
	body *ir.Body
}

// New returns an oracle over body.
func New(body *ir.Body) *TableOracle {
	return &TableOracle{body: body}
}

// Body returns the body the oracle reads.
func (o *TableOracle) Body() *ir.Body {
	return o.body
}

// typed is the result of walking a projection: a type expression, and for
// downcast places the enum definition plus the selected variant.
type typed struct {
	ty      string
	def     *ir.TypeDef
	variant int
}

func (t typed) narrowed() bool { return t.variant >= 0 }

// ShapeOf implements Oracle.
func (o *TableOracle) ShapeOf(p ir.Place) (Shape, error) {
	t, err := o.resolve(p)
	if err != nil {
		return nil, err
	}
	return o.classify(p, t)
}

// Check implements Oracle.
func (o *TableOracle) Check(p ir.Place) error {
	_, err := o.resolve(p)
	return err
}

func (o *TableOracle) classify(p ir.Place, t typed) (Shape, error) {
	if t.narrowed() {
		return Variant{Index: t.variant, Fields: len(t.def.Variants[t.variant].Fields)}, nil
	}
	if _, ok := ir.RefTarget(t.ty); ok {
		return Ref{}, nil
	}
	if ir.IsScalarType(t.ty) {
		return Atomic{}, nil
	}
	if elems, ok := ir.TupleElems(t.ty); ok {
		return Tuple{Elems: len(elems)}, nil
	}
	def, ok := o.body.Types[strings.TrimSpace(t.ty)]
	if !ok {
		return nil, &UnsupportedTypeError{Place: p, Type: t.ty}
	}
	switch def.Kind {
	case ir.KindStruct:
		return Struct{Fields: len(def.Fields)}, nil
	case ir.KindTuple:
		return Tuple{Elems: len(def.Fields)}, nil
	case ir.KindEnum:
		return Enum{Variants: len(def.Variants)}, nil
	}
	return nil, &UnsupportedTypeError{Place: p, Type: t.ty}
}

// resolve walks p's projection from its local's declared type.
func (o *TableOracle) resolve(p ir.Place) (typed, error) {
	if int(p.Local) >= len(o.body.Locals) {
		return typed{}, &ProjectionError{Place: p, Message: fmt.Sprintf("local %s not declared", p.Local)}
	}
	cur := typed{ty: o.body.Locals[p.Local].Type, variant: -1}

	for i, elem := range p.Projection {
		prefix := p.Prefix(i)
		switch e := elem.(type) {
		case ir.Field:
			fields, err := o.fieldsOf(prefix, cur)
			if err != nil {
				return typed{}, err
			}
			if e.Index < 0 || e.Index >= len(fields) {
				return typed{}, &ProjectionError{
					Place:   prefix,
					Type:    cur.ty,
					Message: fmt.Sprintf("field %d out of range (%d fields)", e.Index, len(fields)),
				}
			}
			cur = typed{ty: fields[e.Index].Type, variant: -1}
		case ir.Deref:
			if cur.narrowed() {
				return typed{}, &ProjectionError{Place: prefix, Type: cur.ty, Message: "deref of an enum variant"}
			}
			pointee, ok := ir.RefTarget(cur.ty)
			if !ok {
				return typed{}, &ProjectionError{Place: prefix, Type: cur.ty, Message: "deref of a non-reference"}
			}
			cur = typed{ty: pointee, variant: -1}
		case ir.Downcast:
			def, ok := o.body.Types[strings.TrimSpace(cur.ty)]
			if cur.narrowed() || !ok || def.Kind != ir.KindEnum {
				return typed{}, &ProjectionError{Place: prefix, Type: cur.ty, Message: "downcast of a non-enum"}
			}
			if e.Variant < 0 || e.Variant >= len(def.Variants) {
				return typed{}, &ProjectionError{
					Place:   prefix,
					Type:    cur.ty,
					Message: fmt.Sprintf("variant %d out of range (%d variants)", e.Variant, len(def.Variants)),
				}
			}
			cur = typed{ty: cur.ty, def: &def, variant: e.Variant}
		default:
			return typed{}, &ProjectionError{Place: prefix, Type: cur.ty, Message: fmt.Sprintf("unknown projection %T", elem)}
		}
	}
	return cur, nil
}

// fieldsOf lists the fields reachable through ir.Field from a typed prefix.
func (o *TableOracle) fieldsOf(prefix ir.Place, t typed) ([]ir.FieldDef, error) {
	if t.narrowed() {
		return t.def.Variants[t.variant].Fields, nil
	}
	if elems, ok := ir.TupleElems(t.ty); ok {
		fields := make([]ir.FieldDef, len(elems))
		for i, ty := range elems {
			fields[i] = ir.FieldDef{Name: strconv.Itoa(i), Type: ty}
		}
		return fields, nil
	}
	if _, ok := ir.RefTarget(t.ty); ok || ir.IsScalarType(t.ty) {
		return nil, &ProjectionError{Place: prefix, Type: t.ty, Message: "field access on a type without fields"}
	}
	def, ok := o.body.Types[strings.TrimSpace(t.ty)]
	if !ok {
		return nil, &UnsupportedTypeError{Place: prefix, Type: t.ty}
	}
	if def.Kind == ir.KindEnum {
		return nil, &ProjectionError{Place: prefix, Type: t.ty, Message: "field access on an enum before downcast"}
	}
	return def.Fields, nil
}
