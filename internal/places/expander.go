package places

import (
	"github.com/roach88/mirdump/internal/ir"
	"github.com/roach88/mirdump/internal/oracle"
)

// Omit selects an optional child index to leave out of an expansion.
// The zero value omits nothing, so NoOmit() and OmitIndex(0) stay distinct.
type Omit struct {
	index int
	set   bool
}

// NoOmit expands every child.
func NoOmit() Omit { return Omit{} }

// OmitIndex leaves out child i.
func OmitIndex(i int) Omit { return Omit{index: i, set: true} }

// Index returns the omitted index, if any.
func (o Omit) Index() (int, bool) { return o.index, o.set }

// ExpandStructPlace lists the immediate children of p in index order,
// leaving out the omitted one.
//
// Struct, tuple and downcast places yield one Field child per field. A
// reference yields its single Deref child; the only index it can omit is 0.
// Expanding an enum before a downcast, an atomic place or a place with no
// fields (a unit variant, an empty struct) panics with a
// ContractViolation. Oracle failures are returned.
func ExpandStructPlace(o oracle.Oracle, p ir.Place, omit Omit) ([]ir.Place, error) {
	shape, err := o.ShapeOf(p)
	if err != nil {
		return nil, err
	}
	if _, enum := shape.(oracle.Enum); !enum && oracle.Children(shape) == 0 {
		if _, omitting := omit.Index(); !omitting {
			violate(CodeExpandLeaf, p, "place has no children")
		}
	}
	return expandShape(p, shape, omit), nil
}

func expandShape(p ir.Place, shape oracle.Shape, omit Omit) []ir.Place {
	skip, omitting := omit.Index()
	switch sh := shape.(type) {
	case oracle.Struct:
		return fieldChildren(p, sh.Fields, omit)
	case oracle.Tuple:
		return fieldChildren(p, sh.Elems, omit)
	case oracle.Variant:
		return fieldChildren(p, sh.Fields, omit)
	case oracle.Ref:
		if !omitting {
			return []ir.Place{p.Deref()}
		}
		if skip != 0 {
			violate(CodeInvalidOmit, p, "references have a single child, cannot omit index %d", skip)
		}
		return nil
	case oracle.Enum:
		violate(CodeEnumNotDowncast, p, "enum with %d variants must be downcast before expansion", sh.Variants)
	case oracle.Atomic:
		violate(CodeExpandLeaf, p, "place has no children")
	}
	violate(CodeExpandLeaf, p, "unknown shape %T", shape)
	return nil
}

func fieldChildren(p ir.Place, n int, omit Omit) []ir.Place {
	skip, omitting := omit.Index()
	if omitting && (skip < 0 || skip >= n) {
		violate(CodeInvalidOmit, p, "cannot omit field %d of %d", skip, n)
	}
	out := make([]ir.Place, 0, n)
	for i := 0; i < n; i++ {
		if omitting && i == skip {
			continue
		}
		out = append(out, p.Field(i))
	}
	return out
}

// variantChildren lists the downcasts of an enum place, leaving out the
// omitted variant.
func variantChildren(p ir.Place, n int, omit Omit) []ir.Place {
	skip, omitting := omit.Index()
	if omitting && (skip < 0 || skip >= n) {
		violate(CodeInvalidOmit, p, "cannot omit variant %d of %d", skip, n)
	}
	out := make([]ir.Place, 0, n)
	for v := 0; v < n; v++ {
		if omitting && v == skip {
			continue
		}
		out = append(out, p.Downcast(v))
	}
	return out
}

// children is ExpandStructPlace extended to unnarrowed enums, whose
// children are their variant downcasts. Expand and Collapse use it so
// that downcast levels take part in splitting and folding.
func children(o oracle.Oracle, p ir.Place, omit Omit) ([]ir.Place, error) {
	shape, err := o.ShapeOf(p)
	if err != nil {
		return nil, err
	}
	if en, ok := shape.(oracle.Enum); ok {
		return variantChildren(p, en.Variants, omit), nil
	}
	return expandShape(p, shape, omit), nil
}

// stepIndex is the child index a projection element selects.
func stepIndex(elem ir.Projection) int {
	switch e := elem.(type) {
	case ir.Field:
		return e.Index
	case ir.Downcast:
		return e.Variant
	}
	return 0
}
