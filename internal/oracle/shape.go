// Package oracle answers structural questions about the type of a place:
// how many children it has and through which projection kind.
//
// The oracle is the single source of truth for place-tree shape. The place
// algebra never hard-codes arities; it asks ShapeOf.
package oracle

import (
	"errors"
	"fmt"

	"github.com/roach88/mirdump/internal/ir"
)

// Shape describes the immediate children of a place.
//
// This is a sealed interface: Struct, Tuple, Ref, Enum, Variant and Atomic
// are the only implementations, so type switches over Shape are exhaustive.
type Shape interface {
	shape()
}

// Struct has Fields children reached through ir.Field.
type Struct struct{ Fields int }

// Tuple has Elems children reached through ir.Field.
type Tuple struct{ Elems int }

// Ref has exactly one child, reached through ir.Deref.
type Ref struct{}

// Enum has not been narrowed yet; its variants are reached through
// ir.Downcast.
type Enum struct{ Variants int }

// Variant is an enum place already narrowed to variant Index; its Fields
// children are reached through ir.Field.
type Variant struct {
	Index  int
	Fields int
}

// Atomic has no children.
type Atomic struct{}

func (Struct) shape()  {}
func (Tuple) shape()   {}
func (Ref) shape()     {}
func (Enum) shape()    {}
func (Variant) shape() {}
func (Atomic) shape()  {}

// Oracle classifies the type of a place.
// Implementations must be deterministic and side-effect free.
type Oracle interface {
	ShapeOf(p ir.Place) (Shape, error)

	// Check reports whether every projection element of p fits the type
	// of its prefix. p's own type is not classified, so a well-formed
	// place of an unsupported type passes.
	Check(p ir.Place) error
}

// ErrUnsupported marks a type the oracle cannot classify. It reflects a
// gap in oracle coverage, not caller misuse.
var ErrUnsupported = errors.New("unsupported type")

// UnsupportedTypeError reports which type stopped classification.
type UnsupportedTypeError struct {
	Place ir.Place
	Type  string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("%s: %v %q", e.Place, ErrUnsupported, e.Type)
}

// Is makes errors.Is(err, ErrUnsupported) match.
func (e *UnsupportedTypeError) Is(target error) bool {
	return target == ErrUnsupported
}

// ProjectionError reports a projection that does not fit the type of its
// prefix (field out of range, deref of a non-reference, ...).
type ProjectionError struct {
	Place   ir.Place
	Type    string
	Message string
}

func (e *ProjectionError) Error() string {
	return fmt.Sprintf("%s: %s (type %q)", e.Place, e.Message, e.Type)
}

// Children returns the number of immediate children a shape has.
// Enum counts its variants.
func Children(s Shape) int {
	switch sh := s.(type) {
	case Struct:
		return sh.Fields
	case Tuple:
		return sh.Elems
	case Ref:
		return 1
	case Enum:
		return sh.Variants
	case Variant:
		return sh.Fields
	}
	return 0
}
