package ir

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Local identifies a local variable slot of a Body by index.
type Local uint32

// String renders the local in MIR style ("_3").
func (l Local) String() string {
	return "_" + strconv.FormatUint(uint64(l), 10)
}

// Projection is one step of a place path.
// Sealed: only Field, Deref and Downcast implement it. All three are
// comparable value types, so == on two Projections is element equality.
type Projection interface {
	projection()
	key() string
}

// Field selects field Index of a struct, tuple or enum variant.
type Field struct {
	Index int
}

func (Field) projection() {}
func (f Field) key() string { return "." + strconv.Itoa(f.Index) }

// Deref follows a reference or pointer to its single pointee.
type Deref struct{}

func (Deref) projection() {}
func (Deref) key() string { return ".*" }

// Downcast narrows an enum place to variant Variant.
type Downcast struct {
	Variant int
}

func (Downcast) projection() {}
func (d Downcast) key() string { return "@" + strconv.Itoa(d.Variant) }

// Place is a path rooted at a local and extended by projections.
//
// Places are values: every derived place gets its own projection slice,
// so a Place handed out is never mutated afterwards.
type Place struct {
	Local      Local
	Projection []Projection
}

// NewPlace builds a place from a local and projection elements.
func NewPlace(local Local, proj ...Projection) Place {
	p := Place{Local: local}
	if len(proj) > 0 {
		p.Projection = append([]Projection(nil), proj...)
	}
	return p
}

// Depth returns the number of projection elements.
func (p Place) Depth() int {
	return len(p.Projection)
}

// Project returns p extended by elem.
func (p Place) Project(elem Projection) Place {
	proj := make([]Projection, len(p.Projection)+1)
	copy(proj, p.Projection)
	proj[len(p.Projection)] = elem
	return Place{Local: p.Local, Projection: proj}
}

// Field returns p.index.
func (p Place) Field(index int) Place { return p.Project(Field{Index: index}) }

// Deref returns *p.
func (p Place) Deref() Place { return p.Project(Deref{}) }

// Downcast returns (p as variant).
func (p Place) Downcast(variant int) Place { return p.Project(Downcast{Variant: variant}) }

// Prefix returns the place made of the first n projection elements.
func (p Place) Prefix(n int) Place {
	if n >= len(p.Projection) {
		return p
	}
	if n <= 0 {
		return Place{Local: p.Local}
	}
	return Place{Local: p.Local, Projection: append([]Projection(nil), p.Projection[:n]...)}
}

// Parent splits off the last projection element.
// ok is false for a bare local.
func (p Place) Parent() (parent Place, last Projection, ok bool) {
	n := len(p.Projection)
	if n == 0 {
		return p, nil, false
	}
	return p.Prefix(n - 1), p.Projection[n-1], true
}

// Equal reports structural equality.
func (p Place) Equal(q Place) bool {
	if p.Local != q.Local || len(p.Projection) != len(q.Projection) {
		return false
	}
	for i := range p.Projection {
		if p.Projection[i] != q.Projection[i] {
			return false
		}
	}
	return true
}

// Key returns a compact string that is equal for two places exactly when
// the places are structurally equal. Used as the map key of place sets.
func (p Place) Key() string {
	var b strings.Builder
	b.WriteString(p.Local.String())
	for _, elem := range p.Projection {
		b.WriteString(elem.key())
	}
	return b.String()
}

// String renders the place in MIR style: _1.0, (*_1), (_1 as 1).
func (p Place) String() string {
	s := p.Local.String()
	for _, elem := range p.Projection {
		switch e := elem.(type) {
		case Field:
			s = s + "." + strconv.Itoa(e.Index)
		case Deref:
			s = "(*" + s + ")"
		case Downcast:
			s = "(" + s + " as " + strconv.Itoa(e.Variant) + ")"
		}
	}
	return s
}

// ComparePlaces orders places by local, then projection element by element
// (Field < Deref < Downcast, then by index). A prefix sorts before its
// extensions.
func ComparePlaces(a, b Place) int {
	if a.Local != b.Local {
		if a.Local < b.Local {
			return -1
		}
		return 1
	}
	n := min(len(a.Projection), len(b.Projection))
	for i := 0; i < n; i++ {
		if c := compareProjection(a.Projection[i], b.Projection[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a.Projection) < len(b.Projection):
		return -1
	case len(a.Projection) > len(b.Projection):
		return 1
	}
	return 0
}

func compareProjection(a, b Projection) int {
	ra, ia := projectionRank(a)
	rb, ib := projectionRank(b)
	if ra != rb {
		return ra - rb
	}
	switch {
	case ia < ib:
		return -1
	case ia > ib:
		return 1
	}
	return 0
}

func projectionRank(p Projection) (rank, index int) {
	switch e := p.(type) {
	case Field:
		return 0, e.Index
	case Deref:
		return 1, 0
	case Downcast:
		return 2, e.Variant
	}
	return 3, 0
}

// projectionJSON is the wire form of a Projection.
type projectionJSON struct {
	Kind    string `json:"kind"`
	Index   *int   `json:"index,omitempty"`
	Variant *int   `json:"variant,omitempty"`
}

// placeJSON is the wire form of a Place.
type placeJSON struct {
	Local      Local            `json:"local"`
	Projection []projectionJSON `json:"projection"`
}

// MarshalJSON implements json.Marshaler for Place.
func (p Place) MarshalJSON() ([]byte, error) {
	out := placeJSON{Local: p.Local, Projection: make([]projectionJSON, 0, len(p.Projection))}
	for i, elem := range p.Projection {
		switch e := elem.(type) {
		case Field:
			idx := e.Index
			out.Projection = append(out.Projection, projectionJSON{Kind: "field", Index: &idx})
		case Deref:
			out.Projection = append(out.Projection, projectionJSON{Kind: "deref"})
		case Downcast:
			v := e.Variant
			out.Projection = append(out.Projection, projectionJSON{Kind: "downcast", Variant: &v})
		default:
			return nil, fmt.Errorf("projection[%d]: unknown projection type %T", i, elem)
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler for Place.
func (p *Place) UnmarshalJSON(data []byte) error {
	var in placeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	place := Place{Local: in.Local}
	for i, elem := range in.Projection {
		switch elem.Kind {
		case "field":
			if elem.Index == nil {
				return fmt.Errorf("projection[%d]: field requires index", i)
			}
			place.Projection = append(place.Projection, Field{Index: *elem.Index})
		case "deref":
			place.Projection = append(place.Projection, Deref{})
		case "downcast":
			if elem.Variant == nil {
				return fmt.Errorf("projection[%d]: downcast requires variant", i)
			}
			place.Projection = append(place.Projection, Downcast{Variant: *elem.Variant})
		default:
			return fmt.Errorf("projection[%d]: unknown kind %q", i, elem.Kind)
		}
	}
	*p = place
	return nil
}
