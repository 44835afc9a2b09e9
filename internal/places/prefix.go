package places

import "github.com/roach88/mirdump/internal/ir"

// IsPrefix reports whether potentialPrefix is an ancestor of, or equal to,
// place: same local, and place's projection starts with potentialPrefix's
// projection element by element.
//
//	IsPrefix(x.f, x.f)   == true
//	IsPrefix(x.f.g, x.f) == true
//	IsPrefix(x.f, x.f.g) == false
func IsPrefix(place, potentialPrefix ir.Place) bool {
	if place.Local != potentialPrefix.Local || len(potentialPrefix.Projection) > len(place.Projection) {
		return false
	}
	for i, elem := range potentialPrefix.Projection {
		if place.Projection[i] != elem {
			return false
		}
	}
	return true
}

// Overlaps reports whether the denotations of a and b intersect, which for
// places means one is a prefix of the other.
func Overlaps(a, b ir.Place) bool {
	return IsPrefix(a, b) || IsPrefix(b, a)
}
