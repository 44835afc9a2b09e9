package places

import (
	"maps"
	"slices"
	"strings"

	"github.com/roach88/mirdump/internal/ir"
)

// Set is an unordered, deduplicated collection of places keyed by
// ir.Place.Key. The zero value is not usable; call NewSet.
//
// A Set is not safe for concurrent use. Callers that analyze program
// points in parallel give each goroutine its own Set.
type Set struct {
	m map[string]ir.Place
}

// NewSet returns a set holding ps.
func NewSet(ps ...ir.Place) *Set {
	s := &Set{m: make(map[string]ir.Place, len(ps))}
	for _, p := range ps {
		s.m[p.Key()] = p
	}
	return s
}

// Add inserts p and reports whether it was absent.
func (s *Set) Add(p ir.Place) bool {
	k := p.Key()
	if _, ok := s.m[k]; ok {
		return false
	}
	s.m[k] = p
	return true
}

// AddAll inserts every place of ps.
func (s *Set) AddAll(ps []ir.Place) {
	for _, p := range ps {
		s.m[p.Key()] = p
	}
}

// Remove deletes p and reports whether it was present.
func (s *Set) Remove(p ir.Place) bool {
	k := p.Key()
	if _, ok := s.m[k]; !ok {
		return false
	}
	delete(s.m, k)
	return true
}

// Contains reports membership of exactly p.
func (s *Set) Contains(p ir.Place) bool {
	_, ok := s.m[p.Key()]
	return ok
}

// Len returns the number of places.
func (s *Set) Len() int { return len(s.m) }

// Places returns the members ordered by ir.ComparePlaces.
func (s *Set) Places() []ir.Place {
	out := make([]ir.Place, 0, len(s.m))
	for _, p := range s.m {
		out = append(out, p)
	}
	slices.SortFunc(out, ir.ComparePlaces)
	return out
}

// Clone returns an independent copy.
func (s *Set) Clone() *Set {
	return &Set{m: maps.Clone(s.m)}
}

// Equal reports whether both sets hold the same places.
func (s *Set) Equal(other *Set) bool {
	if len(s.m) != len(other.m) {
		return false
	}
	for k := range s.m {
		if _, ok := other.m[k]; !ok {
			return false
		}
	}
	return true
}

// Ancestor returns the member that is a prefix of p (p itself included),
// if any. In a normalized set there is at most one.
func (s *Set) Ancestor(p ir.Place) (ir.Place, bool) {
	for n := p.Depth(); n >= 0; n-- {
		if q, ok := s.m[p.Prefix(n).Key()]; ok {
			return q, true
		}
	}
	return ir.Place{}, false
}

// Covers reports whether some member's denotation includes all of p.
func (s *Set) Covers(p ir.Place) bool {
	_, ok := s.Ancestor(p)
	return ok
}

// RemoveSubtree deletes p and every member p is a prefix of.
func (s *Set) RemoveSubtree(p ir.Place) {
	for k, q := range s.m {
		if IsPrefix(q, p) {
			delete(s.m, k)
		}
	}
}

// Digest returns the content hash of the set.
func (s *Set) Digest() (string, error) {
	return ir.PlaceSetDigest(s.Places())
}

// String renders the set as {a, b, c} in sorted order.
func (s *Set) String() string {
	ps := s.Places()
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
