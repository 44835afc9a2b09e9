package places

import "github.com/roach88/mirdump/internal/ir"

// Union returns a set whose denotation is the union of a and b. Members
// already covered by an ancestor in the result are dropped. The result is
// not collapsed; run Normalizer.Normalize for the coarsest form.
func Union(a, b *Set) *Set {
	out := a.Clone()
	for _, p := range b.m {
		out.Add(p)
	}
	return dropCovered(out)
}

// Intersect returns a set whose denotation is the intersection of a and b.
// A member of one side survives when the other side covers it.
func Intersect(a, b *Set) *Set {
	out := NewSet()
	for _, p := range a.m {
		if b.Covers(p) {
			out.Add(p)
		}
	}
	for _, q := range b.m {
		if a.Covers(q) {
			out.Add(q)
		}
	}
	return dropCovered(out)
}

// dropCovered removes members that have a strict ancestor in s.
func dropCovered(s *Set) *Set {
	var covered []ir.Place
	for _, p := range s.m {
		for n := p.Depth() - 1; n >= 0; n-- {
			if s.Contains(p.Prefix(n)) {
				covered = append(covered, p)
				break
			}
		}
	}
	for _, p := range covered {
		s.Remove(p)
	}
	return s
}
