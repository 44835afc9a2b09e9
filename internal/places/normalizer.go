package places

import (
	"log/slog"

	"github.com/roach88/mirdump/internal/ir"
	"github.com/roach88/mirdump/internal/oracle"
)

// Normalizer is the entry point the dataflow analysis uses to change the
// granularity of a tracked place set. It only ever calls Expand with an
// ancestor it found in the set, so callers cannot trip the prefix
// precondition through it.
//
// A Normalizer is stateless apart from its oracle and logger; it is safe
// for concurrent use on distinct sets.
type Normalizer struct {
	oracle oracle.Oracle
	logger *slog.Logger
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithLogger sets the logger. Expand and collapse steps log at Debug.
func WithLogger(l *slog.Logger) Option {
	return func(n *Normalizer) {
		n.logger = l
	}
}

// NewNormalizer creates a normalizer over o.
func NewNormalizer(o oracle.Oracle, opts ...Option) *Normalizer {
	n := &Normalizer{
		oracle: o,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// IsPrefix is the package-level IsPrefix.
func (n *Normalizer) IsPrefix(place, potentialPrefix ir.Place) bool {
	return IsPrefix(place, potentialPrefix)
}

// Expand is the package-level Expand with the normalizer's logger.
func (n *Normalizer) Expand(minuend, subtrahend ir.Place) ([]ir.Place, error) {
	return expand(n.oracle, n.logger, minuend, subtrahend)
}

// Refine makes target an explicit member of set when a coarser ancestor of
// it is tracked, splitting the ancestor with Expand. If target is already a
// member, or no ancestor is tracked, set is left unchanged. On error set is
// left unchanged.
func (n *Normalizer) Refine(set *Set, target ir.Place) error {
	if set.Contains(target) {
		return nil
	}
	anc, ok := set.Ancestor(target)
	if !ok {
		return nil
	}
	rest, err := expand(n.oracle, n.logger, anc, target)
	if err != nil {
		return err
	}
	set.Remove(anc)
	set.AddAll(rest)
	set.Add(target)
	n.logger.Debug("refine", "ancestor", anc.String(), "target", target.String(), "size", set.Len())
	return nil
}

// Generalize collapses set along guide.
func (n *Normalizer) Generalize(set *Set, guide ir.Place) error {
	return collapse(n.oracle, n.logger, set, guide)
}

// Kill removes the denotation of p from set: a tracked ancestor is split
// first, then p and everything below it are dropped.
func (n *Normalizer) Kill(set *Set, p ir.Place) error {
	if err := n.Refine(set, p); err != nil {
		return err
	}
	set.RemoveSubtree(p)
	return nil
}

// Gen adds the denotation of p to set and collapses along p.
func (n *Normalizer) Gen(set *Set, p ir.Place) error {
	if set.Covers(p) {
		return nil
	}
	set.RemoveSubtree(p)
	set.Add(p)
	return n.Generalize(set, p)
}

// Normalize collapses every complete sibling group in set until no
// further merge applies.
func (n *Normalizer) Normalize(set *Set) error {
	for changed := true; changed; {
		changed = false
		for _, p := range set.Places() {
			if !set.Contains(p) {
				continue
			}
			before := set.Len()
			if err := n.Generalize(set, p); err != nil {
				return err
			}
			if set.Len() != before {
				changed = true
			}
		}
	}
	return nil
}
