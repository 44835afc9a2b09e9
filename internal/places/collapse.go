package places

import (
	"log/slog"

	"github.com/roach88/mirdump/internal/ir"
	"github.com/roach88/mirdump/internal/oracle"
)

// Collapse walks guide from its deepest level up to the root. At each level
// it replaces a complete sibling group in set with the parent place and
// stops at the first level where a sibling is missing.
//
// Only the guide's ancestors are classified, so the guide itself may have
// a type the oracle cannot classify, and a root guide never consults the
// oracle's shapes. Levels merged before an oracle error stay merged; each
// merge preserves the set's denotation on its own.
func Collapse(o oracle.Oracle, set *Set, guide ir.Place) error {
	return collapse(o, slog.Default(), set, guide)
}

func collapse(o oracle.Oracle, logger *slog.Logger, set *Set, guide ir.Place) error {
	if err := o.Check(guide); err != nil {
		return err
	}

	cur := guide
	for {
		parent, _, ok := cur.Parent()
		if !ok {
			return nil
		}
		sibs, err := children(o, parent, NoOmit())
		if err != nil {
			return err
		}
		for _, s := range sibs {
			if !set.Contains(s) {
				return nil
			}
		}
		for _, s := range sibs {
			set.Remove(s)
		}
		set.Add(parent)
		logger.Debug("collapse", "parent", parent.String(), "children", len(sibs))
		cur = parent
	}
}
