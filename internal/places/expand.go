package places

import (
	"log/slog"

	"github.com/roach88/mirdump/internal/ir"
	"github.com/roach88/mirdump/internal/oracle"
)

// Expand returns the places that cover minuend minus subtrahend, unrolled
// down to the subtrahend's depth. For example, with x.f a struct {g, h}
// and x a struct {f, k}:
//
//	Expand(x, x.f.g) == [x.k, x.f.h]
//
// The results are pairwise disjoint and, together with subtrahend, cover
// exactly minuend. subtrahend must extend minuend; anything else panics
// with CodeInvalidPrefix.
func Expand(o oracle.Oracle, minuend, subtrahend ir.Place) ([]ir.Place, error) {
	return expand(o, slog.Default(), minuend, subtrahend)
}

func expand(o oracle.Oracle, logger *slog.Logger, minuend, subtrahend ir.Place) ([]ir.Place, error) {
	if !IsPrefix(subtrahend, minuend) {
		violate(CodeInvalidPrefix, subtrahend, "minuend %s must be a prefix of the subtrahend", minuend)
	}
	logger.Debug("[enter] expand", "minuend", minuend.String(), "subtrahend", subtrahend.String())

	// Check the subtrahend's projection first: an element that does not
	// fit its prefix surfaces as an oracle error instead of a wrong split.
	// Its own type is never expanded, so it may be one the oracle cannot
	// classify.
	if err := o.Check(subtrahend); err != nil {
		return nil, err
	}

	var result []ir.Place
	cur := minuend
	for d := minuend.Depth(); d < subtrahend.Depth(); d++ {
		step := subtrahend.Projection[d]
		sibs, err := children(o, cur, OmitIndex(stepIndex(step)))
		if err != nil {
			return nil, err
		}
		result = append(result, sibs...)
		cur = cur.Project(step)
	}

	logger.Debug("[exit] expand",
		"minuend", minuend.String(),
		"subtrahend", subtrahend.String(),
		"places", len(result))
	return result, nil
}
