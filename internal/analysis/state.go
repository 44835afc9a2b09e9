package analysis

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/mirdump/internal/ir"
	"github.com/roach88/mirdump/internal/oracle"
	"github.com/roach88/mirdump/internal/places"
)

// State kinds as stored and printed.
const (
	StateInitialized = "initialized"
	StateMovedOut    = "moved_out"
	StateBorrowed    = "borrowed"
)

// StateKinds lists the state kinds in output order.
var StateKinds = []string{StateInitialized, StateMovedOut, StateBorrowed}

// state is the dataflow value at one program point. init is a must set
// (joined by intersection), moved a may set (joined by union).
type state struct {
	init  *places.Set
	moved *places.Set
}

func emptyState() state {
	return state{init: places.NewSet(), moved: places.NewSet()}
}

func (s state) clone() state {
	return state{init: s.init.Clone(), moved: s.moved.Clone()}
}

func (s state) equal(o state) bool {
	return s.init.Equal(o.init) && s.moved.Equal(o.moved)
}

// walker applies transfer functions for one body. It owns no sets; every
// set it touches belongs to the caller's current state.
type walker struct {
	fn      string
	strict  bool
	logger  *slog.Logger
	oracle  *oracle.TableOracle
	norm    *places.Normalizer
	skipped map[string]string
}

// handle classifies an error from the place algebra. Unsupported types
// are fatal in strict mode; otherwise the place is recorded as skipped and
// nil is returned so the caller can fall back.
func (w *walker) handle(err error, p ir.Place, loc ir.Location) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, oracle.ErrUnsupported) {
		if w.strict {
			return &AnalysisError{
				Code:     ErrCodeUnsupportedType,
				Message:  fmt.Sprintf("cannot refine %s", w.oracle.Format(p)),
				Function: w.fn,
				Location: loc.String(),
				Err:      err,
			}
		}
		name := w.oracle.Format(p)
		if _, seen := w.skipped[name]; !seen {
			w.skipped[name] = err.Error()
			w.logger.Warn("skipping refinement of unsupported place",
				"fn", w.fn,
				"place", name,
				"at", loc.String(),
				"error", err)
		}
		return nil
	}
	return &AnalysisError{
		Code:     ErrCodeInvalidBody,
		Message:  fmt.Sprintf("place %s", w.oracle.Format(p)),
		Function: w.fn,
		Location: loc.String(),
		Err:      err,
	}
}

// kill removes p from set. When p cannot be refined, a must set drops the
// whole covering ancestor and a may set keeps it; both stay sound.
func (w *walker) kill(set *places.Set, p ir.Place, must bool, loc ir.Location) error {
	err := w.norm.Kill(set, p)
	if err == nil {
		return nil
	}
	if err := w.handle(err, p, loc); err != nil {
		return err
	}
	if must {
		if anc, ok := set.Ancestor(p); ok {
			set.Remove(anc)
		}
	}
	set.RemoveSubtree(p)
	return nil
}

// gen adds p to set and generalizes. A failed generalization leaves p
// added but uncollapsed.
func (w *walker) gen(set *places.Set, p ir.Place, loc ir.Location) error {
	return w.handle(w.norm.Gen(set, p), p, loc)
}

// normalize collapses a joined set.
func (w *walker) normalize(set *places.Set, loc ir.Location) error {
	err := w.norm.Normalize(set)
	if err == nil {
		return nil
	}
	var ute *oracle.UnsupportedTypeError
	p := ir.Place{}
	if errors.As(err, &ute) {
		p = ute.Place
	}
	return w.handle(err, p, loc)
}

func (w *walker) operands(s state, ops []ir.Operand, loc ir.Location) error {
	for _, op := range ops {
		if op.Kind != ir.OperandMove || op.Place == nil {
			continue
		}
		if err := w.kill(s.init, *op.Place, true, loc); err != nil {
			return err
		}
		if err := w.gen(s.moved, *op.Place, loc); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) assign(s state, p ir.Place, loc ir.Location) error {
	if err := w.gen(s.init, p, loc); err != nil {
		return err
	}
	return w.kill(s.moved, p, false, loc)
}

// statement applies the effect of stmt to s.
func (w *walker) statement(s state, stmt ir.Statement, loc ir.Location) error {
	switch stmt.Kind {
	case ir.StmtAssign:
		if stmt.Rvalue != nil {
			if err := w.operands(s, stmt.Rvalue.Operands, loc); err != nil {
				return err
			}
		}
		if stmt.Place != nil {
			return w.assign(s, *stmt.Place, loc)
		}
	case ir.StmtStorageLive:
		return w.kill(s.init, ir.NewPlace(stmt.Local), true, loc)
	case ir.StmtStorageDead:
		local := ir.NewPlace(stmt.Local)
		if err := w.kill(s.init, local, true, loc); err != nil {
			return err
		}
		return w.kill(s.moved, local, false, loc)
	}
	return nil
}

// terminator applies the effect of term to s.
func (w *walker) terminator(s state, term ir.Terminator, loc ir.Location) error {
	if err := w.operands(s, term.Args, loc); err != nil {
		return err
	}
	switch term.Kind {
	case ir.TermCall:
		if term.Destination != nil {
			return w.assign(s, *term.Destination, loc)
		}
	case ir.TermDrop:
		if term.Place != nil {
			return w.kill(s.init, *term.Place, true, loc)
		}
	}
	return nil
}
