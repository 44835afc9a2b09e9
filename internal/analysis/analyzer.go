package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/mirdump/internal/facts"
	"github.com/roach88/mirdump/internal/ir"
	"github.com/roach88/mirdump/internal/oracle"
	"github.com/roach88/mirdump/internal/places"
)

// PointState is the analysis result at one program point: the state
// holding before the statement (or terminator) at Location executes.
type PointState struct {
	Seq         int64       `json:"seq"`
	Location    ir.Location `json:"location"`
	Initialized []ir.Place  `json:"initialized"`
	MovedOut    []ir.Place  `json:"moved_out"`
	Borrowed    []ir.Place  `json:"borrowed"`
}

// Places returns the places of one state kind.
func (p PointState) Places(kind string) []ir.Place {
	switch kind {
	case StateInitialized:
		return p.Initialized
	case StateMovedOut:
		return p.MovedOut
	case StateBorrowed:
		return p.Borrowed
	}
	return nil
}

// Result is the analysis of one body.
type Result struct {
	Function string       `json:"function"`
	BodyHash string       `json:"body_hash"`
	Points   []PointState `json:"points"`

	// Skipped maps each place the oracle could not classify to the reason.
	Skipped map[string]string `json:"skipped,omitempty"`

	// Visits is the number of block visits the fixpoint took.
	Visits int `json:"visits"`
}

// Run groups the results of one AnalyzeAll call.
type Run struct {
	ID              string   `json:"id"`
	IRVersion       string   `json:"ir_version"`
	AnalyzerVersion string   `json:"analyzer_version"`
	Results         []Result `json:"results"`
}

// FactSource returns the fact table for a function. A nil source, or a nil
// table, means no loans.
type FactSource func(fn string) (*facts.Table, error)

// Analyzer runs the forward dataflow analysis that tracks initialized,
// moved-out and borrowed places per program point.
//
// An Analyzer holds configuration only. Each Analyze call owns its sets,
// so one Analyzer can serve concurrent calls.
type Analyzer struct {
	logger    *slog.Logger
	strict    bool
	maxVisits int
	workers   int
	ids       RunIDGenerator
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = l
	}
}

// WithStrict makes unsupported types abort the analysis with
// ErrCodeUnsupportedType instead of skipping the place.
func WithStrict(strict bool) Option {
	return func(a *Analyzer) {
		a.strict = strict
	}
}

// WithMaxVisits sets the block visit budget per body.
//
// Default: DefaultMaxVisits.
func WithMaxVisits(n int) Option {
	return func(a *Analyzer) {
		a.maxVisits = n
	}
}

// WithConcurrency bounds how many bodies AnalyzeAll processes at once.
//
// Default: runtime.GOMAXPROCS(0).
func WithConcurrency(n int) Option {
	return func(a *Analyzer) {
		a.workers = n
	}
}

// WithRunIDGenerator sets the run id source. Defaults to UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(a *Analyzer) {
		a.ids = g
	}
}

// New creates an Analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		logger:    slog.Default(),
		maxVisits: DefaultMaxVisits,
		workers:   runtime.GOMAXPROCS(0),
		ids:       UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze runs the analysis over body to a fixpoint. tab may be nil.
//
// Contract violations inside the place algebra are returned as
// ErrCodeContractViolation errors.
func (a *Analyzer) Analyze(ctx context.Context, body *ir.Body, tab *facts.Table) (res *Result, err error) {
	if tab == nil {
		tab = facts.Empty()
	}
	err = places.Guard(func() error {
		var ierr error
		res, ierr = a.analyze(ctx, body, tab)
		return ierr
	})
	if places.IsContractViolation(err) {
		return nil, &AnalysisError{
			Code:     ErrCodeContractViolation,
			Message:  "place algebra precondition failed",
			Function: body.Name,
			Err:      err,
		}
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (a *Analyzer) analyze(ctx context.Context, body *ir.Body, tab *facts.Table) (*Result, error) {
	if err := checkTargets(body); err != nil {
		return nil, err
	}
	hash, err := ir.BodyHash(*body)
	if err != nil {
		return nil, fmt.Errorf("hash body %s: %w", body.Name, err)
	}

	o := oracle.New(body)
	w := &walker{
		fn:      body.Name,
		strict:  a.strict,
		logger:  a.logger,
		oracle:  o,
		norm:    places.NewNormalizer(o, places.WithLogger(a.logger)),
		skipped: map[string]string{},
	}

	n := len(body.Blocks)
	outs := make([]*state, n)
	ins := make([]*state, n)
	snaps := make(map[ir.Location]state)
	preds := make([][]int, n)
	for b := range body.Blocks {
		preds[b] = body.Predecessors(b)
	}

	wl := newWorklist(n)
	bud := newBudget(a.maxVisits)
	for {
		b, ok := wl.pop()
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := bud.spend(body.Name); err != nil {
			return nil, err
		}

		in, err := a.entry(w, body, b, preds[b], outs)
		if err != nil {
			return nil, err
		}
		if ins[b] != nil && ins[b].equal(in) && outs[b] != nil {
			continue
		}
		ins[b] = &in

		cur := in.clone()
		blk := body.Blocks[b]
		for i, stmt := range blk.Statements {
			loc := ir.Location{Block: b, Statement: i}
			snaps[loc] = cur.clone()
			if err := w.statement(cur, stmt, loc); err != nil {
				return nil, err
			}
		}
		loc := ir.Location{Block: b, Statement: len(blk.Statements)}
		snaps[loc] = cur.clone()
		if err := w.terminator(cur, blk.Terminator, loc); err != nil {
			return nil, err
		}

		if outs[b] == nil || !outs[b].equal(cur) {
			outs[b] = &cur
			for _, succ := range body.Successors(b) {
				wl.push(succ)
			}
		}
		a.logger.Debug("visited block", "fn", body.Name, "block", b, "pending", wl.len())
	}

	res := &Result{
		Function: body.Name,
		BodyHash: hash,
		Visits:   bud.current,
	}
	if len(w.skipped) > 0 {
		res.Skipped = w.skipped
	}
	clock := NewClock()
	for _, loc := range body.Locations() {
		s, ok := snaps[loc]
		if !ok {
			s = emptyState()
		}
		borrowed, err := a.borrowed(w, body, tab, loc)
		if err != nil {
			return nil, err
		}
		res.Points = append(res.Points, PointState{
			Seq:         clock.Next(),
			Location:    loc,
			Initialized: s.init.Places(),
			MovedOut:    s.moved.Places(),
			Borrowed:    borrowed,
		})
	}

	a.logger.Info("analyzed body",
		"fn", body.Name,
		"blocks", n,
		"points", len(res.Points),
		"visits", res.Visits,
		"skipped", len(res.Skipped))
	return res, nil
}

// entry computes the state on entry to block b: the join of the visited
// predecessors, plus the argument state for the entry block.
func (a *Analyzer) entry(w *walker, body *ir.Body, b int, preds []int, outs []*state) (state, error) {
	var ins []state
	if b == 0 {
		s := emptyState()
		for i, decl := range body.Locals {
			if decl.Arg {
				s.init.Add(ir.NewPlace(ir.Local(i)))
			}
		}
		ins = append(ins, s)
	}
	for _, p := range preds {
		if outs[p] != nil {
			ins = append(ins, *outs[p])
		}
	}
	if len(ins) == 0 {
		return emptyState(), nil
	}

	joined := ins[0].clone()
	for _, s := range ins[1:] {
		joined.init = places.Intersect(joined.init, s.init)
		joined.moved = places.Union(joined.moved, s.moved)
	}
	if len(ins) > 1 {
		loc := ir.Location{Block: b}
		if err := w.normalize(joined.init, loc); err != nil {
			return state{}, err
		}
		if err := w.normalize(joined.moved, loc); err != nil {
			return state{}, err
		}
	}
	return joined, nil
}

// borrowed resolves the loans live at loc to the places they borrow.
// A loan whose issuing statement is not a ref assignment is ignored.
func (a *Analyzer) borrowed(w *walker, body *ir.Body, tab *facts.Table, loc ir.Location) ([]ir.Place, error) {
	set := places.NewSet()
	for _, loan := range tab.LiveLoansAt(loc) {
		at, ok := tab.IssuedAt(loan)
		if !ok {
			continue
		}
		stmt, ok := body.StatementAt(at)
		if !ok || stmt.Kind != ir.StmtAssign || stmt.Rvalue == nil ||
			stmt.Rvalue.Kind != ir.RvalueRef || stmt.Rvalue.Place == nil {
			a.logger.Debug("loan without a ref statement", "fn", body.Name, "loan", string(loan), "at", at.String())
			continue
		}
		set.Add(*stmt.Rvalue.Place)
	}
	set = places.Union(set, places.NewSet())
	if err := w.normalize(set, loc); err != nil {
		return nil, err
	}
	return set.Places(), nil
}

func checkTargets(body *ir.Body) error {
	if len(body.Blocks) == 0 {
		return &AnalysisError{Code: ErrCodeInvalidBody, Message: "body has no blocks", Function: body.Name}
	}
	for b, blk := range body.Blocks {
		for _, t := range blk.Terminator.Targets {
			if t < 0 || t >= len(body.Blocks) {
				return &AnalysisError{
					Code:     ErrCodeInvalidBody,
					Message:  fmt.Sprintf("block %s targets unknown block %d", blk.Name, t),
					Function: body.Name,
					Location: ir.Location{Block: b, Statement: len(blk.Statements)}.String(),
				}
			}
		}
	}
	return nil
}

// AnalyzeAll analyzes bodies concurrently, each goroutine owning its own
// sets, and returns the results in input order under a fresh run id. Seq
// numbers are stamped across the whole run in that order.
func (a *Analyzer) AnalyzeAll(ctx context.Context, bodies []*ir.Body, source FactSource) (*Run, error) {
	results := make([]*Result, len(bodies))

	g, gctx := errgroup.WithContext(ctx)
	if a.workers > 0 {
		g.SetLimit(a.workers)
	}
	for i, body := range bodies {
		g.Go(func() error {
			var tab *facts.Table
			if source != nil {
				t, err := source(body.Name)
				if err != nil {
					return fmt.Errorf("facts for %s: %w", body.Name, err)
				}
				tab = t
			}
			res, err := a.Analyze(gctx, body, tab)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	run := &Run{
		ID:              a.ids.Generate(),
		IRVersion:       ir.IRVersion,
		AnalyzerVersion: ir.AnalyzerVersion,
		Results:         make([]Result, 0, len(results)),
	}
	clock := NewClock()
	for _, res := range results {
		for j := range res.Points {
			res.Points[j].Seq = clock.Next()
		}
		run.Results = append(run.Results, *res)
	}
	a.logger.Info("analysis run complete", "run", run.ID, "bodies", len(run.Results), "points", clock.Current())
	return run, nil
}

// Find returns the result for fn.
func (r *Run) Find(fn string) (*Result, bool) {
	i := slices.IndexFunc(r.Results, func(res Result) bool { return res.Function == fn })
	if i < 0 {
		return nil, false
	}
	return &r.Results[i], true
}
