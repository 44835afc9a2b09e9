package facts

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/roach88/mirdump/internal/ir"
)

// Loan identifies a borrow, e.g. "bw0".
type Loan string

// Issue records where a loan was created and for which origin.
type Issue struct {
	Origin string
	At     ir.Location
}

// Table is the per-function fact stream, indexed for per-point queries.
// A Table is read-only once built and then safe for concurrent use.
type Table struct {
	issued      map[Loan]Issue
	killed      map[ir.Location][]Loan
	invalidated map[ir.Location][]Loan
	edges       map[ir.Location][]ir.Location
	live        map[ir.Location][]Loan

	// Derived is true when loan_live_at was absent and liveness was
	// approximated from cfg_edge.
	Derived bool
}

// Empty returns a table with no facts.
func Empty() *Table {
	return &Table{
		issued:      map[Loan]Issue{},
		killed:      map[ir.Location][]Loan{},
		invalidated: map[ir.Location][]Loan{},
		edges:       map[ir.Location][]ir.Location{},
		live:        map[ir.Location][]Loan{},
	}
}

// Dir returns the facts directory for fn below root. rustc writes one
// subdirectory per function; a root that holds .facts files directly is
// used as is.
func Dir(root, fn string) string {
	sub := filepath.Join(root, fn)
	if info, err := os.Stat(sub); err == nil && info.IsDir() {
		return sub
	}
	return root
}

// Load reads a facts directory. loan_issued_at.facts is required; the other
// relations default to empty. Without loan_live_at.facts a loan is taken to
// be live from its issuing point along cfg_edge until it is killed.
func Load(dir string) (*Table, error) {
	t := Empty()

	issued, found, err := readRelation(dir, RelLoanIssuedAt)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &ParseError{File: filepath.Join(dir, RelLoanIssuedAt+".facts"), Message: "required relation missing"}
	}
	for _, tup := range issued {
		at, err := ir.ParseLocation(tup[2])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", RelLoanIssuedAt, err)
		}
		t.issued[Loan(tup[1])] = Issue{Origin: tup[0], At: at}
	}

	if err := t.loadIndex(dir, RelLoanKilledAt, 1, 0, t.killed); err != nil {
		return nil, err
	}
	if err := t.loadIndex(dir, RelLoanInvalidatedAt, 0, 1, t.invalidated); err != nil {
		return nil, err
	}

	edges, _, err := readRelation(dir, RelCFGEdge)
	if err != nil {
		return nil, err
	}
	for _, tup := range edges {
		from, err := ir.ParseLocation(tup[0])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", RelCFGEdge, err)
		}
		to, err := ir.ParseLocation(tup[1])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", RelCFGEdge, err)
		}
		if from != to && !slices.Contains(t.edges[from], to) {
			t.edges[from] = append(t.edges[from], to)
		}
	}

	live, liveFound, err := readRelation(dir, RelLoanLiveAt)
	if err != nil {
		return nil, err
	}
	if liveFound {
		for _, tup := range live {
			at, err := ir.ParseLocation(tup[1])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", RelLoanLiveAt, err)
			}
			t.addLive(at, Loan(tup[0]))
		}
	} else {
		t.deriveLiveness()
		t.Derived = true
	}
	return t, nil
}

// loadIndex reads a (loan, point) relation into idx with the given column
// positions.
func (t *Table) loadIndex(dir, rel string, pointCol, loanCol int, idx map[ir.Location][]Loan) error {
	tuples, _, err := readRelation(dir, rel)
	if err != nil {
		return err
	}
	for _, tup := range tuples {
		at, err := ir.ParseLocation(tup[pointCol])
		if err != nil {
			return fmt.Errorf("%s: %w", rel, err)
		}
		loan := Loan(tup[loanCol])
		if !slices.Contains(idx[at], loan) {
			idx[at] = append(idx[at], loan)
		}
	}
	return nil
}

func (t *Table) addLive(at ir.Location, loan Loan) {
	if slices.Contains(t.live[at], loan) {
		return
	}
	t.live[at] = append(t.live[at], loan)
	slices.Sort(t.live[at])
}

// deriveLiveness walks cfg_edge from each issuing point and marks the loan
// live at every reachable point until a point that kills it.
func (t *Table) deriveLiveness() {
	for _, loan := range t.Loans() {
		start := t.issued[loan].At
		seen := map[ir.Location]bool{start: true}
		work := []ir.Location{start}
		for len(work) > 0 {
			at := work[len(work)-1]
			work = work[:len(work)-1]
			t.addLive(at, loan)
			if at != start && slices.Contains(t.killed[at], loan) {
				continue
			}
			for _, next := range t.edges[at] {
				if !seen[next] {
					seen[next] = true
					work = append(work, next)
				}
			}
		}
	}
}

// Issue adds a loan_issued_at tuple. Used when building tables in code.
func (t *Table) Issue(origin string, loan Loan, at ir.Location) {
	t.issued[loan] = Issue{Origin: origin, At: at}
}

// MarkLive adds a loan_live_at tuple.
func (t *Table) MarkLive(loan Loan, at ir.Location) {
	t.addLive(at, loan)
}

// Loans returns every issued loan in sorted order.
func (t *Table) Loans() []Loan {
	out := make([]Loan, 0, len(t.issued))
	for l := range t.issued {
		out = append(out, l)
	}
	slices.Sort(out)
	return out
}

// IssuedAt returns the location that issued loan.
func (t *Table) IssuedAt(loan Loan) (ir.Location, bool) {
	is, ok := t.issued[loan]
	return is.At, ok
}

// LiveLoansAt returns the loans live at loc in sorted order.
func (t *Table) LiveLoansAt(loc ir.Location) []Loan {
	return slices.Clone(t.live[loc])
}

// KilledAt returns the loans killed at loc.
func (t *Table) KilledAt(loc ir.Location) []Loan {
	return slices.Clone(t.killed[loc])
}

// InvalidatedAt returns the loans invalidated at loc.
func (t *Table) InvalidatedAt(loc ir.Location) []Loan {
	return slices.Clone(t.invalidated[loc])
}
