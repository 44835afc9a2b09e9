package analysis

import "fmt"

// DefaultMaxVisits is the default maximum number of block visits per body.
// The lattices are finite so the fixpoint always settles; the budget turns
// a bug in a transfer function into an error instead of a hang.
const DefaultMaxVisits = 10000

// budget counts block visits for one body and enforces the limit.
type budget struct {
	max     int
	current int
}

func newBudget(limit int) *budget {
	return &budget{max: limit}
}

// spend records one visit and fails once the limit is exceeded.
func (b *budget) spend(fn string) error {
	b.current++
	if b.current > b.max {
		return &AnalysisError{
			Code:     ErrCodeNoConvergence,
			Message:  fmt.Sprintf("fixpoint exceeded max visits (%d > %d)", b.current, b.max),
			Function: fn,
			Details: map[string]string{
				"visits":     fmt.Sprintf("%d", b.current),
				"max_visits": fmt.Sprintf("%d", b.max),
			},
		}
	}
	return nil
}
