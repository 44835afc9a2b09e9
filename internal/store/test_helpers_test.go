package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/mirdump/internal/analysis"
	"github.com/roach88/mirdump/internal/ir"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a run with two functions. Function "f" has two
// points and one skipped place; "g" has a single point with no places.
func createTestRun(id string) *analysis.Run {
	x := ir.NewPlace(0)
	xf := x.Field(0)
	xk := x.Field(1)
	r := ir.NewPlace(1)

	return &analysis.Run{
		ID:              id,
		IRVersion:       ir.IRVersion,
		AnalyzerVersion: ir.AnalyzerVersion,
		Results: []analysis.Result{
			{
				Function: "f",
				BodyHash: "hash-f",
				Points: []analysis.PointState{
					{
						Seq:         1,
						Location:    ir.Location{Block: 0, Statement: 0},
						Initialized: []ir.Place{x},
						MovedOut:    []ir.Place{},
						Borrowed:    []ir.Place{},
					},
					{
						Seq:         2,
						Location:    ir.Location{Block: 0, Statement: 1},
						Initialized: []ir.Place{xk},
						MovedOut:    []ir.Place{xf},
						Borrowed:    []ir.Place{r},
					},
				},
				Skipped: map[string]string{"m.0": "unsupported type Mystery"},
				Visits:  1,
			},
			{
				Function: "g",
				BodyHash: "hash-g",
				Points: []analysis.PointState{
					{
						Seq:         3,
						Location:    ir.Location{Block: 0, Statement: 0},
						Initialized: []ir.Place{},
						MovedOut:    []ir.Place{},
						Borrowed:    []ir.Place{},
					},
				},
				Visits: 1,
			},
		},
	}
}
