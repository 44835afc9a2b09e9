package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/mirdump/internal/ir"
)

// Snapshot captures the complete analysis output for a scenario.
type Snapshot struct {
	ScenarioName string              `json:"scenario_name"`
	RunID        string              `json:"run_id,omitempty"`
	ErrorCode    string              `json:"error_code,omitempty"`
	Points       []PointSnapshot     `json:"points"`
	Skipped      map[string][]string `json:"skipped,omitempty"`
}

// SnapshotBytes renders a result as canonical JSON, the golden file format.
func SnapshotBytes(scenarioName string, result *Result) ([]byte, error) {
	return ir.MarshalCanonical(Snapshot{
		ScenarioName: scenarioName,
		RunID:        result.RunID,
		ErrorCode:    result.ErrorCode,
		Points:       result.Points,
		Skipped:      result.Skipped,
	})
}

// RunWithGolden executes a scenario and compares the snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns an error if scenario execution fails. Test failure (via goldie)
// occurs if the snapshot doesn't match the golden file; assertion failures
// are reported through t.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return err
	}
	for _, e := range result.Errors {
		t.Error(e)
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an already computed result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := SnapshotBytes(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
