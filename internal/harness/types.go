package harness

// PointSnapshot is the formatted analysis state at one program point.
// Place lists are sorted so snapshots compare byte for byte.
type PointSnapshot struct {
	Function    string   `json:"fn"`
	At          string   `json:"at"`
	Initialized []string `json:"initialized"`
	MovedOut    []string `json:"moved_out"`
	Borrowed    []string `json:"borrowed"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if the run matched expect_error and every assertion held.
	Pass bool `json:"pass"`

	// RunID is the fixed id the run was stored under.
	RunID string `json:"run_id,omitempty"`

	// Points holds every program point of every body, in run order.
	// Empty when the analysis failed.
	Points []PointSnapshot `json:"points"`

	// Skipped maps each function to the sorted places it skipped.
	Skipped map[string][]string `json:"skipped,omitempty"`

	// ErrorCode is the analysis error code, when the run failed.
	ErrorCode string `json:"error_code,omitempty"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Points: []PointSnapshot{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
