package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/mirdump/internal/analysis"
	"github.com/roach88/mirdump/internal/ir"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs lists the CUE files holding the bodies under test.
	Specs []string `yaml:"specs"`

	// Facts is an optional nll-facts root. Each function reads
	// <facts>/<fn> if that directory exists, else the root itself.
	Facts string `yaml:"facts,omitempty"`

	// Strict aborts the analysis on unsupported types.
	Strict bool `yaml:"strict,omitempty"`

	// ExpectError is the analysis error code the run must fail with.
	// Empty means the run must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`

	// Assertions validate the run and the place algebra.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion checks one fact about a scenario.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Fn names the body the assertion is about.
	Fn string `yaml:"fn"`

	// At is the program point (state_*, stored).
	At string `yaml:"at,omitempty"`

	// State is initialized, moved_out or borrowed (state_*, stored).
	State string `yaml:"state,omitempty"`

	// Places are the expected places, or the places an algebra assertion operates on.
	Places []string `yaml:"places,omitempty"`

	// Minuend and Subtrahend are the expand operands.
	Minuend    string `yaml:"minuend,omitempty"`
	Subtrahend string `yaml:"subtrahend,omitempty"`

	// Guide and Set are the collapse operands.
	Guide string   `yaml:"guide,omitempty"`
	Set   []string `yaml:"set,omitempty"`

	// Place, Prefix and Holds describe a prefix check.
	Place  string `yaml:"place,omitempty"`
	Prefix string `yaml:"prefix,omitempty"`
	Holds  *bool  `yaml:"holds,omitempty"`
}

// Assertion type constants.
const (
	AssertStateEquals   = "state_equals"
	AssertStateCovers   = "state_covers"
	AssertStateExcludes = "state_excludes"
	AssertSkipped       = "skipped"
	AssertStored        = "stored"
	AssertExpand        = "expand"
	AssertCollapse      = "collapse"
	AssertPrefix        = "prefix"
)

// LoadScenario reads and parses a scenario YAML file, resolving spec and
// facts paths relative to the file. Returns an error if the file doesn't
// exist, is malformed, contains unknown fields (typos), or is missing
// required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve paths BEFORE validation so existence checks see real files
	base := filepath.Dir(path)
	for i, spec := range scenario.Specs {
		scenario.Specs[i] = resolve(base, spec)
	}
	if scenario.Facts != "" {
		scenario.Facts = resolve(base, scenario.Facts)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func resolve(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Specs) == 0 {
		return fmt.Errorf("specs list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 && s.ExpectError == "" {
		return fmt.Errorf("assertions list is required unless expect_error is set")
	}

	for _, spec := range s.Specs {
		if _, err := os.Stat(spec); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", spec)
		}
	}
	if s.Facts != "" {
		if _, err := os.Stat(s.Facts); os.IsNotExist(err) {
			return fmt.Errorf("facts directory not found: %s", s.Facts)
		}
	}

	switch analysis.ErrorCode(s.ExpectError) {
	case "", analysis.ErrCodeUnsupportedType, analysis.ErrCodeContractViolation,
		analysis.ErrCodeNoConvergence, analysis.ErrCodeInvalidBody:
	default:
		return fmt.Errorf("expect_error: unknown analysis error code %q", s.ExpectError)
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Fn == "" {
		return fmt.Errorf("assertions[%d]: fn is required", index)
	}

	switch a.Type {
	case AssertStateEquals, AssertStateCovers, AssertStateExcludes, AssertStored:
		if _, err := ir.ParseLocation(a.At); err != nil {
			return fmt.Errorf("assertions[%d]: at: %w", index, err)
		}
		if !slices.Contains(analysis.StateKinds, a.State) {
			return fmt.Errorf("assertions[%d]: state must be one of %v, got %q", index, analysis.StateKinds, a.State)
		}
		if a.Type != AssertStateEquals && a.Type != AssertStored && len(a.Places) == 0 {
			return fmt.Errorf("assertions[%d]: places list is required for %s", index, a.Type)
		}
	case AssertSkipped:
		if len(a.Places) == 0 {
			return fmt.Errorf("assertions[%d]: places list is required for skipped", index)
		}
	case AssertExpand:
		if a.Minuend == "" || a.Subtrahend == "" {
			return fmt.Errorf("assertions[%d]: minuend and subtrahend are required for expand", index)
		}
	case AssertCollapse:
		if a.Guide == "" {
			return fmt.Errorf("assertions[%d]: guide is required for collapse", index)
		}
	case AssertPrefix:
		if a.Place == "" || a.Prefix == "" {
			return fmt.Errorf("assertions[%d]: place and prefix are required for prefix", index)
		}
		if a.Holds == nil {
			return fmt.Errorf("assertions[%d]: holds is required for prefix", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
