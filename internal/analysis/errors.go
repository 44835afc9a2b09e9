package analysis

import (
	"errors"
	"fmt"
)

// AnalysisError represents an error detected while analyzing a body.
//
// Analysis errors include:
//   - Unsupported type: the oracle cannot classify a place (strict mode only)
//   - Contract violation: the place algebra was called with a broken precondition
//   - No convergence: the fixpoint exceeded the iteration budget
//
// AnalysisError includes structured fields for diagnostics.
type AnalysisError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Function names the body being analyzed.
	Function string

	// Location is the program point, when known ("bb0[1]").
	Location string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes analysis errors.
type ErrorCode string

const (
	// ErrCodeUnsupportedType indicates the oracle could not classify a place.
	ErrCodeUnsupportedType ErrorCode = "UNSUPPORTED_TYPE"

	// ErrCodeContractViolation indicates a place algebra precondition failed.
	ErrCodeContractViolation ErrorCode = "CONTRACT_VIOLATION"

	// ErrCodeNoConvergence indicates the fixpoint did not settle in budget.
	ErrCodeNoConvergence ErrorCode = "NO_CONVERGENCE"

	// ErrCodeInvalidBody indicates a malformed body (bad block target, ...).
	ErrCodeInvalidBody ErrorCode = "INVALID_BODY"
)

// Error implements the error interface.
func (e *AnalysisError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Function != "" {
		msg += " (fn=" + e.Function
		if e.Location != "" {
			msg += ", at=" + e.Location
		}
		msg += ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *AnalysisError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

// IsUnsupportedTypeError returns true if err is an UNSUPPORTED_TYPE error.
// Uses errors.As to handle wrapped errors.
func IsUnsupportedTypeError(err error) bool {
	return hasCode(err, ErrCodeUnsupportedType)
}

// IsContractViolationError returns true if err is a CONTRACT_VIOLATION error.
func IsContractViolationError(err error) bool {
	return hasCode(err, ErrCodeContractViolation)
}

// IsNoConvergenceError returns true if err is a NO_CONVERGENCE error.
func IsNoConvergenceError(err error) bool {
	return hasCode(err, ErrCodeNoConvergence)
}
