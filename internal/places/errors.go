package places

import (
	"errors"
	"fmt"

	"github.com/roach88/mirdump/internal/ir"
)

// ViolationCode categorizes contract violations.
type ViolationCode string

const (
	// CodeInvalidPrefix: Expand called with a subtrahend that does not
	// extend the minuend.
	CodeInvalidPrefix ViolationCode = "INVALID_PREFIX"

	// CodeExpandLeaf: a place with no children was expanded.
	CodeExpandLeaf ViolationCode = "EXPAND_LEAF"

	// CodeInvalidOmit: the omitted child does not exist on the place.
	CodeInvalidOmit ViolationCode = "INVALID_OMIT"

	// CodeEnumNotDowncast: an enum place was expanded before a variant
	// was fixed by a downcast.
	CodeEnumNotDowncast ViolationCode = "ENUM_NOT_DOWNCAST"
)

// ContractViolation is the panic value raised when a caller breaks a
// precondition of the algebra. It is never returned by the algebra
// itself; Guard turns it into an error at package boundaries.
type ContractViolation struct {
	Code    ViolationCode
	Place   ir.Place
	Message string
}

// Error implements the error interface.
func (e *ContractViolation) Error() string {
	return fmt.Sprintf("%s: %s (place=%s)", e.Code, e.Message, e.Place)
}

func violate(code ViolationCode, p ir.Place, format string, args ...any) {
	panic(&ContractViolation{Code: code, Place: p, Message: fmt.Sprintf(format, args...)})
}

// IsContractViolation reports whether err is (or wraps) a ContractViolation.
func IsContractViolation(err error) bool {
	var cv *ContractViolation
	return errors.As(err, &cv)
}

// Guard runs fn and converts a ContractViolation panic into a returned
// error. Any other panic is re-raised unchanged.
func Guard(fn func() error) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if cv, ok := r.(*ContractViolation); ok {
			err = cv
			return
		}
		panic(r)
	}()
	return fn()
}
