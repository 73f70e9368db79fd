package transfer

import (
	"errors"
	"fmt"

	"github.com/erazemk/prenos/internal/db"
)

// Error is an engine error with a stable code. Sentinels are matched with
// errors.Is; wrapped errors keep the sentinel's code.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return e.Message }

// Engine errors. Insufficient stock is not among them: it is reported as a
// rejected line verdict.
var (
	ErrNotFound            = &Error{Code: "NOT_FOUND", Message: "not found"}
	ErrInvalidRequest      = &Error{Code: "INVALID_INPUT", Message: "invalid request"}
	ErrNoValidLines        = &Error{Code: "NO_VALID_LINES", Message: "no line of the transfer can be committed"}
	ErrAlreadyCancelled    = &Error{Code: "ALREADY_CANCELLED", Message: "already cancelled"}
	ErrConcurrencyConflict = &Error{Code: "CONCURRENCY_CONFLICT", Message: "stock was modified concurrently, retry the request"}
)

// Code returns the code of the engine error wrapped in err, or "" if there is none.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidRequest}, args...)...)
}

func notFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrNotFound}, args...)...)
}

// classify maps retryable driver errors to ErrConcurrencyConflict and
// leaves everything else untouched.
func classify(err error) error {
	if err == nil || errors.Is(err, ErrConcurrencyConflict) {
		return err
	}
	if db.IsConflict(err) || db.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ErrConcurrencyConflict, err)
	}
	return err
}
