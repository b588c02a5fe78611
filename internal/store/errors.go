package store

import "fmt"

// ValidationError is a local precondition failure: empty text, unknown id,
// cyclic move. No remote call was made.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
