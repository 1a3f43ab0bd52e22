package planner

import "fmt"

// ValidationError reports a malformed filter or update input. It is surfaced to
// the caller as a rejected operation.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
