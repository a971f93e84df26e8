package middlewares

import (
	"errors"
	"fmt"
)

// PanicError is a panic recovered while serving a request.
type PanicError struct {
	Value  any
	Method string
	Path   string
	// Stack is nil when stack capture is disabled.
	Stack []byte
}

func (e *PanicError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("panic: %v", e.Value)
	}
	return fmt.Sprintf("panic in %s %s: %v", e.Method, e.Path, e.Value)
}

// AsPanicError reports whether err wraps a PanicError.
func AsPanicError(err error) (*PanicError, bool) {
	var pe *PanicError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
