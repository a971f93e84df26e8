package template

import (
	"errors"
	"fmt"
)

var (
	ErrMissingVariable    = errors.New("template: missing variable")
	ErrInvalidFrontmatter = errors.New("template: invalid frontmatter")
	ErrUnknownFormat      = errors.New("template: unknown body format")
	ErrRenderFailed       = errors.New("template: render failed")
	ErrNotFound           = errors.New("template: not found")
)

// MissingVariableError names the placeholder that could not be resolved.
type MissingVariableError struct {
	Name string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("template: missing variable %q", e.Name)
}

func (e *MissingVariableError) Is(target error) bool {
	return target == ErrMissingVariable
}
