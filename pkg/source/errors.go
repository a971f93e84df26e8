package source

import "errors"

var (
	ErrMissingEmailColumn = errors.New("source: csv header has no email column")
	ErrUnknownScheme      = errors.New("source: unknown reference scheme")
	ErrNotFound           = errors.New("source: reference not found")
	ErrInvalidOffset      = errors.New("source: offset beyond end of source")
)
