package store

import "errors"

var (
	ErrUnavailable  = errors.New("store: persistence unavailable")
	ErrDuplicate    = errors.New("store: duplicate record")
	ErrInvalidQuery = errors.New("store: invalid query")
)
