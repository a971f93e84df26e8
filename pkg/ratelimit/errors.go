package ratelimit

import "errors"

var (
	ErrUnknownProvider = errors.New("ratelimit: unknown provider")
	ErrInvalidBudget   = errors.New("ratelimit: invalid budget")
	ErrScriptFailed    = errors.New("ratelimit: bucket script failed")
)
