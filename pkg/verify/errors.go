package verify

import "errors"

var (
	ErrInvalidSyntax = errors.New("verify: invalid address syntax")
	ErrNoMXRecord    = errors.New("verify: domain has no mx record")
	ErrDNSLookup     = errors.New("verify: dns lookup failed")
	ErrDisposable    = errors.New("verify: disposable address")
	ErrEmptyAddress  = errors.New("verify: empty address")
)
