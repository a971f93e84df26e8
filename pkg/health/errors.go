package health

import "errors"

// ErrCheckTimeout is joined to a check error when the check outlives the readiness timeout.
var ErrCheckTimeout = errors.New("health: check did not finish in time")
