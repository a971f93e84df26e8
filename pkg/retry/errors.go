package retry

import "errors"

var ErrInvalidConfig = errors.New("retry: invalid configuration")
