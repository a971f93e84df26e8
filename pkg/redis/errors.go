package redis

import "errors"

var (
	ErrEmptyConnectionURL = errors.New("redis: REDIS_URL is empty")
	ErrFailedToParseURL   = errors.New("redis: invalid connection URL")
	ErrConnectionFailed   = errors.New("redis: unable to connect")
	// ErrHealthcheckFailed is returned when PING fails or the client is nil.
	ErrHealthcheckFailed = errors.New("redis: ping failed")
)
