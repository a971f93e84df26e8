package analytics

import "errors"

var (
	ErrEmptyURL      = errors.New("analytics: empty amqp url")
	ErrDialFailed    = errors.New("analytics: failed to connect to broker")
	ErrPublishFailed = errors.New("analytics: publish failed")
	ErrClosed        = errors.New("analytics: publisher closed")
)
