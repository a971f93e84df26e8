package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNoRecipient = errors.New("mailer: email must have a recipient")
	ErrNoSubject   = errors.New("mailer: email must have a subject")
	ErrNoContent   = errors.New("mailer: email must have html or text content")

	ErrTransient = errors.New("mailer: transient delivery failure")
	ErrPermanent = errors.New("mailer: permanent delivery failure")

	ErrUnknownProvider = errors.New("mailer: unknown provider")
	ErrUnknownMode     = errors.New("mailer: unknown provider mode")
	ErrNoProviders     = errors.New("mailer: no providers configured")
)

// Transient marks err as retryable.
func Transient(err error) error {
	return errors.Join(ErrTransient, err)
}

// Permanent marks err as non-retryable.
func Permanent(err error) error {
	return errors.Join(ErrPermanent, err)
}

// IsPermanent reports whether err was classified as permanent.
// Unclassified errors are transient.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}

// StatusError classifies an HTTP response status from a provider API.
// 408, 429 and 5xx are transient, any other 4xx is permanent.
func StatusError(provider string, status int, body string) error {
	err := fmt.Errorf("%s: http %d: %s", provider, status, body)
	if status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500 {
		return Transient(err)
	}
	if status >= 400 {
		return Permanent(err)
	}
	return Transient(err)
}

// ContextError wraps transport errors. Cancellation is transient because the message may be resent.
func ContextError(provider string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Transient(fmt.Errorf("%s: %w", provider, err))
	}
	return Transient(fmt.Errorf("%s: request failed: %w", provider, err))
}
