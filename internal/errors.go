package internal

import (
	"errors"
	"net/http"
)

var (
	ErrPersistenceUnavailable = errors.New("mailcast: persistence unavailable")
	ErrMissingDependency      = errors.New("mailcast: missing dependency")
	ErrInvalidConfig          = errors.New("mailcast: invalid config")
	ErrSchedulerUnavailable   = errors.New("mailcast: scheduled start requires a job scheduler")
	ErrUnknownProvider        = errors.New("mailcast: campaign names an unknown provider")
	ErrNoUsableProvider       = errors.New("mailcast: no configured provider can send this campaign")
	ErrEmptySourceRef         = errors.New("mailcast: source reference is required")
	ErrEngineClosed           = errors.New("mailcast: engine is closed")
	ErrUploadsDisabled        = errors.New("mailcast: list uploads require object storage")
)

// HTTPError is an error with everything needed to render an API error response.
type HTTPError struct {
	// Err is the underlying error, logged but not exposed.
	Err error `json:"-"`

	// Message is the client-facing error message.
	Message string `json:"message"`

	// Detail is an optional extended description.
	Detail string `json:"detail,omitempty"`

	// ErrorCode is an application-specific code for client handling.
	ErrorCode string `json:"code,omitempty"`

	// RequestID is the request tracking ID.
	RequestID string `json:"request_id,omitempty"`

	// Code is the HTTP status code.
	Code int `json:"-"`
}

func (e *HTTPError) Error() string {
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

func (e *HTTPError) StatusCode() int {
	return e.Code
}

func (e *HTTPError) StatusText() string {
	return http.StatusText(e.Code)
}

// HTTPErrorOption configures an HTTPError.
type HTTPErrorOption func(*HTTPError)

// NewHTTPError creates a new HTTPError with the given status code and message.
func NewHTTPError(code int, message string, opts ...HTTPErrorOption) *HTTPError {
	e := &HTTPError{Code: code, Message: message}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func WithDetail(detail string) HTTPErrorOption {
	return func(e *HTTPError) {
		e.Detail = detail
	}
}

func WithErrorCode(code string) HTTPErrorOption {
	return func(e *HTTPError) {
		e.ErrorCode = code
	}
}

func WithError(err error) HTTPErrorOption {
	return func(e *HTTPError) {
		e.Err = err
	}
}

// Convenience constructors for common HTTP errors.

func ErrBadRequest(message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(http.StatusBadRequest, message, opts...)
}

func ErrNotFound(message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(http.StatusNotFound, message, opts...)
}

func ErrConflict(message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(http.StatusConflict, message, opts...)
}

func ErrUnprocessable(message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(http.StatusUnprocessableEntity, message, opts...)
}

func ErrInternal(message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(http.StatusInternalServerError, message, opts...)
}

func ErrServiceUnavailable(message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(http.StatusServiceUnavailable, message, opts...)
}

// AsHTTPError extracts the HTTPError from an error chain.
// Returns nil if there is none.
func AsHTTPError(err error) *HTTPError {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return nil
}
