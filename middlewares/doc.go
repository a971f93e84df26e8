// Package middlewares provides net/http middleware for the control API.
//
// # Request ID
//
// RequestID assigns an ID to each request. An upstream ID from X-Request-ID or
// X-Correlation-ID is kept, otherwise a UUID is generated. The ID is stored with
// logger.WithRequestID so that a logger built with logger.RequestID() tags every entry:
//
//	r := chi.NewRouter()
//	r.Use(middlewares.RequestID())
//
// # Recover
//
// Recover catches panics, logs them with a stack trace and answers 500.
//
//	r.Use(middlewares.Recover(log))
//
// # Timeout
//
// Timeout puts a deadline on the request context. Handlers must pass the request context to
// blocking calls so they return once it expires.
//
//	r.Use(middlewares.Timeout(30 * time.Second))
package middlewares
