// Package internal implements the campaign dispatch engine and its HTTP control API.
//
// This package is internal and should not be used directly. Import "github.com/dmitrymomot/mailcast"
// instead, which re-exports the public API.
//
// # Engine
//
// The Engine owns the lifecycle of every campaign:
//
//   - Create: stores a Draft campaign
//   - Start: validates the template against every recipient, materializes recipients from the
//     source and hands the campaign to a dispatcher
//   - Pause, Resume, Cancel: cooperative lifecycle commands
//   - Progress, Attempts: read models for live progress and the delivery audit trail
//   - Recover: adopts campaigns persisted as Running that no dispatcher owns
//
// All lifecycle commands are idempotent. Pausing a Paused campaign or starting a Running one
// returns the current state without error.
//
// # Dispatcher
//
// Each running campaign has one dispatcher goroutine that is the only writer of the campaign and
// its recipients. It feeds a bounded pool of workers; a worker renders the message, acquires a
// rate-limit token from one of the candidate providers and sends. Results flow back to the
// dispatcher, which records the attempt, consults the retry policy and either finalizes the
// recipient or parks it in a delay queue until its next attempt is due. Workers never sleep on
// backoff.
//
// Pause and cancel are flags checked between recipients. In-flight sends complete, nothing new
// is dispatched. A failed checkpoint write pauses the campaign with ErrPersistenceUnavailable.
//
// # HTTP
//
// NewHandler mounts the control API on a chi router:
//
//	mux := internal.NewHandler(engine,
//	    internal.WithUploads(storage),
//	    internal.WithReadinessChecks(checks),
//	)
//
// Run serves a handler until SIGINT or SIGTERM and then runs shutdown hooks in order.
package internal
