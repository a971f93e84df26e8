package mailcast

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/dmitrymomot/mailcast/internal"
	"github.com/dmitrymomot/mailcast/pkg/health"
	"github.com/dmitrymomot/mailcast/pkg/mailer"
	"github.com/dmitrymomot/mailcast/pkg/progress"
	"github.com/dmitrymomot/mailcast/pkg/ratelimit"
	"github.com/dmitrymomot/mailcast/pkg/source"
	"github.com/dmitrymomot/mailcast/pkg/storage"
	"github.com/dmitrymomot/mailcast/pkg/store"
)

// Type aliases - public API
type (
	// Engine runs campaigns: one dispatcher per running campaign,
	// bounded by provider rate budgets.
	Engine = internal.Engine

	// Config holds the engine tunables, read from the environment with caarlos0/env.
	Config = internal.Config

	// Option configures the engine.
	Option = internal.Option

	// CreateRequest describes a new campaign.
	CreateRequest = internal.CreateRequest

	// Verifier decides whether an address may enter the dispatch loop.
	Verifier = internal.Verifier

	// HandlerOption configures the HTTP control API.
	HandlerOption = internal.HandlerOption

	// RunOption configures the server runtime.
	RunOption = internal.RunOption

	// HTTPError is an API error response.
	HTTPError = internal.HTTPError

	// StartCampaignPayload is the job payload of a scheduled start.
	StartCampaignPayload = internal.StartCampaignPayload
)

// Errors
var (
	ErrPersistenceUnavailable = internal.ErrPersistenceUnavailable
	ErrMissingDependency      = internal.ErrMissingDependency
	ErrInvalidConfig          = internal.ErrInvalidConfig
	ErrSchedulerUnavailable   = internal.ErrSchedulerUnavailable
	ErrUnknownProvider        = internal.ErrUnknownProvider
	ErrEmptySourceRef         = internal.ErrEmptySourceRef
	ErrEngineClosed           = internal.ErrEngineClosed
	ErrUploadsDisabled        = internal.ErrUploadsDisabled
)

// Constructors

// New creates an engine. Store, templates, sources and providers are required.
//
// Example:
//
//	eng, err := mailcast.New(cfg,
//	    mailcast.WithStore(store.NewPostgres(pool)),
//	    mailcast.WithTemplates(templates),
//	    mailcast.WithSources(sources),
//	    mailcast.WithProviders(providers),
//	)
func New(cfg Config, opts ...Option) (*Engine, error) {
	return internal.New(cfg, opts...)
}

// NewHandler returns the HTTP control API of the engine.
func NewHandler(e *Engine, opts ...HandlerOption) http.Handler {
	return internal.NewHandler(e, opts...)
}

// Run serves handler and blocks until SIGINT or SIGTERM, then closes the engine
// and runs the shutdown hooks.
//
// Example:
//
//	err := mailcast.Run(eng, mailcast.NewHandler(eng),
//	    mailcast.Address(":8080"),
//	    mailcast.Logger(log),
//	    mailcast.ShutdownHook(db.Shutdown(pool)),
//	)
func Run(e *Engine, handler http.Handler, opts ...RunOption) error {
	return internal.Run(e, handler, opts...)
}

// Engine options

// WithStore sets the campaign checkpoint store.
func WithStore(s store.Store) Option {
	return internal.WithStore(s)
}

// WithTemplates sets the template store.
func WithTemplates(t store.TemplateStore) Option {
	return internal.WithTemplates(t)
}

// WithSources sets the opener resolving campaign source references.
func WithSources(o source.Opener) Option {
	return internal.WithSources(o)
}

// WithProviders sets the email providers.
func WithProviders(s *mailer.Set) Option {
	return internal.WithProviders(s)
}

// WithLimiter sets the per-provider rate limiter.
// Default: an in-process token bucket per provider budget.
func WithLimiter(l ratelimit.Limiter) Option {
	return internal.WithLimiter(l)
}

// WithVerifier enables address verification during start.
func WithVerifier(v Verifier) Option {
	return internal.WithVerifier(v)
}

// WithTracker sets the progress tracker, typically one forwarding events to analytics.
func WithTracker(t *progress.Tracker) Option {
	return internal.WithTracker(t)
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return internal.WithLogger(l)
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return internal.WithClock(now)
}

// HTTP options

// WithUploads enables POST /lists, storing uploaded CSV lists in s.
func WithUploads(s storage.Storage) HandlerOption {
	return internal.WithUploads(s)
}

// WithReadinessChecks sets the checks behind /health/ready.
func WithReadinessChecks(checks health.Checks) HandlerOption {
	return internal.WithReadinessChecks(checks)
}

// WithHandlerLogger sets the logger for request errors and panics.
func WithHandlerLogger(l *slog.Logger) HandlerOption {
	return internal.WithHandlerLogger(l)
}

// WithRequestTimeout bounds API requests.
func WithRequestTimeout(d time.Duration) HandlerOption {
	return internal.WithRequestTimeout(d)
}

// WithMaxUploadSize bounds uploaded list files.
func WithMaxUploadSize(n int64) HandlerOption {
	return internal.WithMaxUploadSize(n)
}

// ProviderChecks returns a readiness check per provider that can verify its credentials.
func ProviderChecks(set *mailer.Set) health.Checks {
	return internal.ProviderChecks(set)
}

// Run options

// Address sets the listen address. Default: ":8080".
func Address(addr string) RunOption {
	return internal.WithAddress(addr)
}

// Logger sets the server logger.
func Logger(l *slog.Logger) RunOption {
	return internal.WithRunLogger(l)
}

// ShutdownTimeout bounds graceful shutdown. Default: 30s.
func ShutdownTimeout(d time.Duration) RunOption {
	return internal.WithShutdownTimeout(d)
}

// ShutdownHook registers a function called after the server and the engine stop.
// Hooks run in registration order.
//
// Example:
//
//	mailcast.ShutdownHook(func(ctx context.Context) error {
//	    return pool.Close()
//	})
func ShutdownHook(fn func(context.Context) error) RunOption {
	return internal.WithShutdownHook(fn)
}

// WithContext sets the parent context of the server.
// Cancelling it triggers graceful shutdown.
func WithContext(ctx context.Context) RunOption {
	return internal.WithBaseContext(ctx)
}

// OnListen is called with the bound address once the server listens.
func OnListen(fn func(net.Addr)) RunOption {
	return internal.WithOnListen(fn)
}
