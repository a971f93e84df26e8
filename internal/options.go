package internal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/mailcast/pkg/mailer"
	"github.com/dmitrymomot/mailcast/pkg/progress"
	"github.com/dmitrymomot/mailcast/pkg/ratelimit"
	"github.com/dmitrymomot/mailcast/pkg/retry"
	"github.com/dmitrymomot/mailcast/pkg/source"
	"github.com/dmitrymomot/mailcast/pkg/store"
)

const (
	defaultVerifyConcurrency = 16
	defaultPollInterval      = time.Second
	defaultRecoverySchedule  = "* * * * *"
)

// Config holds the engine tunables read from the environment.
type Config struct {
	Retry retry.Config

	// Workers is the per-campaign worker pool size. The effective size is also capped by the
	// combined capacity of the campaign's providers.
	Workers int `env:"DISPATCH_WORKERS,required"`

	// VerifyConcurrency bounds parallel address verification during start.
	VerifyConcurrency int `env:"VERIFY_CONCURRENCY" envDefault:"16"`

	// PollInterval bounds how long a worker sleeps while every provider bucket is empty.
	PollInterval time.Duration `env:"DISPATCH_POLL_INTERVAL" envDefault:"1s"`

	// RecoverySchedule is the cron expression of the crash recovery sweep.
	RecoverySchedule string `env:"RECOVERY_SCHEDULE" envDefault:"* * * * *"`

	// SenderEmail and SenderName override the provider defaults when set.
	SenderEmail string `env:"MAIL_FROM_EMAIL"`
	SenderName  string `env:"MAIL_FROM_NAME"`
}

// Validate rejects incomplete configuration.
func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1", ErrInvalidConfig)
	}
	return c.Retry.Validate()
}

// Verifier decides whether an address may enter the dispatch loop.
type Verifier interface {
	IsDeliverable(ctx context.Context, addr string) bool
}

// Option configures the Engine.
type Option func(*Engine)

// WithStore sets the campaign persistence store. Required.
func WithStore(s store.Store) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithTemplates sets the template store. Required.
func WithTemplates(t store.TemplateStore) Option {
	return func(e *Engine) {
		e.templates = t
	}
}

// WithSources sets the opener used to read recipient sources. Required.
func WithSources(o source.Opener) Option {
	return func(e *Engine) {
		e.sources = o
	}
}

// WithProviders sets the provider set. Required.
func WithProviders(s *mailer.Set) Option {
	return func(e *Engine) {
		e.providers = s
	}
}

// WithLimiter sets the rate limiter. Defaults to an in-memory limiter built from the
// providers' budgets.
func WithLimiter(l ratelimit.Limiter) Option {
	return func(e *Engine) {
		e.limiter = l
	}
}

// WithVerifier enables address verification before a campaign starts.
func WithVerifier(v Verifier) Option {
	return func(e *Engine) {
		e.verifier = v
	}
}

// WithTracker sets the progress tracker. Defaults to a tracker with no forwarder.
func WithTracker(t *progress.Tracker) Option {
	return func(e *Engine) {
		e.tracker = t
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides the time source used for timestamps and due times.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}
