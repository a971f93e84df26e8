package internal

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrymomot/mailcast/pkg/health"
	"github.com/dmitrymomot/mailcast/pkg/logger"
	"github.com/dmitrymomot/mailcast/pkg/mailer"
)

// Server defaults.
const (
	defaultAddress           = ":8080"
	defaultShutdownTimeout   = 30 * time.Second
	defaultReadTimeout       = 15 * time.Second
	defaultWriteTimeout      = 60 * time.Second
	defaultIdleTimeout       = 120 * time.Second
	defaultReadHeaderTimeout = 5 * time.Second
	defaultMaxHeaderBytes    = 1 << 20 // 1MB
)

// runtimeConfig holds configuration for running the HTTP server.
type runtimeConfig struct {
	address         string
	logger          *slog.Logger
	shutdownTimeout time.Duration
	shutdownHooks   []func(context.Context) error
	baseCtx         context.Context
	ready           func(net.Addr)
}

// RunOption configures Run.
type RunOption func(*runtimeConfig)

// WithAddress sets the listen address. Default: ":8080".
func WithAddress(addr string) RunOption {
	return func(c *runtimeConfig) {
		c.address = addr
	}
}

// WithRunLogger sets the server logger.
func WithRunLogger(l *slog.Logger) RunOption {
	return func(c *runtimeConfig) {
		c.logger = l
	}
}

// WithShutdownTimeout bounds graceful shutdown. Default: 30s.
func WithShutdownTimeout(d time.Duration) RunOption {
	return func(c *runtimeConfig) {
		c.shutdownTimeout = d
	}
}

// WithShutdownHook adds a hook run after the server stops, in registration order.
func WithShutdownHook(hook func(context.Context) error) RunOption {
	return func(c *runtimeConfig) {
		c.shutdownHooks = append(c.shutdownHooks, hook)
	}
}

// WithBaseContext sets the parent of the signal-aware context.
// Cancelling it triggers the same graceful shutdown as SIGTERM.
func WithBaseContext(ctx context.Context) RunOption {
	return func(c *runtimeConfig) {
		c.baseCtx = ctx
	}
}

// WithOnListen is called with the bound address once the listener is open.
func WithOnListen(fn func(net.Addr)) RunOption {
	return func(c *runtimeConfig) {
		c.ready = fn
	}
}

// Run serves handler and blocks until SIGINT, SIGTERM or cancellation of the base context.
// On shutdown it stops the server first, then closes the engine so in-flight sends
// settle, then runs the shutdown hooks.
func Run(e *Engine, handler http.Handler, opts ...RunOption) error {
	cfg := runtimeConfig{
		address:         defaultAddress,
		shutdownTimeout: defaultShutdownTimeout,
		baseCtx:         context.Background(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	log := cfg.logger
	if log == nil {
		log = logger.NewNope()
	}

	server := &http.Server{
		Addr:              cfg.address,
		Handler:           handler,
		ReadTimeout:       defaultReadTimeout,
		WriteTimeout:      defaultWriteTimeout,
		IdleTimeout:       defaultIdleTimeout,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		MaxHeaderBytes:    defaultMaxHeaderBytes,
	}

	ctx, cancel := signal.NotifyContext(cfg.baseCtx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return err
	}
	if cfg.ready != nil {
		cfg.ready(ln.Addr())
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", slog.String("address", ln.Addr().String()))
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var errs []error
	select {
	case err := <-errCh:
		if err != nil {
			errs = append(errs, err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if e != nil {
		if err := e.Close(shutdownCtx); err != nil {
			errs = append(errs, err)
			log.Error("engine shutdown failed", slog.Any("error", err))
		}
	}
	for _, hook := range cfg.shutdownHooks {
		if err := hook(shutdownCtx); err != nil {
			errs = append(errs, err)
			log.Error("shutdown hook failed", slog.Any("error", err))
		}
	}

	if len(errs) > 0 {
		log.Error("shutdown completed with errors")
		return errors.Join(errs...)
	}

	log.Info("shutdown completed")
	return nil
}

// ProviderChecks returns a readiness check per provider that can verify its credentials.
func ProviderChecks(set *mailer.Set) health.Checks {
	checks := health.Checks{}
	for _, p := range set.Providers() {
		if hc, ok := p.(mailer.HealthChecker); ok {
			checks["provider_"+p.Name()] = hc.Healthcheck
		}
	}
	return checks
}
