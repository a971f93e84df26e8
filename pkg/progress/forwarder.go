package progress

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dmitrymomot/mailcast/pkg/campaign"
)

const defaultBuffer = 1024

// Consumer receives delivery events downstream of the engine.
type Consumer interface {
	OnEvent(ctx context.Context, ev campaign.Event) error
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc func(ctx context.Context, ev campaign.Event) error

func (f ConsumerFunc) OnEvent(ctx context.Context, ev campaign.Event) error { return f(ctx, ev) }

// Forwarder delivers events to a Consumer on its own goroutine.
// Publish never blocks; events that do not fit in the buffer are dropped.
type Forwarder struct {
	consumer Consumer
	logger   *slog.Logger
	events   chan campaign.Event
	done     chan struct{}
	dropped  atomic.Int64
	once     sync.Once
	closed   atomic.Bool
	mu       sync.RWMutex
}

// ForwarderOption configures a Forwarder.
type ForwarderOption func(*forwarderConfig)

type forwarderConfig struct {
	logger *slog.Logger
	buffer int
}

// WithBuffer sets the number of events held while the consumer catches up.
func WithBuffer(n int) ForwarderOption {
	return func(c *forwarderConfig) {
		if n > 0 {
			c.buffer = n
		}
	}
}

// WithLogger sets the logger for dropped events and consumer errors.
func WithLogger(l *slog.Logger) ForwarderOption {
	return func(c *forwarderConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewForwarder starts a forwarder goroutine. Stop it with Close.
func NewForwarder(consumer Consumer, opts ...ForwarderOption) *Forwarder {
	cfg := &forwarderConfig{buffer: defaultBuffer, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(cfg)
	}

	f := &Forwarder{
		consumer: consumer,
		logger:   cfg.logger,
		events:   make(chan campaign.Event, cfg.buffer),
		done:     make(chan struct{}),
	}
	go f.run()
	return f
}

// Publish implements Publisher.
func (f *Forwarder) Publish(ctx context.Context, ev campaign.Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed.Load() {
		return
	}

	select {
	case f.events <- ev:
	default:
		n := f.dropped.Add(1)
		f.logger.WarnContext(ctx, "analytics buffer full, event dropped",
			slog.String("campaign_id", ev.CampaignID.String()),
			slog.String("recipient_id", ev.RecipientID.String()),
			slog.Int64("dropped_total", n),
		)
	}
}

// Dropped returns the number of events dropped so far.
func (f *Forwarder) Dropped() int64 {
	return f.dropped.Load()
}

// Close stops accepting events and waits for buffered ones to be delivered or ctx to expire.
func (f *Forwarder) Close(ctx context.Context) error {
	f.once.Do(func() {
		f.mu.Lock()
		f.closed.Store(true)
		close(f.events)
		f.mu.Unlock()
	})

	select {
	case <-f.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Forwarder) run() {
	defer close(f.done)
	ctx := context.Background()
	for ev := range f.events {
		if err := f.deliver(ctx, ev); err != nil {
			f.logger.WarnContext(ctx, "analytics consumer failed",
				slog.String("campaign_id", ev.CampaignID.String()),
				slog.Any("error", err),
			)
		}
	}
}

func (f *Forwarder) deliver(ctx context.Context, ev campaign.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.ErrorContext(ctx, "analytics consumer panicked", slog.Any("panic", r))
		}
	}()
	return f.consumer.OnEvent(ctx, ev)
}
