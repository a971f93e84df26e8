package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"github.com/dmitrymomot/mailcast/pkg/campaign"
)

// Config holds broker settings.
type Config struct {
	URL      string `env:"AMQP_URL"`
	Exchange string `env:"AMQP_EXCHANGE" envDefault:"mailcast.delivery"`
}

// Enabled reports whether a broker URL is configured.
func (c Config) Enabled() bool {
	return c.URL != ""
}

// Channel is the subset of *amqp.Channel the publisher uses.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Dialer opens a channel and returns the connection that owns it.
type Dialer func(url string) (Channel, io.Closer, error)

// DialAMQP is the default Dialer.
func DialAMQP(url string) (Channel, io.Closer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return ch, conn, nil
}

// AMQP publishes delivery events to a durable topic exchange.
// A failed publish drops the channel; the next event redials.
type AMQP struct {
	dial   Dialer
	ch     Channel
	conn   io.Closer
	logger *slog.Logger
	cfg    Config
	mu     sync.Mutex
	closed bool
}

// AMQPOption configures the publisher.
type AMQPOption func(*AMQP)

// WithDialer replaces the broker dialer.
func WithDialer(d Dialer) AMQPOption {
	return func(a *AMQP) { a.dial = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) AMQPOption {
	return func(a *AMQP) { a.logger = l }
}

// NewAMQP creates a publisher. The connection is opened on the first event.
func NewAMQP(cfg Config, opts ...AMQPOption) (*AMQP, error) {
	if cfg.URL == "" {
		return nil, ErrEmptyURL
	}
	if cfg.Exchange == "" {
		cfg.Exchange = "mailcast.delivery"
	}
	a := &AMQP{cfg: cfg, dial: DialAMQP, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// RoutingKey is the key an event is published under.
func RoutingKey(ev campaign.Event) string {
	return "delivery." + string(ev.To)
}

// OnEvent implements progress.Consumer.
func (a *AMQP) OnEvent(ctx context.Context, ev campaign.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return errors.Join(ErrPublishFailed, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	if err := a.connectLocked(); err != nil {
		return err
	}

	err = a.ch.Publish(a.cfg.Exchange, RoutingKey(ev), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.At,
		MessageId:    ev.RecipientID.String(),
		Type:         string(ev.To),
		Body:         body,
	})
	if err != nil {
		a.logger.WarnContext(ctx, "amqp publish failed, dropping channel", slog.String("error", err.Error()))
		a.resetLocked()
		return errors.Join(ErrPublishFailed, err)
	}
	return nil
}

// Healthcheck dials the broker if no channel is open.
func (a *AMQP) Healthcheck(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	return a.connectLocked()
}

// Close closes the channel and connection.
func (a *AMQP) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return a.resetLocked()
}

func (a *AMQP) connectLocked() error {
	if a.ch != nil {
		return nil
	}
	ch, conn, err := a.dial(a.cfg.URL)
	if err != nil {
		return errors.Join(ErrDialFailed, err)
	}
	if err := ch.ExchangeDeclare(a.cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		if conn != nil {
			_ = conn.Close()
		}
		return errors.Join(ErrDialFailed, err)
	}
	a.ch, a.conn = ch, conn
	return nil
}

func (a *AMQP) resetLocked() error {
	var errs []error
	if a.ch != nil {
		errs = append(errs, a.ch.Close())
	}
	if a.conn != nil {
		errs = append(errs, a.conn.Close())
	}
	a.ch, a.conn = nil, nil
	return errors.Join(errs...)
}

// Log returns a consumer that writes each event to l at debug level,
// and failures at info level.
func Log(l *slog.Logger) func(ctx context.Context, ev campaign.Event) error {
	return func(ctx context.Context, ev campaign.Event) error {
		level := slog.LevelDebug
		if ev.To == campaign.RecipientFailed || ev.To == campaign.RecipientRetrying {
			level = slog.LevelInfo
		}
		l.Log(ctx, level, "delivery event",
			slog.String("campaign_id", ev.CampaignID.String()),
			slog.String("recipient_id", ev.RecipientID.String()),
			slog.String("from", string(ev.From)),
			slog.String("to", string(ev.To)),
			slog.String("provider", ev.Provider),
			slog.Int("attempt", ev.Attempt),
			slog.String("reason", ev.Reason),
			slog.Time("at", ev.At.Truncate(time.Millisecond)),
		)
		return nil
	}
}

// Consumer is the single-method event sink shape shared with progress.Consumer.
type Consumer interface {
	OnEvent(ctx context.Context, ev campaign.Event) error
}

// Fanout delivers each event to every consumer in order and joins their errors.
type Fanout []Consumer

func (f Fanout) OnEvent(ctx context.Context, ev campaign.Event) error {
	var errs []error
	for _, c := range f {
		if err := c.OnEvent(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
