package resend

import (
	"context"
	"errors"
	"net/http"

	"github.com/resend/resend-go/v3"

	"github.com/dmitrymomot/mailcast/pkg/mailer"
	"github.com/dmitrymomot/mailcast/pkg/ratelimit"
)

// Name is the provider name of Resend.
const Name = "resend"

var ErrMissingAPIKey = errors.New("resend: api key is not configured")

// Provider implements mailer.Provider using the Resend API.
type Provider struct {
	client *resend.Client
	config Config
}

// Option configures the provider.
type Option func(*options)

type options struct {
	transport http.RoundTripper
}

// WithTransport replaces the HTTP transport used to reach the API.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		if rt != nil {
			o.transport = rt
		}
	}
}

// New creates a Resend provider.
func New(cfg Config, opts ...Option) (*Provider, error) {
	if !cfg.Enabled() {
		return nil, ErrMissingAPIKey
	}

	o := &options{transport: http.DefaultTransport}
	for _, opt := range opts {
		opt(o)
	}

	httpClient := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: &statusRecorder{next: o.transport},
	}

	return &Provider{
		client: resend.NewCustomClient(httpClient, cfg.APIKey),
		config: cfg,
	}, nil
}

func (p *Provider) Name() string { return Name }

// Budget implements mailer.Provider.
func (p *Provider) Budget() ratelimit.Budget {
	return ratelimit.Budget{
		Capacity: p.config.RateCapacity,
		Refill:   p.config.RateRefill,
		Per:      p.config.RatePeriod,
	}
}

// Send implements mailer.Provider.
func (p *Provider) Send(ctx context.Context, email *mailer.Email) (mailer.Receipt, error) {
	if err := email.Validate(); err != nil {
		return mailer.Receipt{}, mailer.Permanent(err)
	}

	from := email.From
	if from == "" {
		from = mailer.FormatSender(p.config.SenderEmail, p.config.SenderName)
	}
	replyTo := email.ReplyTo
	if replyTo == "" {
		replyTo = p.config.ReplyTo
	}

	req := &resend.SendEmailRequest{
		From:    from,
		To:      []string{email.To},
		Subject: email.Subject,
		Html:    email.HTML,
		Text:    email.Text,
		ReplyTo: replyTo,
		Headers: email.Headers,
	}
	for name, value := range email.Tags {
		req.Tags = append(req.Tags, resend.Tag{Name: name, Value: value})
	}

	ctx, status := withStatus(ctx)
	resp, err := p.client.Emails.SendWithContext(ctx, req)
	if err != nil {
		return mailer.Receipt{}, classify(status.code, err)
	}
	return mailer.Receipt{MessageID: resp.Id}, nil
}

// Healthcheck verifies the provider is configured.
func (p *Provider) Healthcheck(context.Context) error {
	if !p.config.Enabled() {
		return ErrMissingAPIKey
	}
	return nil
}

func classify(code int, err error) error {
	if code == 0 {
		return mailer.ContextError(Name, err)
	}
	return mailer.StatusError(Name, code, err.Error())
}
