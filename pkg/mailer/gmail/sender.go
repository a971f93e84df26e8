package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/dmitrymomot/mailcast/pkg/mailer"
	"github.com/dmitrymomot/mailcast/pkg/ratelimit"
)

const (
	// Name is the provider name of Gmail.
	Name = "gmail"

	// SendScope is the OAuth scope required to send mail.
	SendScope = "https://www.googleapis.com/auth/gmail.send"

	defaultBaseURL = "https://gmail.googleapis.com"
)

var (
	ErrMissingCredentials = errors.New("gmail: oauth credentials are not configured")
	ErrTokenRefresh       = errors.New("gmail: failed to refresh access token")
)

// Provider implements mailer.Provider using the Gmail API.
type Provider struct {
	tokens  oauth2.TokenSource
	client  *http.Client
	config  Config
	baseURL string
}

// Option configures the provider.
type Option func(*options)

type options struct {
	httpClient  *http.Client
	tokenSource oauth2.TokenSource
	baseURL     string
}

// WithHTTPClient sets the base HTTP client used for token refresh and API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.httpClient = c
		}
	}
}

// WithTokenSource replaces the refresh-token source.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(o *options) {
		if ts != nil {
			o.tokenSource = ts
		}
	}
}

// WithBaseURL overrides the Gmail API endpoint.
func WithBaseURL(u string) Option {
	return func(o *options) {
		if u != "" {
			o.baseURL = u
		}
	}
}

// New creates a Gmail provider.
func New(cfg Config, opts ...Option) (*Provider, error) {
	o := &options{baseURL: defaultBaseURL}
	for _, opt := range opts {
		opt(o)
	}
	if o.tokenSource == nil && !cfg.Enabled() {
		return nil, ErrMissingCredentials
	}

	ctx := context.Background()
	if o.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
	}

	ts := o.tokenSource
	if ts == nil {
		oc := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{SendScope},
		}
		ts = oc.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	}
	ts = oauth2.ReuseTokenSource(nil, ts)

	client := oauth2.NewClient(ctx, ts)
	client.Timeout = cfg.Timeout

	return &Provider{
		tokens:  ts,
		client:  client,
		config:  cfg,
		baseURL: o.baseURL,
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

type sendRequest struct {
	Raw string `json:"raw"`
}

type sendResponse struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
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
	raw, err := buildMessage(from, email)
	if err != nil {
		return mailer.Receipt{}, mailer.Permanent(err)
	}

	payload, err := json.Marshal(sendRequest{Raw: base64.URLEncoding.EncodeToString(raw)})
	if err != nil {
		return mailer.Receipt{}, mailer.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/gmail/v1/users/me/messages/send", bytes.NewReader(payload))
	if err != nil {
		return mailer.Receipt{}, mailer.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return mailer.Receipt{}, mailer.ContextError(Name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode == http.StatusUnauthorized {
		// Expired or revoked credentials are not the recipient's fault.
		return mailer.Receipt{}, mailer.Transient(fmt.Errorf("%s: unauthorized: %s", Name, body))
	}
	if resp.StatusCode >= 300 {
		return mailer.Receipt{}, mailer.StatusError(Name, resp.StatusCode, string(body))
	}

	var out sendResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return mailer.Receipt{}, mailer.Transient(fmt.Errorf("%s: decode response: %w", Name, err))
	}
	return mailer.Receipt{MessageID: out.ID}, nil
}

// Healthcheck refreshes the access token if needed.
func (p *Provider) Healthcheck(context.Context) error {
	if _, err := p.tokens.Token(); err != nil {
		return errors.Join(ErrTokenRefresh, err)
	}
	return nil
}
