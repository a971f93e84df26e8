package mailer

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/mailcast/pkg/ratelimit"
)

// LogProvider accepts every message and logs it instead of sending.
type LogProvider struct {
	logger *slog.Logger
	name   string
	budget ratelimit.Budget
}

// NewLogProvider creates a provider for local development.
func NewLogProvider(name string, budget ratelimit.Budget, logger *slog.Logger) *LogProvider {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LogProvider{name: name, budget: budget, logger: logger}
}

func (p *LogProvider) Name() string { return p.name }

func (p *LogProvider) Budget() ratelimit.Budget { return p.budget }

// Send implements Provider.
func (p *LogProvider) Send(ctx context.Context, email *Email) (Receipt, error) {
	if err := email.Validate(); err != nil {
		return Receipt{}, Permanent(err)
	}
	id := uuid.NewString()
	p.logger.InfoContext(ctx, "email accepted",
		slog.String("provider", p.name),
		slog.String("to", email.To),
		slog.String("subject", email.Subject),
		slog.String("message_id", id),
	)
	return Receipt{MessageID: id}, nil
}
