package mailer

import (
	"context"

	"github.com/dmitrymomot/mailcast/pkg/ratelimit"
)

// Provider is one external email API.
type Provider interface {
	// Name identifies the provider in rate buckets, attempts and logs.
	Name() string
	// Budget is the documented throughput quota of the provider.
	Budget() ratelimit.Budget
	// Send delivers one message. Errors should be wrapped with Transient or Permanent.
	Send(ctx context.Context, email *Email) (Receipt, error)
}

// HealthChecker is implemented by providers that can verify their credentials.
type HealthChecker interface {
	Healthcheck(ctx context.Context) error
}

// Budgets collects the rate budget of every provider, keyed by name.
func Budgets(providers ...Provider) map[string]ratelimit.Budget {
	out := make(map[string]ratelimit.Budget, len(providers))
	for _, p := range providers {
		out[p.Name()] = p.Budget()
	}
	return out
}
