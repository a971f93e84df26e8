package retry

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/dmitrymomot/mailcast/pkg/campaign"
)

// ReasonMaxAttempts is the give-up reason once the attempt cap is exhausted.
const ReasonMaxAttempts = "max_attempts_exceeded"

// Config holds the retry policy parameters.
type Config struct {
	MaxAttempts    int           `env:"RETRY_MAX_ATTEMPTS,required"`
	BaseDelay      time.Duration `env:"RETRY_BASE_DELAY,required"`
	MaxDelay       time.Duration `env:"RETRY_MAX_DELAY,required"`
	Multiplier     float64       `env:"RETRY_MULTIPLIER,required"`
	SwitchProvider bool          `env:"RETRY_SWITCH_PROVIDER" envDefault:"false"`
}

// Validate rejects incomplete configuration instead of guessing defaults.
func (c Config) Validate() error {
	switch {
	case c.MaxAttempts < 1:
		return fmt.Errorf("%w: max attempts must be at least 1", ErrInvalidConfig)
	case c.BaseDelay <= 0:
		return fmt.Errorf("%w: base delay must be positive", ErrInvalidConfig)
	case c.MaxDelay < c.BaseDelay:
		return fmt.Errorf("%w: max delay must not be below base delay", ErrInvalidConfig)
	case c.Multiplier < 1:
		return fmt.Errorf("%w: multiplier must be at least 1", ErrInvalidConfig)
	}
	return nil
}

// Action is what the dispatcher does with a recipient after an attempt.
type Action string

const (
	ActionDone   Action = "done"
	ActionRetry  Action = "retry"
	ActionGiveUp Action = "give_up"
)

// Decision is the result of Decide.
type Decision struct {
	Action   Action
	Provider string
	Reason   string
	After    time.Duration
}

// Policy is a deterministic retry policy.
type Policy struct {
	providers []string
	cfg       Config
}

// New creates a policy. providers is the rotation order used when SwitchProvider is set.
func New(cfg Config, providers ...string) (*Policy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Policy{cfg: cfg, providers: slices.Clone(providers)}, nil
}

// MaxAttempts returns the attempt cap.
func (p *Policy) MaxAttempts() int {
	return p.cfg.MaxAttempts
}

// Decide classifies the outcome of attempt number attempt (1-based) made on provider.
func (p *Policy) Decide(attempt int, outcome campaign.Outcome, provider string) Decision {
	switch outcome.Kind {
	case campaign.OutcomeSuccess:
		return Decision{Action: ActionDone}
	case campaign.OutcomePermanent:
		return Decision{Action: ActionGiveUp, Reason: outcome.Reason}
	}

	if attempt >= p.cfg.MaxAttempts {
		return Decision{Action: ActionGiveUp, Reason: ReasonMaxAttempts}
	}
	return Decision{
		Action:   ActionRetry,
		After:    p.Backoff(attempt),
		Provider: p.next(provider),
	}
}

// Backoff returns the delay after attempt number attempt: base * multiplier^(attempt-1), capped.
func (p *Policy) Backoff(attempt int) time.Duration {
	attempt = max(attempt, 1)
	d := float64(p.cfg.BaseDelay) * math.Pow(p.cfg.Multiplier, float64(attempt-1))
	if d >= float64(p.cfg.MaxDelay) || math.IsInf(d, 0) {
		return p.cfg.MaxDelay
	}
	return time.Duration(d)
}

func (p *Policy) next(provider string) string {
	if !p.cfg.SwitchProvider || len(p.providers) < 2 {
		return provider
	}
	i := slices.Index(p.providers, provider)
	return p.providers[(i+1)%len(p.providers)]
}
