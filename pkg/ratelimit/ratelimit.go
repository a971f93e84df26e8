package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Never is the wait reported by a bucket that is empty and does not refill.
const Never = time.Duration(math.MaxInt64)

// Budget is the rate budget of one provider.
type Budget struct {
	// Capacity is the maximum number of tokens the bucket holds.
	Capacity int `json:"capacity"`
	// Refill tokens are added every Per. Zero disables refill.
	Refill int           `json:"refill"`
	Per    time.Duration `json:"per"`
}

// Validate checks that the budget can grant at least one token.
func (b Budget) Validate() error {
	if b.Capacity < 1 {
		return fmt.Errorf("%w: capacity must be positive", ErrInvalidBudget)
	}
	if b.Refill < 0 {
		return fmt.Errorf("%w: refill must not be negative", ErrInvalidBudget)
	}
	if b.Refill > 0 && b.Per <= 0 {
		return fmt.Errorf("%w: refill period must be positive", ErrInvalidBudget)
	}
	return nil
}

// ratePerNanosecond returns the refill rate in tokens per nanosecond.
func (b Budget) ratePerNanosecond() float64 {
	if b.Refill <= 0 || b.Per <= 0 {
		return 0
	}
	return float64(b.Refill) / float64(b.Per)
}

// Decision is the result of an acquire call.
type Decision struct {
	// RetryAfter is the minimum wait until a token is available. Zero when Allowed.
	RetryAfter time.Duration
	Allowed    bool
}

// Limiter gates sends per provider.
type Limiter interface {
	// Acquire takes one token for provider or reports the wait until one is available.
	Acquire(ctx context.Context, provider string) (Decision, error)
	// Release returns an unused token to provider's bucket.
	Release(ctx context.Context, provider string) error
	// Budget returns the configured budget of provider.
	Budget(provider string) (Budget, bool)
}

// Headroom returns the sum of capacities of the given providers.
// Unknown providers contribute nothing.
func Headroom(l Limiter, providers ...string) int {
	total := 0
	for _, p := range providers {
		if b, ok := l.Budget(p); ok {
			total += b.Capacity
		}
	}
	return total
}

func validateBudgets(budgets map[string]Budget) error {
	for name, b := range budgets {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("%w (provider %s)", err, name)
		}
	}
	return nil
}
