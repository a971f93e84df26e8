// Package ratelimit implements per-provider token buckets.
//
// A [Budget] declares the capacity and refill rate of one bucket. [Limiter.Acquire] either
// takes a token or reports how long the caller must wait before one will be available; it
// never blocks. Callers decide whether to wait or try another provider. [Limiter.Release]
// returns a token that was acquired but not used.
//
// Across any window of length d, a bucket never grants more than Capacity + d*rate tokens.
//
// # Budgets
//
// A budget refills Refill tokens every Per. A zero Refill disables refill, which models a
// daily or campaign-wide allowance; an empty bucket without refill reports [Never]:
//
//	budgets := map[string]ratelimit.Budget{
//	    "resend": {Capacity: 2, Refill: 2, Per: time.Second},
//	    "gmail":  {Capacity: 500, Per: 0},
//	}
//
// [Budget.Validate] rejects budgets that could never grant a token.
//
// # In-Memory Limiter
//
// [NewMemory] keeps buckets in process. It is the default for a single engine instance.
// [WithClock] replaces the wall clock, which makes refill deterministic in tests:
//
//	limiter, err := ratelimit.NewMemory(mailer.Budgets(providers...))
//	d, err := limiter.Acquire(ctx, "resend")
//	if !d.Allowed {
//	    // try the next provider, or wait d.RetryAfter
//	}
//
// # Redis Limiter
//
// [NewRedis] keeps buckets in Redis and refills them inside a Lua script, so several engine
// processes share one provider quota:
//
//	limiter, err := ratelimit.NewRedis(client, budgets, ratelimit.WithKeyPrefix("mailcast:rl"))
//
// # Sizing
//
// [Headroom] sums the capacities of a set of providers. The dispatcher uses it to cap its
// worker pool, since more concurrent senders than tokens only adds contention.
//
// # Errors
//
//   - [ErrInvalidBudget]: a budget fails validation
//   - [ErrUnknownProvider]: Acquire or Release named a provider without a budget
//   - [ErrScriptFailed]: the Redis bucket script failed or replied unexpectedly
package ratelimit
