package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// Memory is an in-process token bucket limiter.
type Memory struct {
	now     func() time.Time
	buckets map[string]*bucket
	mu      sync.Mutex
}

type bucket struct {
	last   time.Time
	budget Budget
	tokens float64
}

// MemoryOption configures the in-memory limiter.
type MemoryOption func(*Memory)

// WithClock replaces the time source. Used by tests to control refill.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemory creates a limiter with one full bucket per provider.
func NewMemory(budgets map[string]Budget, opts ...MemoryOption) (*Memory, error) {
	if err := validateBudgets(budgets); err != nil {
		return nil, err
	}

	m := &Memory{
		now:     time.Now,
		buckets: make(map[string]*bucket, len(budgets)),
	}
	for _, opt := range opts {
		opt(m)
	}

	start := m.now()
	for name, b := range budgets {
		m.buckets[name] = &bucket{budget: b, tokens: float64(b.Capacity), last: start}
	}
	return m, nil
}

// Acquire implements Limiter.
func (m *Memory) Acquire(_ context.Context, provider string) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[provider]
	if !ok {
		return Decision{}, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}

	b.refill(m.now())
	if b.tokens >= 1 {
		b.tokens--
		return Decision{Allowed: true}, nil
	}

	rate := b.budget.ratePerNanosecond()
	if rate == 0 {
		return Decision{RetryAfter: Never}, nil
	}
	wait := time.Duration(math.Ceil((1 - b.tokens) / rate))
	return Decision{RetryAfter: max(wait, time.Nanosecond)}, nil
}

// Release implements Limiter.
func (m *Memory) Release(_ context.Context, provider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[provider]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	b.refill(m.now())
	b.tokens = min(b.tokens+1, float64(b.budget.Capacity))
	return nil
}

// Budget implements Limiter.
func (m *Memory) Budget(provider string) (Budget, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[provider]
	if !ok {
		return Budget{}, false
	}
	return b.budget, true
}

// Tokens returns the current token count of provider, after refill.
func (m *Memory) Tokens(provider string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[provider]
	if !ok {
		return 0
	}
	b.refill(m.now())
	return b.tokens
}

func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.last)
	if elapsed <= 0 {
		return
	}
	b.last = now
	b.tokens = min(float64(b.budget.Capacity), b.tokens+float64(elapsed)*b.budget.ratePerNanosecond())
}
