package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "mailcast:bucket:"

// tokenBucket refills by elapsed server time and then takes (cost > 0) or returns (cost < 0) tokens.
// Returns {allowed, wait_ms}; wait_ms is -1 when the bucket never refills.
var tokenBucket = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local cost = tonumber(ARGV[3])
local t = redis.call('TIME')
local now = tonumber(t[1]) * 1000 + math.floor(tonumber(t[2]) / 1000)
local state = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(state[1]) or capacity
local ts = tonumber(state[2]) or now
if now > ts then
  tokens = math.min(capacity, tokens + (now - ts) * rate)
end
local allowed = 0
local wait = 0
if cost < 0 then
  tokens = math.min(capacity, tokens - cost)
  allowed = 1
elseif tokens >= cost then
  tokens = tokens - cost
  allowed = 1
elseif rate > 0 then
  wait = math.ceil((cost - tokens) / rate)
else
  wait = -1
end
redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'ts', now)
if rate > 0 then
  redis.call('PEXPIRE', KEYS[1], math.ceil(capacity / rate) + 1000)
end
return {allowed, wait}
`)

// Redis is a token bucket limiter shared between processes through Redis.
type Redis struct {
	client  redis.UniversalClient
	budgets map[string]Budget
	prefix  string
}

// RedisOption configures the Redis limiter.
type RedisOption func(*Redis)

// WithKeyPrefix sets the key namespace of the buckets.
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// NewRedis creates a Redis-backed limiter.
func NewRedis(client redis.UniversalClient, budgets map[string]Budget, opts ...RedisOption) (*Redis, error) {
	if client == nil {
		return nil, errors.New("ratelimit: redis client is required")
	}
	if err := validateBudgets(budgets); err != nil {
		return nil, err
	}
	r := &Redis{client: client, budgets: budgets, prefix: defaultKeyPrefix}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Acquire implements Limiter.
func (r *Redis) Acquire(ctx context.Context, provider string) (Decision, error) {
	allowed, waitMS, err := r.run(ctx, provider, 1)
	if err != nil {
		return Decision{}, err
	}
	if allowed {
		return Decision{Allowed: true}, nil
	}
	if waitMS < 0 {
		return Decision{RetryAfter: Never}, nil
	}
	return Decision{RetryAfter: max(time.Duration(waitMS)*time.Millisecond, time.Millisecond)}, nil
}

// Release implements Limiter.
func (r *Redis) Release(ctx context.Context, provider string) error {
	_, _, err := r.run(ctx, provider, -1)
	return err
}

// Budget implements Limiter.
func (r *Redis) Budget(provider string) (Budget, bool) {
	b, ok := r.budgets[provider]
	return b, ok
}

func (r *Redis) run(ctx context.Context, provider string, cost int) (bool, int64, error) {
	b, ok := r.budgets[provider]
	if !ok {
		return false, 0, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}

	ratePerMS := b.ratePerNanosecond() * float64(time.Millisecond)
	res, err := tokenBucket.Run(ctx, r.client, []string{r.prefix + provider}, b.Capacity, ratePerMS, cost).Result()
	if err != nil {
		return false, 0, errors.Join(ErrScriptFailed, err)
	}

	arr, ok := res.([]any)
	if !ok || len(arr) != 2 {
		return false, 0, fmt.Errorf("%w: unexpected reply %v", ErrScriptFailed, res)
	}
	allowed, _ := arr[0].(int64)
	wait, _ := arr[1].(int64)
	return allowed == 1, wait, nil
}
