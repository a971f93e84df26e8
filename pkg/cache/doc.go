// Package cache provides a small generic TTL cache with in-memory and Redis backends.
//
// The engine uses it to remember address verification results, so repeated campaigns to the
// same list do not repeat MX lookups. Both backends implement the same [Cache] interface, so
// a single-process deployment can keep results in memory and a multi-process one can share
// them through Redis.
//
// # Interface
//
// The [Cache] interface is generic over the value type V:
//
//   - Get(ctx, key) (V, error): returns [ErrNotFound] on a miss or an expired entry
//   - Set(ctx, key, value, ttl) error: stores a value
//   - Delete(ctx, key) error: removes a key
//
// TTL semantics for Set:
//   - Positive duration: the entry expires after this duration
//   - Zero: the backend's default TTL is used
//   - Negative: the entry never expires
//
// # In-Memory Cache
//
// [NewMemory] keeps entries in a map with LRU eviction once [WithMaxEntries] is reached.
// A janitor goroutine removes expired entries; call Close to stop it:
//
//	results := cache.NewMemory[verify.Result](
//	    cache.WithDefaultTTL(time.Hour),
//	    cache.WithCleanupInterval(time.Minute),
//	    cache.WithMaxEntries(100_000),
//	)
//	defer results.Close()
//
// # Redis Cache
//
// [NewRedis] stores JSON-encoded values under a key prefix:
//
//	client := redis.MustOpen(ctx, cfg.RedisURL)
//	results := cache.NewRedis[verify.Result](client, "mailcast:verify", time.Hour)
//
// # Stampede Prevention
//
// [GetOrSet] collapses concurrent misses for the same key into a single computation.
// Errors from the compute function are not cached:
//
//	res, err := cache.GetOrSet(ctx, results, "email_verification:ada@example.com",
//	    func(ctx context.Context) (verify.Result, time.Duration, error) {
//	        r, err := lookupMX(ctx, "example.com")
//	        return r, time.Hour, err
//	    })
//
// # Error Handling
//
//   - [ErrNotFound]: key does not exist or has expired
//   - [ErrClosed]: operation on a closed in-memory cache
//   - [ErrMarshal], [ErrUnmarshal]: Redis value encoding failed
package cache
