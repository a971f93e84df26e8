// Package redis opens the go-redis client shared by the distributed token buckets and the
// verification result cache.
//
// [Config] is loaded from REDIS_* environment variables; only REDIS_URL is required and it
// must use the redis:// or rediss:// scheme.
//
//	client, err := redis.Open(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//
//	checks := health.Checks{"redis": redis.Healthcheck(client)}
//	hooks = append(hooks, redis.Shutdown(client))
//
// [Open] pings the server and retries with a linearly growing delay, so a service started
// alongside Redis in the same compose file does not fail on its first dial.
//
// # Errors
//
//   - [ErrEmptyConnectionURL]: REDIS_URL is not set
//   - [ErrFailedToParseURL]: the URL has the wrong scheme or does not parse
//   - [ErrConnectionFailed]: every connect attempt failed
//   - [ErrHealthcheckFailed]: a ping failed
package redis
