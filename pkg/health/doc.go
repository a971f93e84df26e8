// Package health runs named dependency checks and serves liveness and readiness probes.
//
// # Checks
//
// A [CheckFunc] returns nil when its dependency is usable. [Checks] maps a name to a check;
// the process assembles one map from every configured dependency:
//
//	checks := health.Checks{
//	    "postgres": db.Healthcheck(pool),
//	    "redis":    redis.Healthcheck(client),
//	}
//	maps.Copy(checks, mailcast.ProviderChecks(providers)) // provider_resend, provider_gmail
//
// The same map backs the readiness endpoint and the engine's provider health report, so a
// revoked Resend key or an expired Gmail refresh token shows up in both.
//
// # Running
//
// [Run] executes every check concurrently under one timeout, 5s unless [WithTimeout] says
// otherwise. A check that does not finish in time fails with [ErrCheckTimeout]:
//
//	resp := health.Run(ctx, checks, health.WithTimeout(2*time.Second), health.WithLogger(log))
//	if !resp.Healthy() {
//	    for name, c := range resp.Checks {
//	        log.Warn("dependency down", "check", name, "error", c.Error)
//	    }
//	}
//
// # Handlers
//
// [LivenessHandler] always answers 200. [ReadinessHandler] runs the checks on every request
// and answers 503 when any fails:
//
//	r.Get("/health/live", health.LivenessHandler())
//	r.Get("/health/ready", health.ReadinessHandler(checks))
//
// Responses are plain text unless the client sends Accept: application/json or
// ?format=json, in which case the [Response] is encoded:
//
//	{"checks":{"postgres":{"status":"healthy"},"redis":{"status":"unhealthy","error":"redis: ping failed"}},"status":"unhealthy"}
package health
