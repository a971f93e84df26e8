// Package verify checks whether an address is worth sending to before a campaign starts.
//
// A [Verifier] combines a syntax check, a disposable-domain list, a webmail-domain list and
// an MX lookup into a [Result] with one of four statuses:
//
//   - [StatusValid]: well-formed with a mail exchanger
//   - [StatusInvalid]: malformed, or the domain has no MX record
//   - [StatusRisky]: the domain is a disposable mailbox provider
//   - [StatusUnknown]: the MX lookup failed for a reason other than "no such host"
//
// [Verifier.IsDeliverable] attempts valid and unknown addresses, and risky ones only with
// [WithAllowRisky]. DNS failures therefore never make an address undeliverable on their own.
//
// # Caching
//
// Results are cached for [CacheTTL] per lowercased address, so the same list can be
// re-imported without repeating DNS work. Concurrent lookups of one address share a
// single query:
//
//	v := verify.New(
//	    verify.WithCache(cache.NewMemory[verify.Result]()),
//	    verify.WithLookupTimeout(3*time.Second),
//	    verify.WithLogger(log),
//	)
//	if !v.IsDeliverable(ctx, "ada@example.com") {
//	    // pre-mark the recipient as failed
//	}
//
// [WithResolver] replaces the DNS resolver; *net.Resolver satisfies [Resolver].
package verify
