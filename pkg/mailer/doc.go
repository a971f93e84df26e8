// Package mailer defines the provider capability the dispatch engine sends through.
//
// A [Provider] sends one fully rendered [Email] and declares the rate budget of the external
// API behind it:
//
//	type Provider interface {
//	    Name() string
//	    Budget() ratelimit.Budget
//	    Send(ctx context.Context, email *Email) (Receipt, error)
//	}
//
// Providers that can verify their credentials also implement [HealthChecker]; the process
// registers one readiness check per such provider.
//
// # Error Classification
//
// Provider errors are classified with [Transient] and [Permanent]. Anything unclassified is
// treated as transient, so a recipient is never failed because of an unknown error shape:
//
//	if resp.StatusCode >= 500 {
//	    return mailer.Receipt{}, mailer.Transient(err)
//	}
//	return mailer.Receipt{}, mailer.Permanent(err)
//
// [StatusError] maps an HTTP status to the right class (408, 429 and 5xx are transient, other 4xx
// are permanent) and [ContextError] marks transport failures, including cancellation, as transient.
// [IsPermanent] reports the classification of any error.
//
// # Providers
//
// Concrete providers live in sub-packages:
//
//   - resend: the Resend HTTP API
//   - gmail: the Gmail API with an OAuth2 refresh token
//
// Each reads its credentials and rate budget from environment variables:
//
//	p, err := resend.New(resend.Config{
//	    APIKey:       os.Getenv("RESEND_API_KEY"),
//	    SenderEmail:  "news@example.com",
//	    RateCapacity: 2,
//	    RateRefill:   2,
//	    RatePeriod:   time.Second,
//	})
//
// [LogProvider] accepts every message and only logs it; it is meant for local development.
//
// # Selection
//
// [Set] holds the configured providers and orders them for one attempt according to a [Mode]:
//
//   - [ModeSingle]: only the primary provider is used
//   - [ModeHybrid]: the primary provider is preferred and the rest are fallbacks in
//     registration order
//
// [Set.Names] lists the providers usable in the current mode. [Set.Candidates] narrows that
// list to a campaign's allowed providers and moves a preferred provider, such as the one a
// retry was scheduled on, to the front:
//
//	set, err := mailer.NewSet(mailer.ModeHybrid, "resend", resendProvider, gmailProvider)
//	for _, name := range set.Candidates("gmail", "resend", "gmail") {
//	    p, _ := set.Get(name)
//	    // try p in order, skipping providers whose bucket is empty
//	}
//
// An empty candidate list means the campaign cannot be sent in the current mode.
//
// # Errors
//
//   - [ErrNoRecipient], [ErrNoSubject], [ErrNoContent]: [Email.Validate] failures
//   - [ErrTransient], [ErrPermanent]: delivery failure classes
//   - [ErrUnknownProvider], [ErrUnknownMode], [ErrNoProviders]: [NewSet] configuration errors
package mailer
