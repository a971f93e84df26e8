// Package retry decides what happens after a failed send.
//
// [Policy.Decide] is a pure function of the attempt number, the outcome classification and the
// provider that was used: permanent failures give up immediately, transient failures retry with
// exponential backoff until MaxAttempts is reached, then give up with [ReasonMaxAttempts].
//
// # Backoff
//
// [Policy.Backoff] gives the delay before attempt n+1: BaseDelay * Multiplier^(n-1), capped
// at MaxDelay. There is no jitter, and the same inputs always produce the same [Decision].
//
// All backoff parameters are required configuration; [Config.Validate] rejects zero values
// instead of guessing defaults.
//
//	policy, err := retry.New(retry.Config{
//	    MaxAttempts: 5,
//	    BaseDelay:   time.Second,
//	    MaxDelay:    time.Minute,
//	    Multiplier:  2,
//	}, set.Names()...)
//
//	d := policy.Decide(r.Attempts, outcome, "resend")
//	switch d.Action {
//	case retry.ActionRetry:
//	    // schedule at now + d.After on d.Provider
//	case retry.ActionGiveUp:
//	    // fail the recipient with d.Reason
//	}
//
// # Provider Switching
//
// When SwitchProvider is enabled, a retry rotates to the provider after the one that failed,
// in the order passed to [New]. Otherwise the retry stays on the same provider.
package retry
