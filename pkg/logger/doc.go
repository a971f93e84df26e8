// Package logger builds the service's structured slog logger.
//
// # Configuration
//
// [Config] is loaded from LOG_* and SENTRY_* environment variables:
//
//	LOG_LEVEL=info            debug, info, warn or error
//	LOG_FORMAT=json           json or text
//	SENTRY_DSN=               enables Sentry when set
//	SENTRY_ENVIRONMENT=production
//	SENTRY_MIN_LEVEL=warn     lowest level stored in Sentry as a log entry
//
// # Context Attributes
//
// Records carry campaign, recipient and request identifiers pulled from the context by
// [ContextExtractor] functions, so every line written while dispatching a message can be
// correlated without passing ids through each call:
//
//	log := logger.New(cfg, os.Stdout, logger.Campaign(), logger.Recipient(), logger.RequestID())
//	ctx = logger.WithCampaignID(ctx, c.ID.String())
//	log.InfoContext(ctx, "campaign started") // {"msg":"campaign started","campaign_id":"..."}
//
// An attribute passed explicitly at the call site wins over the context value of the same
// key. [NewLogHandlerDecorator] applies extractors to any slog.Handler, and a custom
// extractor is a plain function:
//
//	tenant := func(ctx context.Context) (slog.Attr, bool) {
//	    id, ok := ctx.Value(tenantKey{}).(string)
//	    return slog.String("tenant_id", id), ok
//	}
//
// # Sentry
//
// When SENTRY_DSN is set, warnings are forwarded to Sentry as logs and errors as issues,
// next to the stdout handler. A handler that fails does not stop the others from receiving
// the record. A failed Sentry initialization falls back to stdout only.
//
// [NewNope] returns a logger that discards everything; packages use it as their default.
package logger
