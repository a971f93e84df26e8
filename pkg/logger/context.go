package logger

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	campaignKey ctxKey = iota
	recipientKey
	requestIDKey
)

// WithCampaignID returns a context whose log records carry campaign_id.
func WithCampaignID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, campaignKey, id)
}

// WithRecipientID returns a context whose log records carry recipient_id.
func WithRecipientID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, recipientKey, id)
}

// WithRequestID returns a context whose log records carry request_id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request id stored in ctx, if any.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Campaign extracts campaign_id.
func Campaign() ContextExtractor { return stringExtractor(campaignKey, "campaign_id") }

// Recipient extracts recipient_id.
func Recipient() ContextExtractor { return stringExtractor(recipientKey, "recipient_id") }

// RequestID extracts request_id.
func RequestID() ContextExtractor { return stringExtractor(requestIDKey, "request_id") }

func stringExtractor(key ctxKey, name string) ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			return slog.String(name, v), true
		}
		return slog.Attr{}, false
	}
}
