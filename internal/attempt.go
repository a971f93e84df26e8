package internal

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dmitrymomot/mailcast/pkg/campaign"
	"github.com/dmitrymomot/mailcast/pkg/logger"
	"github.com/dmitrymomot/mailcast/pkg/mailer"
	"github.com/dmitrymomot/mailcast/pkg/template"
)

// result is what a worker reports back for one dispatched recipient.
type result struct {
	recipient *campaign.Recipient
	attempt   campaign.Attempt
	// aborted means no send happened because the campaign was halted while waiting for a token.
	aborted      bool
	unrenderable bool
}

// attempt renders, acquires a token and sends once. It runs on a worker and must not
// modify the recipient.
func (d *dispatcher) attempt(ctx context.Context, r *campaign.Recipient) result {
	res := result{recipient: r}
	ctx = logger.WithRecipientID(ctx, r.ID.String())

	msg, err := d.e.renderer.Render(d.tmpl, template.Data{
		Now:       d.startedAt,
		Variables: r.Variables.Map(),
		Name:      r.Name,
		Email:     r.Email,
	})
	if err != nil {
		d.e.logger.WarnContext(ctx, "render failed", slog.Any("error", err))
		res.unrenderable = true
		res.attempt = campaign.Attempt{At: d.e.now(), Outcome: campaign.Permanent("render: " + err.Error())}
		return res
	}

	provider, ok := d.acquire(ctx, r)
	if !ok {
		res.aborted = true
		return res
	}

	email := &mailer.Email{
		From:    d.from,
		To:      mailer.Recipient(r.Name, r.Email),
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
		Tags:    mailer.Tags{"campaign_id": d.id.String()},
		Headers: map[string]string{
			"X-Campaign-ID":  d.id.String(),
			"X-Recipient-ID": r.ID.String(),
		},
	}

	at := d.e.now()
	receipt, err := provider.Send(ctx, email)
	res.attempt = campaign.Attempt{
		At:        at,
		Provider:  provider.Name(),
		MessageID: receipt.MessageID,
		Outcome:   classify(err),
	}
	if err != nil {
		d.e.logger.WarnContext(ctx, "send failed",
			slog.String("provider", provider.Name()),
			slog.Int("attempt", r.Attempts+1),
			slog.String("outcome", string(res.attempt.Outcome.Kind)),
			slog.Any("error", err))
	}
	return res
}

// acquire takes a token from the first candidate provider that has one. When every bucket is
// empty it waits for the shortest refill, bounded by the poll interval. It gives up when the
// campaign is halted.
func (d *dispatcher) acquire(ctx context.Context, r *campaign.Recipient) (mailer.Provider, bool) {
	for {
		wait := d.e.cfg.PollInterval
		for _, name := range d.e.providers.Candidates(r.Provider, d.allowed...) {
			decision, err := d.e.limiter.Acquire(ctx, name)
			if err != nil {
				d.e.logger.WarnContext(ctx, "rate limiter unavailable",
					slog.String("provider", name),
					slog.Any("error", err))
				continue
			}
			if !decision.Allowed {
				wait = min(wait, decision.RetryAfter)
				continue
			}
			if d.haltReason() != haltNone {
				if err := d.e.limiter.Release(ctx, name); err != nil {
					d.e.logger.WarnContext(ctx, "failed to release token", slog.Any("error", err))
				}
				return nil, false
			}
			provider, _ := d.e.providers.Get(name)
			return provider, true
		}

		timer := time.NewTimer(wait)
		select {
		case <-d.halted:
			timer.Stop()
			return nil, false
		case <-ctx.Done():
			timer.Stop()
			return nil, false
		case <-timer.C:
		}
	}
}

func classify(err error) campaign.Outcome {
	switch {
	case err == nil:
		return campaign.Success()
	case mailer.IsPermanent(err):
		return campaign.Permanent(failureReason(err))
	default:
		return campaign.Transient(failureReason(err))
	}
}

// failureReason drops the classification sentinel joined in front of provider errors.
func failureReason(err error) string {
	msg := err.Error()
	if i := strings.LastIndexByte(msg, '\n'); i >= 0 {
		msg = msg[i+1:]
	}
	return msg
}
