package internal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/mailcast/pkg/campaign"
	"github.com/dmitrymomot/mailcast/pkg/source"
	"github.com/dmitrymomot/mailcast/pkg/template"
)

// ReasonInvalidAddress is the failure reason of recipients rejected by verification.
const ReasonInvalidAddress = "invalid_address"

// ingest reads the campaign's source from its saved offset, validates the template against
// every record and persists the new recipients with the updated counters in one write.
// Nothing is persisted when validation fails.
func (e *Engine) ingest(ctx context.Context, c *campaign.Campaign, tmpl template.Template) error {
	records, offset, err := e.read(ctx, c.SourceRef, c.Ingested)
	if err != nil {
		return err
	}
	if c.Total == 0 && len(records) == 0 {
		return campaign.ErrEmptySource
	}

	now := e.now()
	for _, rec := range records {
		data := template.Data{
			Now:       now,
			Variables: rec.Variables.Map(),
			Name:      rec.Name,
			Email:     rec.Email,
		}
		if err := e.renderer.Validate(tmpl, data); err != nil {
			return err
		}
	}

	recipients := make([]*campaign.Recipient, len(records))
	for i, rec := range records {
		recipients[i] = &campaign.Recipient{
			ID:         uuid.New(),
			CampaignID: c.ID,
			Name:       strings.TrimSpace(rec.Name),
			Email:      strings.TrimSpace(rec.Email),
			Variables:  rec.Variables,
			Status:     campaign.RecipientPending,
		}
	}
	if err := e.verify(ctx, recipients); err != nil {
		return err
	}

	if c.Options.Shuffle {
		rand.Shuffle(len(recipients), func(i, j int) {
			recipients[i], recipients[j] = recipients[j], recipients[i]
		})
	}
	for i, r := range recipients {
		r.Seq = c.Total + i
	}

	next := c.Clone()
	for _, r := range recipients {
		next.Add(r.Status, 1)
	}
	next.Ingested = offset
	next.UpdatedAt = now
	if err := e.store.AddRecipients(ctx, next, recipients); err != nil {
		return persistenceError(err)
	}
	*c = *next

	e.logger.DebugContext(ctx, "recipients ingested",
		slog.Int("count", len(recipients)),
		slog.Int("offset", offset))
	return nil
}

func (e *Engine) read(ctx context.Context, ref string, offset int) ([]source.Record, int, error) {
	src, err := e.sources.Open(ctx, ref, offset)
	if err != nil {
		return nil, 0, err
	}
	defer src.Close()

	var records []source.Record
	for {
		rec, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	return records, src.Offset(), nil
}

// verify pre-marks undeliverable recipients as Failed so they never enter the dispatch loop.
func (e *Engine) verify(ctx context.Context, recipients []*campaign.Recipient) error {
	if e.verifier == nil {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.VerifyConcurrency)
	for _, r := range recipients {
		g.Go(func() error {
			if !e.verifier.IsDeliverable(ctx, r.Email) {
				r.Status = campaign.RecipientFailed
				r.LastError = ReasonInvalidAddress
			}
			return ctx.Err()
		})
	}
	return g.Wait()
}
