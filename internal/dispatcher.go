package internal

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/mailcast/pkg/campaign"
	"github.com/dmitrymomot/mailcast/pkg/mailer"
	"github.com/dmitrymomot/mailcast/pkg/ratelimit"
	"github.com/dmitrymomot/mailcast/pkg/retry"
	"github.com/dmitrymomot/mailcast/pkg/template"
)

// haltReason values are ordered by precedence: a later request only ever raises it.
type haltReason int

const (
	haltNone haltReason = iota
	haltShutdown
	haltPause
	haltPersistence
	haltCancel
)

const reasonUnrenderable = "template could not be rendered for any recipient"

// dispatcher is the single owner of one running campaign and its recipients.
// Only the run goroutine mutates them; workers read a recipient while it is in flight.
type dispatcher struct {
	startedAt time.Time
	e         *Engine
	campaign  *campaign.Campaign
	err       error
	tasks     chan *campaign.Recipient
	results   chan result
	halted    chan struct{}
	done      chan struct{}
	tmpl      template.Template
	from      string
	allowed   []string
	pending   []*campaign.Recipient
	retries   []*campaign.Recipient
	delayed   delayQueue

	pool         int
	rendered     int
	unrenderable int

	mu     sync.Mutex
	reason haltReason
	id     uuid.UUID
}

func newDispatcher(e *Engine, c *campaign.Campaign, tmpl template.Template, recipients []*campaign.Recipient) *dispatcher {
	d := &dispatcher{
		e:         e,
		campaign:  c,
		tmpl:      tmpl,
		id:        c.ID,
		startedAt: c.StartedAt,
		allowed:   c.Options.Providers,
		halted:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	if e.cfg.SenderEmail != "" {
		d.from = mailer.FormatSender(e.cfg.SenderEmail, e.cfg.SenderName)
	}

	now := e.now()
	for _, r := range recipients {
		switch {
		case r.Status == campaign.RecipientPending:
			d.pending = append(d.pending, r)
		case r.Status == campaign.RecipientRetrying && r.NextAttemptAt.After(now):
			d.delayed.Push(r)
		case r.Status == campaign.RecipientRetrying:
			d.retries = append(d.retries, r)
		}
	}

	pool := e.cfg.Workers
	if headroom := ratelimit.Headroom(e.limiter, e.providers.Candidates("", d.allowed...)...); headroom > 0 {
		pool = min(pool, headroom)
	}
	d.pool = max(pool, 1)
	d.tasks = make(chan *campaign.Recipient, d.pool)
	d.results = make(chan result, d.pool)
	return d
}

// halt asks the dispatcher to stop dispatching. It never lowers an earlier request.
func (d *dispatcher) halt(reason haltReason) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if reason <= d.reason {
		return
	}
	if d.reason == haltNone {
		close(d.halted)
	}
	d.reason = reason
}

func (d *dispatcher) haltReason() haltReason {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reason
}

// stop halts the dispatcher, waits for it to exit and returns the final campaign state.
// The error reports a campaign that reached another status first.
func (d *dispatcher) stop(ctx context.Context, reason haltReason, want campaign.Status) (*campaign.Campaign, error) {
	d.halt(reason)
	select {
	case <-d.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	c := d.campaign.Clone()
	if c.Status != want {
		if d.err != nil {
			return c, d.err
		}
		return c, transitionError(c.Status, want)
	}
	return c, nil
}

func (d *dispatcher) run(ctx context.Context) {
	if len(d.e.providers.Candidates("", d.allowed...)) == 0 {
		d.abandon(ctx, ErrNoUsableProvider)
		return
	}

	var workers sync.WaitGroup
	for range d.pool {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for r := range d.tasks {
				d.results <- d.attempt(ctx, r)
			}
		}()
	}
	defer func() {
		close(d.tasks)
		workers.Wait()
	}()

	d.e.logger.DebugContext(ctx, "dispatcher started",
		slog.Int("workers", d.pool),
		slog.Int("pending", len(d.pending)),
		slog.Int("retrying", len(d.retries)+d.delayed.Len()))

	halted := d.halted
	inflight := 0
	for {
		reason := d.haltReason()
		for reason == haltNone && inflight < d.pool {
			r := d.next()
			if r == nil {
				break
			}
			if err := d.markSending(ctx, r); err != nil {
				d.requeue(r)
				d.fail(ctx, err)
				reason = d.haltReason()
				break
			}
			d.tasks <- r
			inflight++
		}

		if inflight == 0 {
			if reason != haltNone {
				d.finish(ctx, reason)
				return
			}
			if d.idle() {
				d.complete(ctx)
				return
			}
		}

		var timer *time.Timer
		var wake <-chan time.Time
		if due, ok := d.delayed.Next(); ok && reason == haltNone && inflight < d.pool {
			timer = time.NewTimer(max(due.Sub(d.e.now()), 0))
			wake = timer.C
		}
		if reason != haltNone {
			halted = nil
		}

		select {
		case res := <-d.results:
			inflight--
			d.handle(ctx, res)
		case <-wake:
		case <-halted:
		}
		if timer != nil {
			timer.Stop()
		}
		d.retries = append(d.retries, d.delayed.PopDue(d.e.now())...)
	}
}

// next pops the next dispatchable recipient: due retries first, then pending in send order.
func (d *dispatcher) next() *campaign.Recipient {
	for len(d.retries) > 0 || len(d.pending) > 0 {
		var r *campaign.Recipient
		if len(d.retries) > 0 {
			r, d.retries = d.retries[0], d.retries[1:]
		} else {
			r, d.pending = d.pending[0], d.pending[1:]
		}
		if r.Status.IsDispatchable() {
			return r
		}
	}
	return nil
}

func (d *dispatcher) requeue(r *campaign.Recipient) {
	if r.Status == campaign.RecipientRetrying {
		d.retries = append([]*campaign.Recipient{r}, d.retries...)
		return
	}
	d.pending = append([]*campaign.Recipient{r}, d.pending...)
}

func (d *dispatcher) idle() bool {
	return len(d.pending) == 0 && len(d.retries) == 0 && d.delayed.Len() == 0
}

func (d *dispatcher) markSending(ctx context.Context, r *campaign.Recipient) error {
	from := r.Status
	r.Status = campaign.RecipientSending
	if err := d.e.store.SaveRecipientStatus(ctx, r); err != nil {
		r.Status = from
		return err
	}
	d.publish(ctx, r, from, "")
	return nil
}

// handle applies the result of one worker run to the recipient and the campaign.
func (d *dispatcher) handle(ctx context.Context, res result) {
	r := res.recipient
	from := r.Status
	now := d.e.now()

	if res.aborted {
		switch {
		case d.haltReason() == haltCancel:
			r.Status = campaign.RecipientCancelled
		case r.Attempts == 0:
			r.Status = campaign.RecipientPending
		default:
			r.Status = campaign.RecipientRetrying
			r.NextAttemptAt = now
		}
		d.campaign.Apply(from, r.Status)
		if err := d.e.store.SaveRecipientStatus(ctx, r); err != nil {
			d.fail(ctx, err)
		}
		d.publish(ctx, r, from, "")
		if r.Status != campaign.RecipientCancelled {
			d.requeue(r)
		}
		return
	}

	a := res.attempt
	r.Attempts++
	a.ID = uuid.New()
	a.Number = r.Attempts
	a.CampaignID = d.id
	a.RecipientID = r.ID
	r.LastAttemptAt = a.At
	r.NextAttemptAt = time.Time{}
	if res.unrenderable {
		d.unrenderable++
	} else {
		d.rendered++
	}

	decision := d.e.policy.Decide(a.Number, a.Outcome, a.Provider)
	switch decision.Action {
	case retry.ActionDone:
		r.Status = campaign.RecipientSent
		r.LastError = ""
	case retry.ActionRetry:
		r.LastError = a.Outcome.Reason
		r.Provider = decision.Provider
		if d.haltReason() == haltCancel {
			r.Status = campaign.RecipientCancelled
		} else {
			r.Status = campaign.RecipientRetrying
			r.NextAttemptAt = now.Add(decision.After)
		}
	case retry.ActionGiveUp:
		r.Status = campaign.RecipientFailed
		r.LastError = decision.Reason
		if decision.Reason == retry.ReasonMaxAttempts && a.Outcome.Reason != "" {
			r.LastError = decision.Reason + ": " + a.Outcome.Reason
		}
	}
	d.campaign.Apply(from, r.Status)
	d.campaign.UpdatedAt = now

	if err := d.e.store.RecordAttempt(ctx, a, r, d.campaign); err != nil {
		d.fail(ctx, err)
	}
	d.publish(ctx, r, from, a.Provider)
	d.e.tracker.Update(d.campaign)

	if r.Status == campaign.RecipientRetrying {
		d.delayed.Push(r)
	}
}

// fail records a checkpoint failure and pauses the campaign.
func (d *dispatcher) fail(ctx context.Context, err error) {
	if d.err == nil {
		d.err = errors.Join(ErrPersistenceUnavailable, err)
		d.e.logger.ErrorContext(ctx, "checkpoint failed, pausing campaign", slog.Any("error", err))
	}
	d.halt(haltPersistence)
}

func (d *dispatcher) finish(ctx context.Context, reason haltReason) {
	c := d.campaign
	now := d.e.now()

	switch reason {
	case haltShutdown:
		d.e.logger.InfoContext(ctx, "dispatcher stopped", slog.Int("pending", c.Pending))
		return
	case haltCancel:
		remaining := append(append(d.retries, d.pending...), d.delayed.Drain()...)
		d.retries, d.pending = nil, nil
		for _, r := range remaining {
			if !r.Status.IsDispatchable() {
				continue
			}
			ev := cancelRecipient(c, r, now)
			if err := d.e.store.SaveRecipientStatus(ctx, r); err != nil {
				d.fail(ctx, err)
			}
			d.e.tracker.Publish(ctx, ev)
		}
		_ = c.SetStatus(campaign.StatusCancelled, now)
	default:
		if reason == haltPersistence {
			c.FailureReason = ErrPersistenceUnavailable.Error()
		}
		_ = c.SetStatus(campaign.StatusPaused, now)
	}

	d.save(ctx)
	d.e.logger.InfoContext(ctx, "campaign "+string(c.Status),
		slog.Int("sent", c.Sent),
		slog.Int("failed", c.Failed),
		slog.Int("pending", c.Pending))
}

// abandon fails a campaign that cannot be dispatched at all. Recipients keep their status.
func (d *dispatcher) abandon(ctx context.Context, cause error) {
	c := d.campaign
	c.FailureReason = cause.Error()
	_ = c.SetStatus(campaign.StatusFailed, d.e.now())

	d.save(ctx)
	d.e.logger.ErrorContext(ctx, "campaign failed",
		slog.String("reason", c.FailureReason),
		slog.Any("providers", d.allowed),
		slog.Int("pending", c.Pending))
}

func (d *dispatcher) complete(ctx context.Context) {
	c := d.campaign
	status := campaign.StatusCompleted
	if d.rendered == 0 && d.unrenderable > 0 {
		status = campaign.StatusFailed
		c.FailureReason = reasonUnrenderable
	}
	_ = c.SetStatus(status, d.e.now())

	d.save(ctx)
	d.e.logger.InfoContext(ctx, "campaign "+string(c.Status),
		slog.Int("sent", c.Sent),
		slog.Int("failed", c.Failed),
		slog.Int("total", c.Total))
}

// save checkpoints the final campaign state. A campaign that cannot be saved stays Running in
// the store and is finished again by the next recovery sweep.
func (d *dispatcher) save(ctx context.Context) {
	c := d.campaign
	if err := d.e.store.SaveCampaignState(ctx, c); err != nil {
		if d.err == nil {
			d.err = errors.Join(ErrPersistenceUnavailable, err)
		}
		d.e.logger.ErrorContext(ctx, "failed to save campaign state", slog.Any("error", err))
	}
	d.e.tracker.Update(c)
	if c.Status.IsTerminal() {
		d.e.tracker.Forget(c.ID)
	}
}

func (d *dispatcher) publish(ctx context.Context, r *campaign.Recipient, from campaign.RecipientStatus, provider string) {
	ev := campaign.Event{
		At:            d.e.now(),
		NextAttemptAt: r.NextAttemptAt,
		From:          from,
		To:            r.Status,
		Provider:      provider,
		Attempt:       r.Attempts,
		CampaignID:    d.id,
		RecipientID:   r.ID,
	}
	if r.Status == campaign.RecipientRetrying || r.Status == campaign.RecipientFailed {
		ev.Reason = r.LastError
	}
	d.e.tracker.Publish(ctx, ev)
}
