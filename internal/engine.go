package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/mailcast/pkg/campaign"
	"github.com/dmitrymomot/mailcast/pkg/job"
	"github.com/dmitrymomot/mailcast/pkg/logger"
	"github.com/dmitrymomot/mailcast/pkg/mailer"
	"github.com/dmitrymomot/mailcast/pkg/progress"
	"github.com/dmitrymomot/mailcast/pkg/ratelimit"
	"github.com/dmitrymomot/mailcast/pkg/retry"
	"github.com/dmitrymomot/mailcast/pkg/source"
	"github.com/dmitrymomot/mailcast/pkg/store"
	"github.com/dmitrymomot/mailcast/pkg/template"
)

// Engine runs campaigns.
type Engine struct {
	store     store.Store
	templates store.TemplateStore
	sources   source.Opener
	providers *mailer.Set
	limiter   ratelimit.Limiter
	verifier  Verifier
	tracker   *progress.Tracker
	scheduler job.Enqueuer
	policy    *retry.Policy
	renderer  *template.Renderer
	logger    *slog.Logger
	now       func() time.Time

	dispatchers map[uuid.UUID]*dispatcher
	locks       map[uuid.UUID]*sync.Mutex
	cfg         Config
	wg          sync.WaitGroup
	mu          sync.Mutex
	closed      bool
}

// New creates an engine. Store, templates, sources and providers are required.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.VerifyConcurrency <= 0 {
		cfg.VerifyConcurrency = defaultVerifyConcurrency
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.RecoverySchedule == "" {
		cfg.RecoverySchedule = defaultRecoverySchedule
	}

	e := &Engine{
		cfg:         cfg,
		renderer:    template.NewRenderer(),
		logger:      logger.NewNope(),
		now:         time.Now,
		dispatchers: make(map[uuid.UUID]*dispatcher),
		locks:       make(map[uuid.UUID]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}

	switch {
	case e.store == nil:
		return nil, fmt.Errorf("%w: store", ErrMissingDependency)
	case e.templates == nil:
		return nil, fmt.Errorf("%w: template store", ErrMissingDependency)
	case e.sources == nil:
		return nil, fmt.Errorf("%w: recipient sources", ErrMissingDependency)
	case e.providers == nil:
		return nil, fmt.Errorf("%w: providers", ErrMissingDependency)
	}

	if e.limiter == nil {
		limiter, err := ratelimit.NewMemory(mailer.Budgets(e.providers.Providers()...))
		if err != nil {
			return nil, err
		}
		e.limiter = limiter
	}
	if e.tracker == nil {
		e.tracker = progress.NewTracker()
	}

	policy, err := retry.New(cfg.Retry, e.providers.Names()...)
	if err != nil {
		return nil, err
	}
	e.policy = policy
	return e, nil
}

// SetScheduler enables scheduled starts. The job manager is built after the engine because
// it runs the engine's tasks.
func (e *Engine) SetScheduler(s job.Enqueuer) {
	e.mu.Lock()
	e.scheduler = s
	e.mu.Unlock()
}

// CreateRequest describes a new campaign.
type CreateRequest struct {
	Name       string           `json:"name"`
	TemplateID string           `json:"template_id"`
	SourceRef  string           `json:"source_ref"`
	Options    campaign.Options `json:"options"`
}

// Create stores a Draft campaign.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (*campaign.Campaign, error) {
	if req.SourceRef == "" {
		return nil, ErrEmptySourceRef
	}
	if _, err := e.templates.GetTemplate(ctx, req.TemplateID); err != nil {
		return nil, err
	}
	// Only providers usable in the current mode are accepted.
	usable := e.providers.Names()
	for _, name := range req.Options.Providers {
		if !slices.Contains(usable, name) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
		}
	}
	if req.Name == "" {
		req.Name = req.TemplateID
	}

	c := campaign.New(req.Name, req.TemplateID, req.SourceRef, req.Options, e.now())
	if err := e.store.CreateCampaign(ctx, c); err != nil {
		return nil, persistenceError(err)
	}
	e.tracker.Seed(c, nil)

	e.logger.InfoContext(logger.WithCampaignID(ctx, c.ID.String()), "campaign created",
		slog.String("template_id", c.TemplateID),
		slog.String("source_ref", c.SourceRef))
	return c.Clone(), nil
}

// Get returns the persisted campaign.
func (e *Engine) Get(ctx context.Context, id uuid.UUID) (*campaign.Campaign, error) {
	return e.store.GetCampaign(ctx, id)
}

// List returns campaigns, optionally filtered by status.
func (e *Engine) List(ctx context.Context, statuses ...campaign.Status) ([]*campaign.Campaign, error) {
	return e.store.ListCampaigns(ctx, statuses...)
}

// Recipients returns a campaign's recipients in send order.
func (e *Engine) Recipients(ctx context.Context, id uuid.UUID, statuses ...campaign.RecipientStatus) ([]*campaign.Recipient, error) {
	if _, err := e.store.GetCampaign(ctx, id); err != nil {
		return nil, err
	}
	return e.store.ListRecipients(ctx, id, statuses...)
}

// Start validates and ingests a Draft campaign and begins dispatching it.
// Starting a Running campaign returns its current state.
func (e *Engine) Start(ctx context.Context, id uuid.UUID) (*campaign.Campaign, error) {
	unlock := e.lock(id)
	defer unlock()

	c, err := e.store.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithCampaignID(ctx, id.String())

	switch c.Status {
	case campaign.StatusRunning:
		if e.active(id) == nil {
			if err := e.launch(ctx, c); err != nil {
				return nil, err
			}
		}
		return c, nil
	case campaign.StatusDraft:
	default:
		return c, transitionError(c.Status, campaign.StatusRunning)
	}

	tmpl, err := e.templates.GetTemplate(ctx, c.TemplateID)
	if err != nil {
		return nil, err
	}
	if err := e.ingest(ctx, c, tmpl); err != nil {
		e.logger.WarnContext(ctx, "campaign start rejected", slog.Any("error", err))
		return nil, err
	}

	if err := c.SetStatus(campaign.StatusRunning, e.now()); err != nil {
		return nil, err
	}
	if err := e.store.SaveCampaignState(ctx, c); err != nil {
		return nil, persistenceError(err)
	}
	if err := e.launch(ctx, c); err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "campaign started",
		slog.Int("total", c.Total),
		slog.Int("failed", c.Failed))
	return c.Clone(), nil
}

// Schedule starts a Draft campaign at the given time through the job queue.
// A time in the past starts the campaign immediately.
func (e *Engine) Schedule(ctx context.Context, id uuid.UUID, at time.Time) (*campaign.Campaign, error) {
	if !at.After(e.now()) {
		return e.Start(ctx, id)
	}

	e.mu.Lock()
	scheduler := e.scheduler
	e.mu.Unlock()
	if scheduler == nil {
		return nil, ErrSchedulerUnavailable
	}

	c, err := e.store.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	switch c.Status {
	case campaign.StatusDraft:
	case campaign.StatusRunning:
		return c, nil
	default:
		return c, transitionError(c.Status, campaign.StatusRunning)
	}

	if err := scheduler.Enqueue(ctx, TaskStartCampaign, StartCampaignPayload{CampaignID: id},
		job.ScheduledAt(at),
		job.UniqueFor(24*time.Hour),
		job.UniqueKey(id.String()),
	); err != nil {
		return nil, err
	}

	e.logger.InfoContext(logger.WithCampaignID(ctx, id.String()), "campaign start scheduled",
		slog.Time("at", at))
	return c, nil
}

// Pause stops dispatching new sends and waits for in-flight ones to finish.
// Pausing a Paused campaign returns its current state.
func (e *Engine) Pause(ctx context.Context, id uuid.UUID) (*campaign.Campaign, error) {
	unlock := e.lock(id)
	defer unlock()

	if d := e.active(id); d != nil {
		return d.stop(ctx, haltPause, campaign.StatusPaused)
	}

	c, err := e.store.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	switch c.Status {
	case campaign.StatusPaused:
		return c, nil
	case campaign.StatusRunning:
		// Persisted as Running but owned by no dispatcher in this process.
		if err := c.SetStatus(campaign.StatusPaused, e.now()); err != nil {
			return nil, err
		}
		if err := e.store.SaveCampaignState(ctx, c); err != nil {
			return nil, persistenceError(err)
		}
		if err := e.reseed(ctx, c); err != nil {
			return nil, err
		}
		return c, nil
	}
	return c, transitionError(c.Status, campaign.StatusPaused)
}

// Resume continues a Paused campaign from its first non-terminal recipient.
// Resuming a Running campaign returns its current state.
func (e *Engine) Resume(ctx context.Context, id uuid.UUID) (*campaign.Campaign, error) {
	unlock := e.lock(id)
	defer unlock()

	c, err := e.store.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithCampaignID(ctx, id.String())

	switch c.Status {
	case campaign.StatusRunning:
		if e.active(id) == nil {
			if err := e.launch(ctx, c); err != nil {
				return nil, err
			}
		}
		return c, nil
	case campaign.StatusPaused:
	default:
		return c, transitionError(c.Status, campaign.StatusRunning)
	}

	c.FailureReason = ""
	if err := c.SetStatus(campaign.StatusRunning, e.now()); err != nil {
		return nil, err
	}
	if err := e.store.SaveCampaignState(ctx, c); err != nil {
		return nil, persistenceError(err)
	}
	if err := e.launch(ctx, c); err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "campaign resumed", slog.Int("pending", c.Pending))
	return c.Clone(), nil
}

// Cancel marks every remaining recipient Cancelled and ends the campaign.
// In-flight sends complete first. Cancelling a Cancelled campaign returns its current state.
func (e *Engine) Cancel(ctx context.Context, id uuid.UUID) (*campaign.Campaign, error) {
	unlock := e.lock(id)
	defer unlock()

	if d := e.active(id); d != nil {
		return d.stop(ctx, haltCancel, campaign.StatusCancelled)
	}

	c, err := e.store.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithCampaignID(ctx, id.String())

	switch c.Status {
	case campaign.StatusCancelled:
		return c, nil
	case campaign.StatusDraft, campaign.StatusPaused, campaign.StatusRunning:
	default:
		return c, transitionError(c.Status, campaign.StatusCancelled)
	}

	recipients, err := e.store.ListRecipients(ctx, id)
	if err != nil {
		return nil, persistenceError(err)
	}
	// Seed first so the cancel events apply to the persisted breakdown.
	e.tracker.Seed(c, recipients)

	remaining := slices.DeleteFunc(recipients, func(r *campaign.Recipient) bool {
		return r.Status != campaign.RecipientSending && !r.Status.IsDispatchable()
	})
	for _, r := range remaining {
		ev := cancelRecipient(c, r, e.now())
		if err := e.store.SaveRecipientStatus(ctx, r); err != nil {
			return nil, persistenceError(err)
		}
		e.tracker.Publish(ctx, ev)
	}

	if err := c.SetStatus(campaign.StatusCancelled, e.now()); err != nil {
		return nil, err
	}
	if err := e.store.SaveCampaignState(ctx, c); err != nil {
		return nil, persistenceError(err)
	}
	e.tracker.Forget(id)

	e.logger.InfoContext(ctx, "campaign cancelled", slog.Int("cancelled", len(remaining)))
	return c, nil
}

// reseed rebuilds the tracked state of a campaign that no dispatcher owns.
func (e *Engine) reseed(ctx context.Context, c *campaign.Campaign) error {
	recipients, err := e.store.ListRecipients(ctx, c.ID)
	if err != nil {
		return persistenceError(err)
	}
	e.tracker.Seed(c, recipients)
	return nil
}

// Progress returns the live progress snapshot of a campaign.
func (e *Engine) Progress(ctx context.Context, id uuid.UUID) (progress.Snapshot, error) {
	if snap, ok := e.tracker.Snapshot(id); ok {
		return snap, nil
	}

	c, err := e.store.GetCampaign(ctx, id)
	if err != nil {
		return progress.Snapshot{}, err
	}
	recipients, err := e.store.ListRecipients(ctx, id)
	if err != nil {
		return progress.Snapshot{}, persistenceError(err)
	}

	// Finished campaigns are rebuilt from the store on every read instead of being tracked.
	tracker := e.tracker
	if c.Status.IsTerminal() {
		tracker = progress.NewTracker()
	}
	tracker.Seed(c, recipients)
	snap, _ := tracker.Snapshot(id)
	return snap, nil
}

// Attempts returns a page of a campaign's delivery attempts, newest first.
func (e *Engine) Attempts(ctx context.Context, q store.AttemptQuery) (store.AttemptPage, error) {
	if _, err := e.store.GetCampaign(ctx, q.CampaignID); err != nil {
		return store.AttemptPage{}, err
	}
	return e.store.ListAttempts(ctx, q)
}

// Recover adopts every campaign persisted as Running that has no dispatcher in this process.
// It returns the number of adopted campaigns.
func (e *Engine) Recover(ctx context.Context) (int, error) {
	running, err := e.store.ListCampaigns(ctx, campaign.StatusRunning)
	if err != nil {
		return 0, persistenceError(err)
	}

	var adopted atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, c := range running {
		if e.active(c.ID) != nil {
			continue
		}
		g.Go(func() error {
			ok, err := e.adopt(ctx, c.ID)
			if ok {
				adopted.Add(1)
			}
			return err
		})
	}
	err = g.Wait()

	if n := adopted.Load(); n > 0 {
		e.logger.InfoContext(ctx, "recovered campaigns", slog.Int64("count", n))
	}
	return int(adopted.Load()), err
}

func (e *Engine) adopt(ctx context.Context, id uuid.UUID) (bool, error) {
	unlock := e.lock(id)
	defer unlock()

	if e.active(id) != nil {
		return false, nil
	}
	c, err := e.store.GetCampaign(ctx, id)
	if err != nil {
		return false, err
	}
	if c.Status != campaign.StatusRunning {
		return false, nil
	}
	if err := e.launch(logger.WithCampaignID(ctx, id.String()), c); err != nil {
		return false, err
	}
	return true, nil
}

// Close stops every dispatcher after its in-flight sends finish. Campaigns stay Running in the
// store so that Recover resumes them on the next start.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	for _, d := range e.dispatchers {
		d.halt(haltShutdown)
	}
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// launch loads the recipients of a Running campaign and hands it to a new dispatcher.
// Recipients left in Sending by a crashed process return to their previous state.
func (e *Engine) launch(ctx context.Context, c *campaign.Campaign) error {
	tmpl, err := e.templates.GetTemplate(ctx, c.TemplateID)
	if err != nil {
		return err
	}
	recipients, err := e.store.ListRecipients(ctx, c.ID)
	if err != nil {
		return persistenceError(err)
	}

	now := e.now()
	for _, r := range recipients {
		if r.Status != campaign.RecipientSending {
			continue
		}
		r.Status = campaign.RecipientPending
		if r.Attempts > 0 {
			r.Status = campaign.RecipientRetrying
			r.NextAttemptAt = now
		}
		if err := e.store.SaveRecipientStatus(ctx, r); err != nil {
			return persistenceError(err)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}

	e.tracker.Seed(c, recipients)
	d := newDispatcher(e, c.Clone(), tmpl, recipients)
	e.dispatchers[c.ID] = d
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		d.run(logger.WithCampaignID(context.Background(), c.ID.String()))
		e.mu.Lock()
		delete(e.dispatchers, c.ID)
		e.mu.Unlock()
		close(d.done)
	}()
	return nil
}

func (e *Engine) active(id uuid.UUID) *dispatcher {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dispatchers[id]
}

// lock serializes lifecycle commands on one campaign.
func (e *Engine) lock(id uuid.UUID) func() {
	e.mu.Lock()
	l, ok := e.locks[id]
	if !ok {
		l = &sync.Mutex{}
		e.locks[id] = l
	}
	e.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func cancelRecipient(c *campaign.Campaign, r *campaign.Recipient, now time.Time) campaign.Event {
	from := r.Status
	r.Status = campaign.RecipientCancelled
	r.NextAttemptAt = time.Time{}
	c.Apply(from, r.Status)
	return campaign.Event{
		At:          now,
		From:        from,
		To:          r.Status,
		Attempt:     r.Attempts,
		CampaignID:  c.ID,
		RecipientID: r.ID,
	}
}

func transitionError(from, to campaign.Status) error {
	return fmt.Errorf("%w: %s -> %s", campaign.ErrInvalidTransition, from, to)
}

func persistenceError(err error) error {
	if errors.Is(err, store.ErrUnavailable) {
		return errors.Join(ErrPersistenceUnavailable, err)
	}
	return err
}
