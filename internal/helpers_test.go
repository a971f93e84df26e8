package internal_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailcast/internal"
	"github.com/dmitrymomot/mailcast/pkg/campaign"
	"github.com/dmitrymomot/mailcast/pkg/job"
	"github.com/dmitrymomot/mailcast/pkg/mailer"
	"github.com/dmitrymomot/mailcast/pkg/ratelimit"
	"github.com/dmitrymomot/mailcast/pkg/retry"
	"github.com/dmitrymomot/mailcast/pkg/source"
	"github.com/dmitrymomot/mailcast/pkg/store"
)

type sendFunc func(ctx context.Context, email *mailer.Email) (mailer.Receipt, error)

// fakeProvider records every message and delegates the outcome to send.
type fakeProvider struct {
	name     string
	budget   ratelimit.Budget
	send     sendFunc
	mu       sync.Mutex
	sent     []*mailer.Email
	inflight atomic.Int32
	peak     atomic.Int32
}

func newFakeProvider(name string, send sendFunc) *fakeProvider {
	return &fakeProvider{
		name:   name,
		budget: ratelimit.Budget{Capacity: 1000, Refill: 1000, Per: time.Second},
		send:   send,
	}
}

func (p *fakeProvider) Name() string             { return p.name }
func (p *fakeProvider) Budget() ratelimit.Budget { return p.budget }

func (p *fakeProvider) Send(ctx context.Context, email *mailer.Email) (mailer.Receipt, error) {
	n := p.inflight.Add(1)
	defer p.inflight.Add(-1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	p.mu.Lock()
	p.sent = append(p.sent, email)
	p.mu.Unlock()

	if p.send != nil {
		return p.send(ctx, email)
	}
	return mailer.Receipt{MessageID: uuid.NewString()}, nil
}

func (p *fakeProvider) Sent() []*mailer.Email {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*mailer.Email(nil), p.sent...)
}

// flakyStore fails checkpoint writes once broken is set.
type flakyStore struct {
	*store.Memory
	broken atomic.Bool
}

func (s *flakyStore) RecordAttempt(ctx context.Context, a campaign.Attempt, r *campaign.Recipient, c *campaign.Campaign) error {
	if s.broken.Load() {
		return store.ErrUnavailable
	}
	return s.Memory.RecordAttempt(ctx, a, r, c)
}

func (s *flakyStore) SaveRecipientStatus(ctx context.Context, r *campaign.Recipient) error {
	if s.broken.Load() {
		return store.ErrUnavailable
	}
	return s.Memory.SaveRecipientStatus(ctx, r)
}

type enqueued struct {
	name    string
	payload any
	opts    int
}

type fakeScheduler struct {
	mu   sync.Mutex
	jobs []enqueued
	err  error
}

func (s *fakeScheduler) Enqueue(_ context.Context, name string, payload any, opts ...job.EnqueueOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.jobs = append(s.jobs, enqueued{name: name, payload: payload, opts: len(opts)})
	return nil
}

type verifierFunc func(ctx context.Context, addr string) bool

func (f verifierFunc) IsDeliverable(ctx context.Context, addr string) bool { return f(ctx, addr) }

type fixture struct {
	engine  *internal.Engine
	store   *store.Memory
	sources *source.Memory
}

type fixtureConfig struct {
	cfg    internal.Config
	store  store.Store
	opener func(mem *source.Memory) source.Opener
	mode   mailer.Mode
	opts   []internal.Option
}

type fixtureOption func(*fixtureConfig)

func withWorkers(n int) fixtureOption {
	return func(c *fixtureConfig) { c.cfg.Workers = n }
}

func withRetry(rc retry.Config) fixtureOption {
	return func(c *fixtureConfig) { c.cfg.Retry = rc }
}

func withEngineOptions(opts ...internal.Option) fixtureOption {
	return func(c *fixtureConfig) { c.opts = append(c.opts, opts...) }
}

func withStore(s store.Store) fixtureOption {
	return func(c *fixtureConfig) { c.store = s }
}

func withMode(m mailer.Mode) fixtureOption {
	return func(c *fixtureConfig) { c.mode = m }
}

func withOpener(fn func(mem *source.Memory) source.Opener) fixtureOption {
	return func(c *fixtureConfig) { c.opener = fn }
}

func defaultRetry() retry.Config {
	return retry.Config{
		MaxAttempts: 5,
		BaseDelay:   time.Millisecond,
		MaxDelay:    10 * time.Millisecond,
		Multiplier:  2,
	}
}

func newFixture(t *testing.T, providers []mailer.Provider, opts ...fixtureOption) *fixture {
	t.Helper()

	mem := store.NewMemory()
	fc := &fixtureConfig{
		cfg: internal.Config{
			Retry:        defaultRetry(),
			Workers:      4,
			PollInterval: 5 * time.Millisecond,
		},
		store: mem,
		mode:  mailer.ModeHybrid,
	}
	for _, opt := range opts {
		opt(fc)
	}

	set, err := mailer.NewSet(fc.mode, providers[0].Name(), providers...)
	require.NoError(t, err)

	sources := source.NewMemory()
	var opener source.Opener = sources
	if fc.opener != nil {
		opener = fc.opener(sources)
	}
	engineOpts := []internal.Option{
		internal.WithStore(fc.store),
		internal.WithTemplates(mem),
		internal.WithSources(opener),
		internal.WithProviders(set),
	}
	e, err := internal.New(fc.cfg, append(engineOpts, fc.opts...)...)
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.Close(ctx)
	})
	return &fixture{engine: e, store: mem, sources: sources}
}

func (f *fixture) putTemplate(t *testing.T, id, content string) {
	t.Helper()
	_, err := f.engine.PutTemplate(context.Background(), id, []byte(content))
	require.NoError(t, err)
}

// createCampaign stores n recipients and a greeting template and creates a Draft campaign.
func (f *fixture) createCampaign(t *testing.T, n int) *campaign.Campaign {
	t.Helper()
	f.putTemplate(t, "welcome", "---\nsubject: Hello {{ name }}\n---\nHi {{ name }}, welcome aboard.")

	records := make([]source.Record, n)
	for i := range n {
		records[i] = source.Record{
			Name:  fmt.Sprintf("User %d", i),
			Email: fmt.Sprintf("user%d@example.com", i),
		}
	}
	ref := f.sources.Put(uuid.NewString(), records)

	c, err := f.engine.Create(context.Background(), internal.CreateRequest{
		Name:       "welcome",
		TemplateID: "welcome",
		SourceRef:  ref,
	})
	require.NoError(t, err)
	return c
}

func (f *fixture) waitStatus(t *testing.T, id uuid.UUID, want campaign.Status) *campaign.Campaign {
	t.Helper()
	require.Eventually(t, func() bool {
		c, err := f.engine.Get(context.Background(), id)
		return err == nil && c.Status == want
	}, 5*time.Second, 5*time.Millisecond, "campaign never reached %s", want)

	c, err := f.engine.Get(context.Background(), id)
	require.NoError(t, err)
	return c
}

func (f *fixture) attempts(t *testing.T, id uuid.UUID) []campaign.Attempt {
	t.Helper()
	page, err := f.engine.Attempts(context.Background(), store.AttemptQuery{CampaignID: id, Limit: store.MaxAttemptLimit})
	require.NoError(t, err)
	return page.Attempts
}
