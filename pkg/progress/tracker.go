package progress

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/mailcast/pkg/campaign"
)

const defaultRecentEvents = 100

// Publisher accepts recipient status transitions.
type Publisher interface {
	Publish(ctx context.Context, ev campaign.Event)
}

// RetryingRecipient is a recipient waiting for its next attempt.
type RetryingRecipient struct {
	NextAttemptAt time.Time `json:"next_attempt_at"`
	LastError     string    `json:"last_error,omitempty"`
	Attempts      int       `json:"attempts"`
	RecipientID   uuid.UUID `json:"recipient_id"`
}

// FailedRecipient is a recipient that permanently failed.
type FailedRecipient struct {
	Reason      string    `json:"reason"`
	Attempts    int       `json:"attempts"`
	RecipientID uuid.UUID `json:"recipient_id"`
}

// Snapshot is a point-in-time view of a campaign's progress.
type Snapshot struct {
	UpdatedAt  time.Time                        `json:"updated_at"`
	Breakdown  map[campaign.RecipientStatus]int `json:"status_breakdown"`
	Status     campaign.Status                  `json:"status"`
	Reason     string                           `json:"failure_reason,omitempty"`
	Retrying   []RetryingRecipient              `json:"retrying"`
	Failed     []FailedRecipient                `json:"failed"`
	Recent     []campaign.Event                 `json:"recent_events"`
	campaign.Counters
	Percentage   float64   `json:"percentage"`
	DeliveryRate float64   `json:"delivery_rate"`
	CampaignID   uuid.UUID `json:"campaign_id"`
}

type state struct {
	updatedAt time.Time
	breakdown map[campaign.RecipientStatus]int
	retrying  map[uuid.UUID]RetryingRecipient
	failed    map[uuid.UUID]FailedRecipient
	status    campaign.Status
	reason    string
	recent    []campaign.Event
	counters  campaign.Counters
	next      int
	full      bool
}

// Tracker is the in-memory progress sink.
type Tracker struct {
	forward   Publisher
	campaigns map[uuid.UUID]*state
	recent    int
	mu        sync.RWMutex
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithRecentEvents sets how many recent events are kept per campaign.
func WithRecentEvents(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.recent = n
		}
	}
}

// WithForwarder passes every published event on, typically to a Forwarder.
func WithForwarder(p Publisher) Option {
	return func(t *Tracker) {
		t.forward = p
	}
}

// NewTracker creates an empty tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{campaigns: make(map[uuid.UUID]*state), recent: defaultRecentEvents}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Seed resets the tracked state of a campaign from its persisted recipients.
// Called when a dispatcher takes ownership of a campaign.
func (t *Tracker) Seed(c *campaign.Campaign, recipients []*campaign.Recipient) {
	st := &state{
		breakdown: make(map[campaign.RecipientStatus]int),
		retrying:  make(map[uuid.UUID]RetryingRecipient),
		failed:    make(map[uuid.UUID]FailedRecipient),
		recent:    make([]campaign.Event, t.recent),
		counters:  c.Counters,
		status:    c.Status,
		reason:    c.FailureReason,
		updatedAt: c.UpdatedAt,
	}
	for _, r := range recipients {
		st.breakdown[r.Status]++
		switch r.Status {
		case campaign.RecipientRetrying:
			st.retrying[r.ID] = RetryingRecipient{RecipientID: r.ID, NextAttemptAt: r.NextAttemptAt, LastError: r.LastError, Attempts: r.Attempts}
		case campaign.RecipientFailed:
			st.failed[r.ID] = FailedRecipient{RecipientID: r.ID, Reason: r.LastError, Attempts: r.Attempts}
		}
	}

	t.mu.Lock()
	t.campaigns[c.ID] = st
	t.mu.Unlock()
}

// Update refreshes the campaign-level status and counters.
func (t *Tracker) Update(c *campaign.Campaign) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.stateLocked(c.ID)
	st.counters = c.Counters
	st.status = c.Status
	st.reason = c.FailureReason
	st.updatedAt = c.UpdatedAt
}

// Publish implements Publisher.
func (t *Tracker) Publish(ctx context.Context, ev campaign.Event) {
	t.mu.Lock()
	st := t.stateLocked(ev.CampaignID)

	if ev.From != "" && st.breakdown[ev.From] > 0 {
		st.breakdown[ev.From]--
	}
	st.breakdown[ev.To]++

	delete(st.retrying, ev.RecipientID)
	switch ev.To {
	case campaign.RecipientRetrying:
		st.retrying[ev.RecipientID] = RetryingRecipient{
			RecipientID:   ev.RecipientID,
			NextAttemptAt: ev.NextAttemptAt,
			LastError:     ev.Reason,
			Attempts:      ev.Attempt,
		}
	case campaign.RecipientFailed:
		st.failed[ev.RecipientID] = FailedRecipient{RecipientID: ev.RecipientID, Reason: ev.Reason, Attempts: ev.Attempt}
	}

	st.recent[st.next] = ev
	st.next = (st.next + 1) % len(st.recent)
	if st.next == 0 {
		st.full = true
	}
	if ev.At.After(st.updatedAt) {
		st.updatedAt = ev.At
	}
	t.mu.Unlock()

	if t.forward != nil {
		t.forward.Publish(ctx, ev)
	}
}

// Snapshot returns the current progress of a campaign.
func (t *Tracker) Snapshot(id uuid.UUID) (Snapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	st, ok := t.campaigns[id]
	if !ok {
		return Snapshot{}, false
	}

	snap := Snapshot{
		CampaignID: id,
		Status:     st.status,
		Reason:     st.reason,
		Counters:   st.counters,
		UpdatedAt:  st.updatedAt,
		Breakdown:  make(map[campaign.RecipientStatus]int, len(campaign.RecipientStatuses)),
		Retrying:   make([]RetryingRecipient, 0, len(st.retrying)),
		Failed:     make([]FailedRecipient, 0, len(st.failed)),
	}
	for _, s := range campaign.RecipientStatuses {
		snap.Breakdown[s] = st.breakdown[s]
	}
	for _, r := range st.retrying {
		snap.Retrying = append(snap.Retrying, r)
	}
	for _, f := range st.failed {
		snap.Failed = append(snap.Failed, f)
	}
	if st.full {
		snap.Recent = append(slices.Clone(st.recent[st.next:]), st.recent[:st.next]...)
	} else {
		snap.Recent = slices.Clone(st.recent[:st.next])
	}

	slices.SortFunc(snap.Retrying, func(a, b RetryingRecipient) int { return a.NextAttemptAt.Compare(b.NextAttemptAt) })
	slices.SortFunc(snap.Failed, func(a, b FailedRecipient) int { return compareUUID(a.RecipientID, b.RecipientID) })

	if c := st.counters; c.Total > 0 {
		snap.Percentage = float64(c.Sent+c.Failed) / float64(c.Total) * 100
		snap.DeliveryRate = float64(c.Sent) / float64(c.Total) * 100
	}
	return snap, true
}

// Forget drops a campaign's tracked state.
func (t *Tracker) Forget(id uuid.UUID) {
	t.mu.Lock()
	delete(t.campaigns, id)
	t.mu.Unlock()
}

func (t *Tracker) stateLocked(id uuid.UUID) *state {
	st, ok := t.campaigns[id]
	if !ok {
		st = &state{
			breakdown: make(map[campaign.RecipientStatus]int),
			retrying:  make(map[uuid.UUID]RetryingRecipient),
			failed:    make(map[uuid.UUID]FailedRecipient),
			recent:    make([]campaign.Event, t.recent),
		}
		t.campaigns[id] = st
	}
	return st
}

func compareUUID(a, b uuid.UUID) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
