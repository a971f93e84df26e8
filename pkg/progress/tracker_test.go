package progress_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailcast/pkg/campaign"
	"github.com/dmitrymomot/mailcast/pkg/progress"
)

var t0 = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func seeded(t *testing.T, tr *progress.Tracker, n int) (*campaign.Campaign, []*campaign.Recipient) {
	t.Helper()
	c := campaign.New("c", "tpl", "src", campaign.Options{}, t0)
	c.Status = campaign.StatusRunning
	c.Add(campaign.RecipientPending, n)
	recipients := make([]*campaign.Recipient, n)
	for i := range recipients {
		recipients[i] = &campaign.Recipient{ID: uuid.New(), CampaignID: c.ID, Seq: i, Status: campaign.RecipientPending}
	}
	tr.Seed(c, recipients)
	return c, recipients
}

func TestTracker_Snapshot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tr := progress.NewTracker()
	c, rs := seeded(t, tr, 3)

	publish := func(r *campaign.Recipient, from, to campaign.RecipientStatus, at time.Time, reason string) {
		tr.Publish(ctx, campaign.Event{CampaignID: c.ID, RecipientID: r.ID, From: from, To: to, At: at, Reason: reason, Attempt: 1, NextAttemptAt: at.Add(time.Second)})
	}
	publish(rs[0], campaign.RecipientPending, campaign.RecipientSending, t0, "")
	publish(rs[0], campaign.RecipientSending, campaign.RecipientSent, t0.Add(time.Second), "")
	publish(rs[1], campaign.RecipientPending, campaign.RecipientSending, t0.Add(2*time.Second), "")
	publish(rs[1], campaign.RecipientSending, campaign.RecipientRetrying, t0.Add(3*time.Second), "503")
	publish(rs[2], campaign.RecipientPending, campaign.RecipientSending, t0.Add(4*time.Second), "")
	publish(rs[2], campaign.RecipientSending, campaign.RecipientFailed, t0.Add(5*time.Second), "bounce")

	c.Counters = campaign.Counters{Total: 3, Sent: 1, Failed: 1, Pending: 1}
	tr.Update(c)

	snap, ok := tr.Snapshot(c.ID)
	require.True(t, ok)
	assert.Equal(t, campaign.StatusRunning, snap.Status)
	assert.Equal(t, c.Counters, snap.Counters)
	assert.Equal(t, 1, snap.Breakdown[campaign.RecipientSent])
	assert.Equal(t, 1, snap.Breakdown[campaign.RecipientRetrying])
	assert.Equal(t, 1, snap.Breakdown[campaign.RecipientFailed])
	assert.Equal(t, 0, snap.Breakdown[campaign.RecipientPending])
	assert.Equal(t, 0, snap.Breakdown[campaign.RecipientSending])

	require.Len(t, snap.Retrying, 1)
	assert.Equal(t, rs[1].ID, snap.Retrying[0].RecipientID)
	assert.Equal(t, "503", snap.Retrying[0].LastError)
	assert.Equal(t, t0.Add(4*time.Second), snap.Retrying[0].NextAttemptAt)

	require.Len(t, snap.Failed, 1)
	assert.Equal(t, "bounce", snap.Failed[0].Reason)

	assert.Len(t, snap.Recent, 6)
	assert.InDelta(t, 66.67, snap.Percentage, 0.01)
	assert.InDelta(t, 33.33, snap.DeliveryRate, 0.01)

	_, ok = tr.Snapshot(uuid.New())
	assert.False(t, ok)
}

func TestTracker_RecentEventsWindow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tr := progress.NewTracker(progress.WithRecentEvents(3))
	c, rs := seeded(t, tr, 1)

	for i := range 5 {
		tr.Publish(ctx, campaign.Event{CampaignID: c.ID, RecipientID: rs[0].ID, To: campaign.RecipientSending, Attempt: i + 1, At: t0.Add(time.Duration(i) * time.Second)})
	}

	snap, ok := tr.Snapshot(c.ID)
	require.True(t, ok)
	require.Len(t, snap.Recent, 3)
	for i, ev := range snap.Recent {
		assert.Equal(t, i+3, ev.Attempt, "events stay in publish order")
	}
}

func TestTracker_ConcurrentReadsDuringPublish(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tr := progress.NewTracker()
	c, rs := seeded(t, tr, 1)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range 500 {
			tr.Publish(ctx, campaign.Event{CampaignID: c.ID, RecipientID: rs[0].ID, To: campaign.RecipientSending, Attempt: i})
		}
	}()
	go func() {
		defer wg.Done()
		for range 500 {
			_, ok := tr.Snapshot(c.ID)
			assert.True(t, ok)
		}
	}()
	wg.Wait()
}

type recorder struct {
	events []campaign.Event
	block  chan struct{}
	mu     sync.Mutex
}

func (r *recorder) OnEvent(_ context.Context, ev campaign.Event) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return errors.New("downstream unavailable")
}

func TestForwarder_DeliversInOrder(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	fwd := progress.NewForwarder(rec)
	tr := progress.NewTracker(progress.WithForwarder(fwd))
	c, rs := seeded(t, tr, 1)

	for i := range 10 {
		tr.Publish(context.Background(), campaign.Event{CampaignID: c.ID, RecipientID: rs[0].ID, Attempt: i})
	}
	require.NoError(t, fwd.Close(context.Background()))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.events, 10)
	for i, ev := range rec.events {
		assert.Equal(t, i, ev.Attempt)
	}
}

func TestForwarder_NeverBlocks(t *testing.T) {
	t.Parallel()

	rec := &recorder{block: make(chan struct{})}
	fwd := progress.NewForwarder(rec, progress.WithBuffer(2))

	done := make(chan struct{})
	go func() {
		for i := range 20 {
			fwd.Publish(context.Background(), campaign.Event{Attempt: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a stalled consumer")
	}
	assert.GreaterOrEqual(t, fwd.Dropped(), int64(17))

	close(rec.block)
	require.NoError(t, fwd.Close(context.Background()))

	// publishing after close is a no-op
	fwd.Publish(context.Background(), campaign.Event{})
}
