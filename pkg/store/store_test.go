package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailcast/pkg/campaign"
	"github.com/dmitrymomot/mailcast/pkg/store"
	"github.com/dmitrymomot/mailcast/pkg/template"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newCampaign(t *testing.T, s store.Store, n int) (*campaign.Campaign, []*campaign.Recipient) {
	t.Helper()
	ctx := context.Background()

	c := campaign.New("spring", "welcome", "mem://list", campaign.Options{Providers: []string{"resend"}}, epoch)
	require.NoError(t, s.CreateCampaign(ctx, c))

	recipients := make([]*campaign.Recipient, n)
	for i := range recipients {
		recipients[i] = &campaign.Recipient{
			ID:         uuid.New(),
			CampaignID: c.ID,
			Seq:        i,
			Email:      "user" + string(rune('a'+i)) + "@example.com",
			Status:     campaign.RecipientPending,
			Variables:  campaign.Variables{{Name: "company", Value: "Acme"}},
		}
	}
	c.Add(campaign.RecipientPending, n)
	c.Ingested = n
	require.NoError(t, s.AddRecipients(ctx, c, recipients))
	return c, recipients
}

// testStore exercises the Store contract against any implementation.
func testStore(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("campaign round trip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		c, _ := newCampaign(t, s, 3)

		got, err := s.GetCampaign(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, c.Name, got.Name)
		assert.Equal(t, campaign.Counters{Total: 3, Pending: 3}, got.Counters)
		assert.Equal(t, 3, got.Ingested)
		assert.Equal(t, []string{"resend"}, got.Options.Providers)
		assert.True(t, got.StartedAt.IsZero())

		require.ErrorIs(t, s.CreateCampaign(ctx, c), store.ErrDuplicate)

		_, err = s.GetCampaign(ctx, uuid.New())
		require.ErrorIs(t, err, campaign.ErrNotFound)
	})

	t.Run("state and listing", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		c, _ := newCampaign(t, s, 1)

		require.NoError(t, c.SetStatus(campaign.StatusRunning, epoch.Add(time.Minute)))
		require.NoError(t, s.SaveCampaignState(ctx, c))

		running, err := s.ListCampaigns(ctx, campaign.StatusRunning, campaign.StatusPaused)
		require.NoError(t, err)
		require.Len(t, running, 1)
		assert.Equal(t, c.ID, running[0].ID)
		assert.True(t, running[0].StartedAt.Equal(epoch.Add(time.Minute)))

		drafts, err := s.ListCampaigns(ctx, campaign.StatusDraft)
		require.NoError(t, err)
		assert.Empty(t, drafts)

		missing := campaign.New("x", "t", "mem://x", campaign.Options{}, epoch)
		require.ErrorIs(t, s.SaveCampaignState(ctx, missing), campaign.ErrNotFound)
	})

	t.Run("recipients are idempotent by seq", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		c, recipients := newCampaign(t, s, 3)

		dup := recipients[0].Clone()
		dup.ID = uuid.New()
		require.NoError(t, s.AddRecipients(ctx, c, []*campaign.Recipient{dup}))

		all, err := s.ListRecipients(ctx, c.ID)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, recipients[0].ID, all[0].ID)
		v, ok := all[2].Variables.Get("company")
		assert.True(t, ok)
		assert.Equal(t, "Acme", v)
	})

	t.Run("record attempt", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		c, recipients := newCampaign(t, s, 2)
		r := recipients[1]
		at := epoch.Add(2 * time.Minute)

		r.Status = campaign.RecipientSent
		r.Attempts = 1
		r.LastAttemptAt = at
		c.Apply(campaign.RecipientSending, campaign.RecipientSent)
		a := campaign.Attempt{
			ID: uuid.New(), CampaignID: c.ID, RecipientID: r.ID, Number: 1,
			Provider: "resend", MessageID: "msg-1", Outcome: campaign.Success(), At: at,
		}
		require.NoError(t, s.RecordAttempt(ctx, a, r, c))
		require.ErrorIs(t, s.RecordAttempt(ctx, a, r, c), store.ErrDuplicate)

		got, err := s.GetCampaign(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, campaign.Counters{Total: 2, Sent: 1, Pending: 1}, got.Counters)

		sent, err := s.ListRecipients(ctx, c.ID, campaign.RecipientSent)
		require.NoError(t, err)
		require.Len(t, sent, 1)
		assert.True(t, sent[0].LastAttemptAt.Equal(at))

		page, err := s.ListAttempts(ctx, store.AttemptQuery{CampaignID: c.ID})
		require.NoError(t, err)
		require.Equal(t, 1, page.Total)
		assert.Equal(t, "msg-1", page.Attempts[0].MessageID)
		assert.Equal(t, campaign.OutcomeSuccess, page.Attempts[0].Outcome.Kind)
	})

	t.Run("attempt pagination and filter", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		c, recipients := newCampaign(t, s, 2)

		for i := 1; i <= 3; i++ {
			r := recipients[0]
			r.Attempts = i
			r.Status = campaign.RecipientRetrying
			a := campaign.Attempt{
				ID: uuid.New(), CampaignID: c.ID, RecipientID: r.ID, Number: i,
				Provider: "resend", Outcome: campaign.Transient("429"), At: epoch.Add(time.Duration(i) * time.Second),
			}
			require.NoError(t, s.RecordAttempt(ctx, a, r, c))
		}
		other := campaign.Attempt{
			ID: uuid.New(), CampaignID: c.ID, RecipientID: recipients[1].ID, Number: 1,
			Outcome: campaign.Permanent("rejected"), At: epoch.Add(10 * time.Second),
		}
		require.NoError(t, s.RecordAttempt(ctx, other, recipients[1], c))

		page, err := s.ListAttempts(ctx, store.AttemptQuery{CampaignID: c.ID, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, 4, page.Total)
		require.Len(t, page.Attempts, 2)
		assert.Equal(t, recipients[1].ID, page.Attempts[0].RecipientID)
		assert.Equal(t, 3, page.Attempts[1].Number)

		page, err = s.ListAttempts(ctx, store.AttemptQuery{CampaignID: c.ID, RecipientID: recipients[0].ID, Offset: 2})
		require.NoError(t, err)
		assert.Equal(t, 3, page.Total)
		require.Len(t, page.Attempts, 1)
		assert.Equal(t, 1, page.Attempts[0].Number)

		page, err = s.ListAttempts(ctx, store.AttemptQuery{CampaignID: c.ID, Offset: 10})
		require.NoError(t, err)
		assert.Equal(t, 4, page.Total)
		assert.Empty(t, page.Attempts)

		_, err = s.ListAttempts(ctx, store.AttemptQuery{})
		require.ErrorIs(t, err, store.ErrInvalidQuery)
	})
}

func testTemplateStore(t *testing.T, s store.TemplateStore) {
	ctx := context.Background()

	_, err := s.GetTemplate(ctx, "missing")
	require.ErrorIs(t, err, template.ErrNotFound)

	tpl := template.Template{ID: "welcome", Subject: "Hi {{name}}", Body: "**Hello** {{company}}", Format: template.FormatMarkdown}
	require.NoError(t, s.PutTemplate(ctx, tpl))
	tpl.Subject = "Hello {{name}}"
	require.NoError(t, s.PutTemplate(ctx, tpl))

	got, err := s.GetTemplate(ctx, "welcome")
	require.NoError(t, err)
	assert.Equal(t, tpl, got)

	require.ErrorIs(t, s.PutTemplate(ctx, template.Template{ID: "bad", Body: "x", Format: "docx"}), template.ErrUnknownFormat)
}

func TestMemory(t *testing.T) {
	t.Parallel()
	testStore(t, func(*testing.T) store.Store { return store.NewMemory() })
}

func TestMemory_Templates(t *testing.T) {
	t.Parallel()
	testTemplateStore(t, store.NewMemory())
}

func TestMemory_ReturnsCopies(t *testing.T) {
	t.Parallel()

	s := store.NewMemory()
	c, recipients := newCampaign(t, s, 1)
	ctx := context.Background()

	recipients[0].Variables[0].Value = "Mutated"
	c.Name = "mutated"

	got, err := s.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "spring", got.Name)

	all, err := s.ListRecipients(ctx, c.ID)
	require.NoError(t, err)
	v, _ := all[0].Variables.Get("company")
	assert.Equal(t, "Acme", v)
}

func TestMigrations(t *testing.T) {
	t.Parallel()

	entries, err := fsReadDir(store.Migrations())
	require.NoError(t, err)
	require.Contains(t, entries, "00001_init.sql")
}
