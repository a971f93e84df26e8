package store

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrymomot/mailcast/pkg/campaign"
	"github.com/dmitrymomot/mailcast/pkg/template"
)

type recipientKey struct {
	campaign uuid.UUID
	seq      int
}

// Memory is an in-process Store and TemplateStore. Values are copied on the way in and out.
type Memory struct {
	campaigns  map[uuid.UUID]*campaign.Campaign
	recipients map[uuid.UUID]*campaign.Recipient
	bySeq      map[recipientKey]uuid.UUID
	attempts   map[uuid.UUID][]campaign.Attempt
	templates  map[string]template.Template
	mu         sync.RWMutex
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		campaigns:  make(map[uuid.UUID]*campaign.Campaign),
		recipients: make(map[uuid.UUID]*campaign.Recipient),
		bySeq:      make(map[recipientKey]uuid.UUID),
		attempts:   make(map[uuid.UUID][]campaign.Attempt),
		templates:  make(map[string]template.Template),
	}
}

func (m *Memory) CreateCampaign(_ context.Context, c *campaign.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.campaigns[c.ID]; ok {
		return ErrDuplicate
	}
	m.campaigns[c.ID] = c.Clone()
	return nil
}

func (m *Memory) GetCampaign(_ context.Context, id uuid.UUID) (*campaign.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, campaign.ErrNotFound
	}
	return c.Clone(), nil
}

func (m *Memory) ListCampaigns(_ context.Context, statuses ...campaign.Status) ([]*campaign.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*campaign.Campaign, 0, len(m.campaigns))
	for _, c := range m.campaigns {
		if len(statuses) == 0 || slices.Contains(statuses, c.Status) {
			out = append(out, c.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *campaign.Campaign) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), slices.Compare(a.ID[:], b.ID[:]))
	})
	return out, nil
}

func (m *Memory) SaveCampaignState(_ context.Context, c *campaign.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCampaignLocked(c)
}

func (m *Memory) saveCampaignLocked(c *campaign.Campaign) error {
	if _, ok := m.campaigns[c.ID]; !ok {
		return campaign.ErrNotFound
	}
	m.campaigns[c.ID] = c.Clone()
	return nil
}

func (m *Memory) AddRecipients(_ context.Context, c *campaign.Campaign, recipients []*campaign.Recipient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.campaigns[c.ID]; !ok {
		return campaign.ErrNotFound
	}
	for _, r := range recipients {
		key := recipientKey{campaign: r.CampaignID, seq: r.Seq}
		if _, ok := m.bySeq[key]; ok {
			continue
		}
		m.bySeq[key] = r.ID
		m.recipients[r.ID] = r.Clone()
	}
	return m.saveCampaignLocked(c)
}

func (m *Memory) SaveRecipientStatus(_ context.Context, r *campaign.Recipient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveRecipientLocked(r)
}

func (m *Memory) saveRecipientLocked(r *campaign.Recipient) error {
	if _, ok := m.recipients[r.ID]; !ok {
		return campaign.ErrRecipientNotFound
	}
	m.recipients[r.ID] = r.Clone()
	return nil
}

func (m *Memory) ListRecipients(_ context.Context, campaignID uuid.UUID, statuses ...campaign.RecipientStatus) ([]*campaign.Recipient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*campaign.Recipient
	for _, r := range m.recipients {
		if r.CampaignID != campaignID {
			continue
		}
		if len(statuses) == 0 || slices.Contains(statuses, r.Status) {
			out = append(out, r.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *campaign.Recipient) int { return cmp.Compare(a.Seq, b.Seq) })
	return out, nil
}

func (m *Memory) RecordAttempt(_ context.Context, a campaign.Attempt, r *campaign.Recipient, c *campaign.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.campaigns[c.ID]; !ok {
		return campaign.ErrNotFound
	}
	if _, ok := m.recipients[r.ID]; !ok {
		return campaign.ErrRecipientNotFound
	}
	for _, prev := range m.attempts[a.CampaignID] {
		if prev.RecipientID == a.RecipientID && prev.Number == a.Number {
			return ErrDuplicate
		}
	}
	m.attempts[a.CampaignID] = append(m.attempts[a.CampaignID], a)
	m.recipients[r.ID] = r.Clone()
	m.campaigns[c.ID] = c.Clone()
	return nil
}

func (m *Memory) ListAttempts(_ context.Context, q AttemptQuery) (AttemptPage, error) {
	q, err := q.normalize()
	if err != nil {
		return AttemptPage{}, err
	}

	m.mu.RLock()
	all := m.attempts[q.CampaignID]
	matched := make([]campaign.Attempt, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if q.RecipientID == uuid.Nil || all[i].RecipientID == q.RecipientID {
			matched = append(matched, all[i])
		}
	}
	m.mu.RUnlock()

	page := AttemptPage{Total: len(matched), Limit: q.Limit, Offset: q.Offset, Attempts: []campaign.Attempt{}}
	if q.Offset < len(matched) {
		page.Attempts = matched[q.Offset:min(q.Offset+q.Limit, len(matched))]
	}
	return page, nil
}

func (m *Memory) GetTemplate(_ context.Context, id string) (template.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.templates[id]
	if !ok {
		return template.Template{}, template.ErrNotFound
	}
	return t, nil
}

func (m *Memory) PutTemplate(_ context.Context, t template.Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.templates[t.ID] = t
	m.mu.Unlock()
	return nil
}

var (
	_ Store         = (*Memory)(nil)
	_ TemplateStore = (*Memory)(nil)
)
