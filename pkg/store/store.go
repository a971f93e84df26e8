package store

import (
	"context"
	"embed"
	"io/fs"

	"github.com/google/uuid"

	"github.com/dmitrymomot/mailcast/pkg/campaign"
	"github.com/dmitrymomot/mailcast/pkg/template"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrations returns the goose migration files for the Postgres schema.
func Migrations() fs.FS {
	sub, _ := fs.Sub(migrations, "migrations")
	return sub
}

// Store is the durable checkpoint of campaign progress.
type Store interface {
	// CreateCampaign inserts a new campaign. It fails with ErrDuplicate if the id exists.
	CreateCampaign(ctx context.Context, c *campaign.Campaign) error
	GetCampaign(ctx context.Context, id uuid.UUID) (*campaign.Campaign, error)
	// ListCampaigns returns campaigns in any of the given statuses, oldest first.
	// With no statuses it returns all campaigns.
	ListCampaigns(ctx context.Context, statuses ...campaign.Status) ([]*campaign.Campaign, error)
	// SaveCampaignState overwrites the campaign's status, counters and ingestion offset.
	SaveCampaignState(ctx context.Context, c *campaign.Campaign) error

	// AddRecipients inserts recipients and saves the campaign state together.
	// Recipients whose (campaign, seq) already exist are skipped.
	AddRecipients(ctx context.Context, c *campaign.Campaign, recipients []*campaign.Recipient) error
	SaveRecipientStatus(ctx context.Context, r *campaign.Recipient) error
	// ListRecipients returns recipients ordered by Seq, optionally filtered by status.
	ListRecipients(ctx context.Context, campaignID uuid.UUID, statuses ...campaign.RecipientStatus) ([]*campaign.Recipient, error)

	// RecordAttempt appends the attempt and saves the recipient and campaign in one unit.
	RecordAttempt(ctx context.Context, a campaign.Attempt, r *campaign.Recipient, c *campaign.Campaign) error
	ListAttempts(ctx context.Context, q AttemptQuery) (AttemptPage, error)
}

// TemplateStore holds message templates by id.
type TemplateStore interface {
	GetTemplate(ctx context.Context, id string) (template.Template, error)
	PutTemplate(ctx context.Context, t template.Template) error
}

// DefaultAttemptLimit is the page size used when AttemptQuery.Limit is zero.
const DefaultAttemptLimit = 50

// MaxAttemptLimit caps AttemptQuery.Limit.
const MaxAttemptLimit = 500

// AttemptQuery selects a page of a campaign's attempt log, newest first.
type AttemptQuery struct {
	CampaignID  uuid.UUID
	RecipientID uuid.UUID
	Limit       int
	Offset      int
}

func (q AttemptQuery) normalize() (AttemptQuery, error) {
	if q.CampaignID == uuid.Nil || q.Limit < 0 || q.Offset < 0 {
		return q, ErrInvalidQuery
	}
	if q.Limit == 0 {
		q.Limit = DefaultAttemptLimit
	}
	q.Limit = min(q.Limit, MaxAttemptLimit)
	return q, nil
}

// AttemptPage is one page of attempts plus the total matching count.
type AttemptPage struct {
	Attempts []campaign.Attempt `json:"attempts"`
	Total    int                `json:"total"`
	Limit    int                `json:"limit"`
	Offset   int                `json:"offset"`
}
