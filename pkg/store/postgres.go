package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/mailcast/pkg/campaign"
	"github.com/dmitrymomot/mailcast/pkg/db"
	"github.com/dmitrymomot/mailcast/pkg/template"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres is a Store and TemplateStore backed by PostgreSQL.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a store on an open pool. Run db.Migrate with Migrations first.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const campaignColumns = `id, name, template_id, source_ref, status, failure_reason, options,
	total, sent, failed, pending, ingested, created_at, updated_at, started_at, finished_at`

func (p *Postgres) CreateCampaign(ctx context.Context, c *campaign.Campaign) error {
	opts, err := json.Marshal(c.Options)
	if err != nil {
		return fmt.Errorf("store: encode options: %w", err)
	}
	_, err = p.pool.Exec(ctx, `INSERT INTO campaigns (`+campaignColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		c.ID, c.Name, c.TemplateID, c.SourceRef, c.Status, c.FailureReason, opts,
		c.Total, c.Sent, c.Failed, c.Pending, c.Ingested,
		c.CreatedAt, c.UpdatedAt, nullTime(c.StartedAt), nullTime(c.FinishedAt))
	return wrap(err)
}

func (p *Postgres) GetCampaign(ctx context.Context, id uuid.UUID) (*campaign.Campaign, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id)
	c, err := scanCampaign(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, campaign.ErrNotFound
	}
	return c, wrap(err)
}

func (p *Postgres) ListCampaigns(ctx context.Context, statuses ...campaign.Status) ([]*campaign.Campaign, error) {
	filter := make([]string, len(statuses))
	for i, s := range statuses {
		filter[i] = string(s)
	}
	rows, err := p.pool.Query(ctx, `SELECT `+campaignColumns+` FROM campaigns
		WHERE cardinality($1::text[]) = 0 OR status = ANY($1)
		ORDER BY created_at, id`, filter)
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()

	var out []*campaign.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, wrap(err)
		}
		out = append(out, c)
	}
	return out, wrap(rows.Err())
}

func (p *Postgres) SaveCampaignState(ctx context.Context, c *campaign.Campaign) error {
	return saveCampaign(ctx, p.pool, c)
}

func saveCampaign(ctx context.Context, q querier, c *campaign.Campaign) error {
	tag, err := q.Exec(ctx, `UPDATE campaigns SET
		status = $2, failure_reason = $3, total = $4, sent = $5, failed = $6, pending = $7,
		ingested = $8, updated_at = $9, started_at = $10, finished_at = $11
		WHERE id = $1`,
		c.ID, c.Status, c.FailureReason, c.Total, c.Sent, c.Failed, c.Pending,
		c.Ingested, c.UpdatedAt, nullTime(c.StartedAt), nullTime(c.FinishedAt))
	if err != nil {
		return wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

func (p *Postgres) AddRecipients(ctx context.Context, c *campaign.Campaign, recipients []*campaign.Recipient) error {
	return wrap(db.WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, r := range recipients {
			vars, err := json.Marshal(r.Variables)
			if err != nil {
				return fmt.Errorf("store: encode variables: %w", err)
			}
			batch.Queue(`INSERT INTO recipients
				(id, campaign_id, seq, email, name, variables, status, attempts, provider, last_error, last_attempt_at, next_attempt_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
				ON CONFLICT (campaign_id, seq) DO NOTHING`,
				r.ID, r.CampaignID, r.Seq, r.Email, r.Name, vars, r.Status, r.Attempts,
				r.Provider, r.LastError, nullTime(r.LastAttemptAt), nullTime(r.NextAttemptAt))
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
		return saveCampaign(ctx, tx, c)
	}))
}

func (p *Postgres) SaveRecipientStatus(ctx context.Context, r *campaign.Recipient) error {
	return saveRecipient(ctx, p.pool, r)
}

func saveRecipient(ctx context.Context, q querier, r *campaign.Recipient) error {
	tag, err := q.Exec(ctx, `UPDATE recipients SET
		status = $2, attempts = $3, provider = $4, last_error = $5, last_attempt_at = $6, next_attempt_at = $7
		WHERE id = $1`,
		r.ID, r.Status, r.Attempts, r.Provider, r.LastError, nullTime(r.LastAttemptAt), nullTime(r.NextAttemptAt))
	if err != nil {
		return wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return campaign.ErrRecipientNotFound
	}
	return nil
}

func (p *Postgres) ListRecipients(ctx context.Context, campaignID uuid.UUID, statuses ...campaign.RecipientStatus) ([]*campaign.Recipient, error) {
	filter := make([]string, len(statuses))
	for i, s := range statuses {
		filter[i] = string(s)
	}
	rows, err := p.pool.Query(ctx, `SELECT id, campaign_id, seq, email, name, variables, status, attempts,
			provider, last_error, last_attempt_at, next_attempt_at
		FROM recipients
		WHERE campaign_id = $1 AND (cardinality($2::text[]) = 0 OR status = ANY($2))
		ORDER BY seq`, campaignID, filter)
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()

	var out []*campaign.Recipient
	for rows.Next() {
		var (
			r          campaign.Recipient
			vars       []byte
			last, next *time.Time
		)
		if err := rows.Scan(&r.ID, &r.CampaignID, &r.Seq, &r.Email, &r.Name, &vars, &r.Status, &r.Attempts,
			&r.Provider, &r.LastError, &last, &next); err != nil {
			return nil, wrap(err)
		}
		if err := json.Unmarshal(vars, &r.Variables); err != nil {
			return nil, err
		}
		r.LastAttemptAt, r.NextAttemptAt = derefTime(last), derefTime(next)
		out = append(out, &r)
	}
	return out, wrap(rows.Err())
}

func (p *Postgres) RecordAttempt(ctx context.Context, a campaign.Attempt, r *campaign.Recipient, c *campaign.Campaign) error {
	return wrap(db.WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO attempts
			(id, campaign_id, recipient_id, number, provider, message_id, outcome, reason, at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			a.ID, a.CampaignID, a.RecipientID, a.Number, a.Provider, a.MessageID, a.Outcome.Kind, a.Outcome.Reason, a.At)
		if err != nil {
			return err
		}
		if err := saveRecipient(ctx, tx, r); err != nil {
			return err
		}
		return saveCampaign(ctx, tx, c)
	}))
}

func (p *Postgres) ListAttempts(ctx context.Context, q AttemptQuery) (AttemptPage, error) {
	q, err := q.normalize()
	if err != nil {
		return AttemptPage{}, err
	}

	rows, err := p.pool.Query(ctx, `SELECT id, campaign_id, recipient_id, number, provider, message_id, outcome, reason, at,
			count(*) OVER ()
		FROM attempts
		WHERE campaign_id = $1 AND ($2::uuid IS NULL OR recipient_id = $2)
		ORDER BY at DESC, number DESC
		LIMIT $3 OFFSET $4`, q.CampaignID, nullUUID(q.RecipientID), q.Limit, q.Offset)
	if err != nil {
		return AttemptPage{}, wrap(err)
	}
	defer rows.Close()

	page := AttemptPage{Limit: q.Limit, Offset: q.Offset, Attempts: []campaign.Attempt{}}
	for rows.Next() {
		var a campaign.Attempt
		if err := rows.Scan(&a.ID, &a.CampaignID, &a.RecipientID, &a.Number, &a.Provider, &a.MessageID,
			&a.Outcome.Kind, &a.Outcome.Reason, &a.At, &page.Total); err != nil {
			return AttemptPage{}, wrap(err)
		}
		page.Attempts = append(page.Attempts, a)
	}
	if err := rows.Err(); err != nil {
		return AttemptPage{}, wrap(err)
	}
	if len(page.Attempts) == 0 && q.Offset > 0 {
		if err := p.pool.QueryRow(ctx, `SELECT count(*) FROM attempts
			WHERE campaign_id = $1 AND ($2::uuid IS NULL OR recipient_id = $2)`,
			q.CampaignID, nullUUID(q.RecipientID)).Scan(&page.Total); err != nil {
			return AttemptPage{}, wrap(err)
		}
	}
	return page, nil
}

func (p *Postgres) GetTemplate(ctx context.Context, id string) (template.Template, error) {
	var t template.Template
	err := p.pool.QueryRow(ctx, `SELECT id, subject, body, format FROM templates WHERE id = $1`, id).
		Scan(&t.ID, &t.Subject, &t.Body, &t.Format)
	if errors.Is(err, pgx.ErrNoRows) {
		return template.Template{}, template.ErrNotFound
	}
	return t, wrap(err)
}

func (p *Postgres) PutTemplate(ctx context.Context, t template.Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	_, err := p.pool.Exec(ctx, `INSERT INTO templates (id, subject, body, format, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (id) DO UPDATE SET subject = $2, body = $3, format = $4, updated_at = now()`,
		t.ID, t.Subject, t.Body, t.Format)
	return wrap(err)
}

func scanCampaign(row pgx.Row) (*campaign.Campaign, error) {
	var (
		c                 campaign.Campaign
		opts              []byte
		started, finished *time.Time
	)
	if err := row.Scan(&c.ID, &c.Name, &c.TemplateID, &c.SourceRef, &c.Status, &c.FailureReason, &opts,
		&c.Total, &c.Sent, &c.Failed, &c.Pending, &c.Ingested,
		&c.CreatedAt, &c.UpdatedAt, &started, &finished); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(opts, &c.Options); err != nil {
		return nil, fmt.Errorf("store: decode options: %w", err)
	}
	c.StartedAt, c.FinishedAt = derefTime(started), derefTime(finished)
	return &c, nil
}

// wrap tags connection-level failures with ErrUnavailable and unique violations with ErrDuplicate.
func wrap(err error) error {
	if err == nil || errors.Is(err, ErrUnavailable) || errors.Is(err, campaign.ErrNotFound) ||
		errors.Is(err, campaign.ErrRecipientNotFound) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return errors.Join(ErrDuplicate, err)
	}
	if db.IsUnavailable(err) {
		return errors.Join(ErrUnavailable, err)
	}
	return err
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func nullUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

var (
	_ Store         = (*Postgres)(nil)
	_ TemplateStore = (*Postgres)(nil)
)
