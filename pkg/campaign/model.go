package campaign

import (
	"time"

	"github.com/google/uuid"
)

// Counters are the aggregate delivery numbers of a campaign.
type Counters struct {
	Total   int `json:"total"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Pending int `json:"pending"`
}

// Consistent reports whether Sent + Failed + Pending == Total.
func (c Counters) Consistent() bool {
	return c.Sent+c.Failed+c.Pending == c.Total && c.Sent >= 0 && c.Failed >= 0 && c.Pending >= 0
}

// Add registers n new recipients in the given status.
func (c *Counters) Add(status RecipientStatus, n int) {
	c.Total += n
	switch status {
	case RecipientSent:
		c.Sent += n
	case RecipientFailed:
		c.Failed += n
	default:
		c.Pending += n
	}
}

// Apply moves one recipient from one status to another.
// Only transitions into Sent or Failed change the counters.
func (c *Counters) Apply(from, to RecipientStatus) {
	if from == to {
		return
	}
	switch to {
	case RecipientSent:
		c.Sent++
		c.Pending--
	case RecipientFailed:
		c.Failed++
		c.Pending--
	}
}

// Options are the per-campaign dispatch options chosen at creation.
type Options struct {
	// Shuffle randomizes send order once at ingestion for provider diversity.
	Shuffle bool `json:"shuffle,omitempty"`
	// Providers restricts the campaign to a subset of configured providers, in preference order.
	Providers []string `json:"providers,omitempty"`
}

// Campaign is one bulk-send job targeting a recipient list with one template.
type Campaign struct {
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	StartedAt     time.Time `json:"started_at,omitzero"`
	FinishedAt    time.Time `json:"finished_at,omitzero"`
	Name          string    `json:"name"`
	TemplateID    string    `json:"template_id"`
	SourceRef     string    `json:"source_ref"`
	Status        Status    `json:"status"`
	FailureReason string    `json:"failure_reason,omitempty"`
	Options       Options   `json:"options"`
	Counters
	// Ingested is the source offset up to which recipients have been materialized.
	Ingested int       `json:"ingested"`
	ID       uuid.UUID `json:"id"`
}

// New creates a Draft campaign.
func New(name, templateID, sourceRef string, opts Options, now time.Time) *Campaign {
	return &Campaign{
		ID:         uuid.New(),
		Name:       name,
		TemplateID: templateID,
		SourceRef:  sourceRef,
		Status:     StatusDraft,
		Options:    opts,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// SetStatus applies a validated status transition.
func (c *Campaign) SetStatus(next Status, now time.Time) error {
	status, err := c.Status.Transition(next)
	if err != nil {
		return err
	}
	c.Status = status
	c.UpdatedAt = now
	if status == StatusRunning && c.StartedAt.IsZero() {
		c.StartedAt = now
	}
	if status.IsTerminal() {
		c.FinishedAt = now
	}
	return nil
}

// Clone returns a copy safe to hand outside the owning goroutine.
func (c *Campaign) Clone() *Campaign {
	cp := *c
	cp.Options.Providers = append([]string(nil), c.Options.Providers...)
	return &cp
}

// Recipient is one addressee and their template variables within a campaign.
type Recipient struct {
	LastAttemptAt time.Time       `json:"last_attempt_at,omitzero"`
	NextAttemptAt time.Time       `json:"next_attempt_at,omitzero"`
	Name          string          `json:"name"`
	Email         string          `json:"email"`
	Status        RecipientStatus `json:"status"`
	LastError     string          `json:"last_error,omitempty"`
	// Provider is the provider the next attempt should prefer, set by the retry policy.
	Provider  string    `json:"provider,omitempty"`
	Variables Variables `json:"variables"`
	// Seq is the position in send order, fixed at ingestion.
	Seq        int       `json:"seq"`
	Attempts   int       `json:"attempts"`
	ID         uuid.UUID `json:"id"`
	CampaignID uuid.UUID `json:"campaign_id"`
}

// Clone returns a deep copy of the recipient.
func (r *Recipient) Clone() *Recipient {
	cp := *r
	cp.Variables = r.Variables.Clone()
	return &cp
}

// OutcomeKind classifies a delivery attempt result.
type OutcomeKind string

const (
	OutcomeSuccess   OutcomeKind = "success"
	OutcomeTransient OutcomeKind = "transient_failure"
	OutcomePermanent OutcomeKind = "permanent_failure"
)

// Outcome is the result of one send.
type Outcome struct {
	Kind   OutcomeKind `json:"kind"`
	Reason string      `json:"reason,omitempty"`
}

func Success() Outcome { return Outcome{Kind: OutcomeSuccess} }

func Transient(reason string) Outcome { return Outcome{Kind: OutcomeTransient, Reason: reason} }

func Permanent(reason string) Outcome { return Outcome{Kind: OutcomePermanent, Reason: reason} }

func (o Outcome) IsSuccess() bool { return o.Kind == OutcomeSuccess }

// Attempt is an immutable record of a single send try.
type Attempt struct {
	At          time.Time `json:"at"`
	Provider    string    `json:"provider"`
	MessageID   string    `json:"message_id,omitempty"`
	Outcome     Outcome   `json:"outcome"`
	Number      int       `json:"number"`
	ID          uuid.UUID `json:"id"`
	CampaignID  uuid.UUID `json:"campaign_id"`
	RecipientID uuid.UUID `json:"recipient_id"`
}

// Event is one recipient status transition published to the progress sink.
type Event struct {
	At            time.Time       `json:"at"`
	NextAttemptAt time.Time       `json:"next_attempt_at,omitzero"`
	From          RecipientStatus `json:"from"`
	To            RecipientStatus `json:"to"`
	Provider      string          `json:"provider,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	Attempt       int             `json:"attempt"`
	CampaignID    uuid.UUID       `json:"campaign_id"`
	RecipientID   uuid.UUID       `json:"recipient_id"`
}
