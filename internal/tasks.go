package internal

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/dmitrymomot/mailcast/pkg/campaign"
	"github.com/dmitrymomot/mailcast/pkg/job"
)

const (
	TaskStartCampaign    = "start_campaign"
	TaskRecoverCampaigns = "recover_campaigns"
)

// StartCampaignPayload is the job payload of a scheduled start.
type StartCampaignPayload struct {
	CampaignID uuid.UUID `json:"campaign_id"`
}

type startCampaignTask struct {
	engine *Engine
}

func (t *startCampaignTask) Name() string { return TaskStartCampaign }

// Handle starts the campaign. A campaign cancelled or started by hand before the job runs is
// not an error, so the job is not retried.
func (t *startCampaignTask) Handle(ctx context.Context, p StartCampaignPayload) error {
	_, err := t.engine.Start(ctx, p.CampaignID)
	if errors.Is(err, campaign.ErrInvalidTransition) || errors.Is(err, campaign.ErrNotFound) {
		t.engine.logger.WarnContext(ctx, "scheduled start skipped",
			"campaign_id", p.CampaignID.String(),
			"error", err)
		return nil
	}
	return err
}

type recoverCampaignsTask struct {
	engine   *Engine
	schedule string
}

func (t *recoverCampaignsTask) Name() string     { return TaskRecoverCampaigns }
func (t *recoverCampaignsTask) Schedule() string { return t.schedule }

func (t *recoverCampaignsTask) Handle(ctx context.Context) error {
	_, err := t.engine.Recover(ctx)
	return err
}

// Tasks returns the job options registering the engine's background tasks:
// scheduled campaign starts and the periodic crash recovery sweep.
func (e *Engine) Tasks() []job.Option {
	return []job.Option{
		job.WithTask[StartCampaignPayload](&startCampaignTask{engine: e}),
		job.WithScheduledTask(&recoverCampaignsTask{engine: e, schedule: e.cfg.RecoverySchedule}),
	}
}
