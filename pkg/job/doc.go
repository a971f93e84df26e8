// Package job runs durable background tasks on River, backed by the same Postgres pool as
// the campaign store.
//
// The engine uses it for two things: starting a campaign at a future time, and a periodic
// sweep that picks up campaigns left Running by a process that died.
//
// # Task Definition
//
// Tasks are plain types registered by structural typing. A task has a Name and a Handle
// method; the payload type is the first type argument of [WithTask] and is decoded from JSON
// before Handle runs:
//
//	type StartPayload struct {
//	    CampaignID uuid.UUID `json:"campaign_id"`
//	}
//
//	type startCampaign struct{ engine *Engine }
//
//	func (t *startCampaign) Name() string { return "start_campaign" }
//
//	func (t *startCampaign) Handle(ctx context.Context, p StartPayload) error {
//	    _, err := t.engine.Start(ctx, p.CampaignID)
//	    return err
//	}
//
// A Handle error makes River retry the job with its own backoff. Return nil for outcomes
// that retrying cannot change, such as a campaign cancelled before its scheduled start.
//
// # Scheduled Tasks
//
// A periodic task has a Schedule method returning a five-field cron expression and a
// Handle method without a payload:
//
//	type recoverCampaigns struct{ engine *Engine }
//
//	func (t *recoverCampaigns) Name() string     { return "recover_campaigns" }
//	func (t *recoverCampaigns) Schedule() string { return "*/5 * * * *" }
//	func (t *recoverCampaigns) Handle(ctx context.Context) error {
//	    _, err := t.engine.Recover(ctx)
//	    return err
//	}
//
// # Manager
//
// [NewManager] registers every task and builds the River client. An empty or duplicate
// task name fails construction with [ErrInvalidTask] or [ErrDuplicateTask]:
//
//	m, err := job.NewManager(pool,
//	    job.WithTask[StartPayload](&startCampaign{engine}),
//	    job.WithScheduledTask(&recoverCampaigns{engine}),
//	    job.WithMaxWorkers(10),
//	    job.WithLogger(log),
//	)
//	if err := m.Start(ctx); err != nil {
//	    return err
//	}
//	defer m.Stop(context.Background())
//
// All tasks share one River job kind; the task name and JSON payload travel in the job args.
//
// # Enqueueing
//
// [Manager.Enqueue] inserts a job for a registered task. Jobs may be enqueued before Start:
//
//	err := m.Enqueue(ctx, "start_campaign", StartPayload{CampaignID: id},
//	    job.ScheduledAt(at),
//	    job.UniqueFor(24*time.Hour),
//	    job.UniqueKey(id.String()),
//	)
//
// [UniqueFor] with [UniqueKey] turns a repeated schedule request into a no-op.
// [Manager.EnqueueTx] inserts inside a pgx transaction, so the job only becomes visible
// when the surrounding write commits. The engine depends on the narrow [Enqueuer] interface
// rather than on *Manager.
//
// # Health Checks
//
// [Manager.Healthcheck] fails with [ErrHealthcheckFailed] when the manager is not running or
// its database is unreachable.
//
// # Errors
//
//   - [ErrUnknownTask]: Enqueue named a task that was never registered
//   - [ErrInvalidTask], [ErrDuplicateTask]: task registration failed
//   - [ErrInvalidPayload]: the payload could not be encoded or decoded
//   - [ErrAlreadyStarted], [ErrNotStarted]: Start or Stop called in the wrong state
//   - [ErrPoolRequired]: NewManager was given a nil pool
//
// # Database Schema
//
// River needs its own tables. Create them with the River CLI before starting the manager:
//
//	river migrate-up --database-url "$DATABASE_URL"
package job
