package job

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type startPayload struct {
	CampaignID string `json:"campaign_id"`
}

type startTask struct {
	got startPayload
	err error
}

func (t *startTask) Name() string { return "start_campaign" }

func (t *startTask) Handle(_ context.Context, p startPayload) error {
	t.got = p
	return t.err
}

type sweepTask struct{ runs int }

func (t *sweepTask) Name() string { return "recover_campaigns" }
func (t *sweepTask) Schedule() string { return "*/5 * * * *" }

func (t *sweepTask) Handle(context.Context) error {
	t.runs++
	return nil
}

func TestNewManager_NilPool(t *testing.T) {
	t.Parallel()
	_, err := NewManager(nil)
	require.ErrorIs(t, err, ErrPoolRequired)
}

func TestParseCronSchedule(t *testing.T) {
	t.Parallel()

	for _, expr := range []string{"* * * * *", "*/5 * * * *", "0 0 * * 0", "30 14 * * *"} {
		schedule, err := parseCronSchedule(expr)
		require.NoError(t, err, expr)
		now := time.Now()
		assert.True(t, schedule.Next(now).After(now), expr)
	}

	for _, expr := range []string{"", "* * *", "61 * * * *", "0 0 0 * * *"} {
		_, err := parseCronSchedule(expr)
		require.Error(t, err, expr)
	}

	schedule, err := parseCronSchedule("*/5 * * * *")
	require.NoError(t, err)
	base := time.Date(2026, 3, 1, 9, 2, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 1, 9, 5, 0, 0, time.UTC), schedule.Next(base))
}

func TestOptions_RegisterTasks(t *testing.T) {
	t.Parallel()

	cfg := newConfig()
	WithTask[startPayload](&startTask{})(cfg)
	WithScheduledTask(&sweepTask{})(cfg)
	WithQueue("campaigns", 4)(cfg)
	WithQueue("ignored", 0)(cfg)
	WithMaxWorkers(3)(cfg)

	_, ok := cfg.registry.get("start_campaign")
	assert.True(t, ok)
	require.Len(t, cfg.schedules, 1)
	assert.Equal(t, "*/5 * * * *", cfg.schedules[0].schedule)
	assert.Equal(t, map[string]int{"campaigns": 4}, cfg.queues)
	assert.Equal(t, 3, cfg.maxWorkers)
}

func TestTaskWrapper_Execute(t *testing.T) {
	t.Parallel()

	t.Run("decodes payload", func(t *testing.T) {
		t.Parallel()
		task := &startTask{}
		raw, err := json.Marshal(startPayload{CampaignID: "c-1"})
		require.NoError(t, err)
		require.NoError(t, newTaskWrapper[startPayload](task).Execute(context.Background(), raw))
		assert.Equal(t, "c-1", task.got.CampaignID)
	})

	t.Run("invalid payload", func(t *testing.T) {
		t.Parallel()
		err := newTaskWrapper[startPayload](&startTask{}).Execute(context.Background(), json.RawMessage(`{"campaign_id":`))
		require.ErrorIs(t, err, ErrInvalidPayload)
	})

	t.Run("handler error", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		err := newTaskWrapper[startPayload](&startTask{err: boom}).Execute(context.Background(), nil)
		require.ErrorIs(t, err, boom)
	})

	t.Run("scheduled", func(t *testing.T) {
		t.Parallel()
		task := &sweepTask{}
		require.NoError(t, scheduledExecutor(task.Handle).Execute(context.Background(), nil))
		assert.Equal(t, 1, task.runs)
	})
}

func TestBuildJobArgs(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	args, opts, err := buildJobArgs("start_campaign", startPayload{CampaignID: "c-1"},
		InQueue("campaigns"), ScheduledAt(at), MaxAttempts(3), Tags("campaign:c-1"),
		UniqueFor(24*time.Hour), UniqueKey("c-1"))
	require.NoError(t, err)

	assert.Equal(t, "mailcast:task", args.Kind())
	assert.Equal(t, "start_campaign", args.TaskName)
	assert.Equal(t, "c-1", args.UniqueKey)
	assert.JSONEq(t, `{"campaign_id":"c-1"}`, string(args.Payload))
	assert.Equal(t, "campaigns", opts.Queue)
	assert.Equal(t, at, opts.ScheduledAt)
	assert.Equal(t, 3, opts.MaxAttempts)
	assert.Equal(t, []string{"campaign:c-1"}, opts.Tags)
	assert.True(t, opts.UniqueOpts.ByArgs)
	assert.Equal(t, 24*time.Hour, opts.UniqueOpts.ByPeriod)

	args, opts, err = buildJobArgs("recover_campaigns", nil)
	require.NoError(t, err)
	assert.Empty(t, args.Payload)
	assert.Empty(t, args.UniqueKey)
	assert.True(t, opts.ScheduledAt.IsZero())

	_, _, err = buildJobArgs("bad", func() {})
	require.Error(t, err)
}

func TestManager_HealthcheckNotStarted(t *testing.T) {
	t.Parallel()
	m := &Manager{registry: newTaskRegistry()}
	err := m.Healthcheck(context.Background())
	require.ErrorIs(t, err, ErrHealthcheckFailed)
	require.ErrorIs(t, err, ErrNotStarted)
}

func TestRegistry_Names(t *testing.T) {
	t.Parallel()
	r := newTaskRegistry()
	noop := scheduledExecutor(func(context.Context) error { return nil })
	require.NoError(t, r.register("b", noop))
	require.NoError(t, r.register("a", noop))
	assert.Equal(t, []string{"a", "b"}, r.names())

	require.ErrorIs(t, r.register("a", noop), ErrDuplicateTask)
	require.ErrorIs(t, r.register("", noop), ErrInvalidTask)
}

func TestOptions_DuplicateTask(t *testing.T) {
	t.Parallel()

	cfg := newConfig()
	WithTask[startPayload](&startTask{})(cfg)
	WithTask[startPayload](&startTask{})(cfg)
	require.Len(t, cfg.errs, 1)
	assert.ErrorIs(t, cfg.errs[0], ErrDuplicateTask)
}
