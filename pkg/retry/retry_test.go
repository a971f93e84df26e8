package retry_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailcast/pkg/campaign"
	"github.com/dmitrymomot/mailcast/pkg/retry"
)

func testConfig() retry.Config {
	return retry.Config{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
		Multiplier:  2,
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, testConfig().Validate())

	broken := []func(*retry.Config){
		func(c *retry.Config) { c.MaxAttempts = 0 },
		func(c *retry.Config) { c.BaseDelay = 0 },
		func(c *retry.Config) { c.MaxDelay = time.Millisecond },
		func(c *retry.Config) { c.Multiplier = 0.5 },
	}
	for i, mutate := range broken {
		cfg := testConfig()
		mutate(&cfg)
		assert.ErrorIs(t, cfg.Validate(), retry.ErrInvalidConfig, "case %d", i)
	}

	_, err := retry.New(retry.Config{})
	require.ErrorIs(t, err, retry.ErrInvalidConfig)
}

func TestPolicy_Decide(t *testing.T) {
	t.Parallel()

	p, err := retry.New(testConfig(), "resend", "gmail")
	require.NoError(t, err)

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, retry.ActionDone, p.Decide(1, campaign.Success(), "resend").Action)
	})

	t.Run("permanent gives up immediately", func(t *testing.T) {
		t.Parallel()
		d := p.Decide(1, campaign.Permanent("hard bounce"), "resend")
		assert.Equal(t, retry.Decision{Action: retry.ActionGiveUp, Reason: "hard bounce"}, d)
	})

	t.Run("transient retries with backoff", func(t *testing.T) {
		t.Parallel()
		want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
		for attempt, after := range want {
			d := p.Decide(attempt+1, campaign.Transient("503"), "resend")
			assert.Equal(t, retry.ActionRetry, d.Action)
			assert.Equal(t, after, d.After)
			assert.Equal(t, "resend", d.Provider)
		}
	})

	t.Run("cap converts to give up", func(t *testing.T) {
		t.Parallel()
		d := p.Decide(5, campaign.Transient("503"), "resend")
		assert.Equal(t, retry.ActionGiveUp, d.Action)
		assert.Equal(t, retry.ReasonMaxAttempts, d.Reason)
	})

	t.Run("deterministic", func(t *testing.T) {
		t.Parallel()
		for attempt := 1; attempt <= 6; attempt++ {
			for _, o := range []campaign.Outcome{campaign.Transient("x"), campaign.Permanent("y")} {
				assert.Equal(t, p.Decide(attempt, o, "gmail"), p.Decide(attempt, o, "gmail"))
			}
		}
	})
}

func TestPolicy_Backoff_Capped(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MaxAttempts = 100
	p, err := retry.New(cfg)
	require.NoError(t, err)

	assert.Equal(t, 8*time.Second, p.Backoff(4))
	assert.Equal(t, 10*time.Second, p.Backoff(5))
	assert.Equal(t, 10*time.Second, p.Backoff(90))
	assert.Equal(t, time.Second, p.Backoff(0))
}

func TestPolicy_SwitchProvider(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.SwitchProvider = true
	p, err := retry.New(cfg, "resend", "gmail")
	require.NoError(t, err)

	assert.Equal(t, "gmail", p.Decide(1, campaign.Transient("x"), "resend").Provider)
	assert.Equal(t, "resend", p.Decide(2, campaign.Transient("x"), "gmail").Provider)
	assert.Equal(t, "resend", p.Decide(1, campaign.Transient("x"), "").Provider, "unknown provider starts the rotation")

	single, err := retry.New(cfg, "resend")
	require.NoError(t, err)
	assert.Equal(t, "resend", single.Decide(1, campaign.Transient("x"), "resend").Provider)
}
