package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailcast/pkg/logger"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	return rec
}

func TestNew_ContextExtractors(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.Config{Level: slog.LevelInfo}, &buf,
		logger.Campaign(), logger.Recipient(), logger.RequestID(), nil)

	ctx := logger.WithCampaignID(context.Background(), "c-1")
	ctx = logger.WithRecipientID(ctx, "r-1")
	log.InfoContext(ctx, "sent", "provider", "resend")

	rec := decode(t, &buf)
	assert.Equal(t, "sent", rec["msg"])
	assert.Equal(t, "c-1", rec["campaign_id"])
	assert.Equal(t, "r-1", rec["recipient_id"])
	assert.Equal(t, "resend", rec["provider"])
	assert.NotContains(t, rec, "request_id")
}

func TestNew_Level(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.Config{Level: slog.LevelWarn}, &buf)
	log.Info("hidden")
	assert.Zero(t, buf.Len())

	log.Warn("shown")
	assert.Equal(t, "shown", decode(t, &buf)["msg"])
}

func TestNew_WithAttrsKeepsExtractors(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.Config{}, &buf, logger.RequestID()).With("component", "api").WithGroup("http")

	ctx := logger.WithRequestID(context.Background(), "req-9")
	log.InfoContext(ctx, "handled", "status", 200)

	rec := decode(t, &buf)
	assert.Equal(t, "api", rec["component"])
	assert.Equal(t, "req-9", rec["http"].(map[string]any)["request_id"])
	assert.Equal(t, "req-9", logger.RequestIDFromContext(ctx))
}

func TestNewNope(t *testing.T) {
	t.Parallel()
	assert.False(t, logger.NewNope().Enabled(context.Background(), slog.LevelError))
}

func TestNew_ExplicitAttrWinsOverContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.Config{Level: slog.LevelInfo}, &buf, logger.Campaign())

	ctx := logger.WithCampaignID(context.Background(), "from-ctx")
	log.InfoContext(ctx, "adopted", slog.String("campaign_id", "explicit"))

	rec := decode(t, &buf)
	assert.Equal(t, "explicit", rec["campaign_id"])
}
