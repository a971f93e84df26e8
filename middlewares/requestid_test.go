package middlewares_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailcast/middlewares"
	"github.com/dmitrymomot/mailcast/pkg/logger"
)

func TestRequestID(t *testing.T) {
	t.Parallel()

	capture := func(got *string) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*got = logger.RequestIDFromContext(r.Context())
		})
	}

	t.Run("generates an ID when none is sent", func(t *testing.T) {
		t.Parallel()

		var got string
		rec := httptest.NewRecorder()
		middlewares.RequestID()(capture(&got)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.NotEmpty(t, got)
		assert.Equal(t, got, rec.Header().Get("X-Request-ID"))
	})

	t.Run("keeps the upstream ID in header order", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Correlation-ID", "corr-2")
		req.Header.Set("X-Request-ID", "req-1")

		var got string
		rec := httptest.NewRecorder()
		middlewares.RequestID()(capture(&got)).ServeHTTP(rec, req)

		assert.Equal(t, "req-1", got)
		assert.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))
	})

	t.Run("custom generator and headers", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "ignored")

		var got string
		mw := middlewares.RequestID(
			middlewares.WithRequestIDHeaders("X-Trace"),
			middlewares.WithRequestIDGenerator(func() string { return "fixed" }),
		)
		mw(capture(&got)).ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, "fixed", got)
	})
}
