package middlewares_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailcast/middlewares"
	"github.com/dmitrymomot/mailcast/pkg/logger"
)

func TestRecover(t *testing.T) {
	t.Parallel()

	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("test panic")
	})

	t.Run("answers 500 with the request ID", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		h := middlewares.RequestID(middlewares.WithRequestIDGenerator(func() string { return "rid" }))(
			middlewares.Recover(logger.NewNope())(panicking),
		)
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "rid", body["request_id"])
	})

	t.Run("passes through when no panic", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		h := middlewares.Recover(nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("custom handler receives the panic", func(t *testing.T) {
		t.Parallel()

		var got *middlewares.PanicError
		h := middlewares.Recover(nil,
			middlewares.WithRecoverDisablePrintStack(),
			middlewares.WithRecoverHandler(func(w http.ResponseWriter, _ *http.Request, pe *middlewares.PanicError) {
				got = pe
				w.WriteHeader(http.StatusTeapot)
			}),
		)(panicking)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusTeapot, rec.Code)
		require.NotNil(t, got)
		assert.Equal(t, "test panic", got.Value)
		assert.Nil(t, got.Stack)

		pe, ok := middlewares.AsPanicError(got)
		require.True(t, ok)
		assert.Equal(t, "panic in GET /: test panic", pe.Error())
		assert.Equal(t, "panic: boom", (&middlewares.PanicError{Value: "boom"}).Error())
	})
}
