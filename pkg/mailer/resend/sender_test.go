package resend_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailcast/pkg/mailer"
	"github.com/dmitrymomot/mailcast/pkg/mailer/resend"
)

// rewrite sends every request to the test server regardless of the target host.
type rewrite struct {
	target *url.URL
}

func (r rewrite) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = r.target.Scheme
	req.URL.Host = r.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

func newProvider(t *testing.T, handler http.HandlerFunc) *resend.Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	target, err := url.Parse(srv.URL)
	require.NoError(t, err)

	p, err := resend.New(resend.Config{
		APIKey:       "re_test",
		SenderEmail:  "team@example.com",
		SenderName:   "Team",
		RateCapacity: 2,
		RateRefill:   2,
	}, resend.WithTransport(rewrite{target: target}))
	require.NoError(t, err)
	return p
}

func testEmail() *mailer.Email {
	return &mailer.Email{To: "ada@example.com", Subject: "Hi Ada", HTML: "<p>Hi</p>", Text: "Hi"}
}

func TestNew_RequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := resend.New(resend.Config{})
	require.ErrorIs(t, err, resend.ErrMissingAPIKey)
}

func TestProvider_Send_Success(t *testing.T) {
	t.Parallel()

	var got map[string]any
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_123"}`))
	})

	receipt, err := p.Send(context.Background(), testEmail())
	require.NoError(t, err)
	assert.Equal(t, "msg_123", receipt.MessageID)
	assert.Equal(t, "Team <team@example.com>", got["from"])
	assert.Equal(t, "Hi Ada", got["subject"])
	assert.Equal(t, resend.Name, p.Name())
	assert.Equal(t, 2, p.Budget().Capacity)
}

func TestProvider_Send_Classification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		permanent bool
	}{
		{"validation error", http.StatusUnprocessableEntity, true},
		{"rate limited", http.StatusTooManyRequests, false},
		{"server error", http.StatusInternalServerError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"statusCode":` + strconv.Itoa(tt.status) + `,"message":"nope","name":"error"}`))
			})

			_, err := p.Send(context.Background(), testEmail())
			require.Error(t, err)
			assert.Equal(t, tt.permanent, mailer.IsPermanent(err))
		})
	}
}

func TestProvider_Send_InvalidEmail(t *testing.T) {
	t.Parallel()

	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := p.Send(context.Background(), &mailer.Email{To: "ada@example.com"})
	require.ErrorIs(t, err, mailer.ErrNoSubject)
	assert.True(t, mailer.IsPermanent(err))
}
