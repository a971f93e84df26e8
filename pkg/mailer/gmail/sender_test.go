package gmail_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/dmitrymomot/mailcast/pkg/mailer"
	"github.com/dmitrymomot/mailcast/pkg/mailer/gmail"
)

func newProvider(t *testing.T, handler http.HandlerFunc) *gmail.Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := gmail.New(gmail.Config{SenderEmail: "team@example.com", RateCapacity: 1},
		gmail.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "token", TokenType: "Bearer"})),
		gmail.WithBaseURL(srv.URL),
	)
	require.NoError(t, err)
	return p
}

func TestNew_RequiresCredentials(t *testing.T) {
	t.Parallel()

	_, err := gmail.New(gmail.Config{ClientID: "id"})
	require.ErrorIs(t, err, gmail.ErrMissingCredentials)
}

func TestProvider_Send(t *testing.T) {
	t.Parallel()

	var raw string
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gmail/v1/users/me/messages/send", r.URL.Path)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))

		var req struct {
			Raw string `json:"raw"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		decoded, err := base64.URLEncoding.DecodeString(req.Raw)
		assert.NoError(t, err)
		raw = string(decoded)

		_, _ = w.Write([]byte(`{"id":"gm-1","threadId":"t-1"}`))
	})

	receipt, err := p.Send(context.Background(), &mailer.Email{
		To:      "ada@example.com",
		Subject: "Hi Ada",
		HTML:    "<p>Hi</p>",
		Text:    "Hi",
	})
	require.NoError(t, err)
	assert.Equal(t, "gm-1", receipt.MessageID)
	assert.Contains(t, raw, "To: ada@example.com\r\n")
	assert.Contains(t, raw, "From: team@example.com\r\n")
	assert.Contains(t, raw, "multipart/alternative")
	assert.True(t, strings.Contains(raw, "text/plain") && strings.Contains(raw, "text/html"))
}

func TestProvider_Send_Classification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		permanent bool
	}{
		{"bad request", http.StatusBadRequest, true},
		{"unauthorized", http.StatusUnauthorized, false},
		{"quota", http.StatusTooManyRequests, false},
		{"unavailable", http.StatusServiceUnavailable, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			_, err := p.Send(context.Background(), &mailer.Email{To: "a@example.com", Subject: "s", Text: "t"})
			require.Error(t, err)
			assert.Equal(t, tt.permanent, mailer.IsPermanent(err))
		})
	}
}

func TestProvider_Healthcheck(t *testing.T) {
	t.Parallel()

	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {})
	require.NoError(t, p.Healthcheck(context.Background()))
	assert.Equal(t, gmail.Name, p.Name())
}
