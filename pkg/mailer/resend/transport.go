package resend

import (
	"context"
	"net/http"
)

// The resend client reports API failures as plain errors, so the response
// status is captured at the transport and read back by the caller.

type statusKey struct{}

type statusHolder struct {
	code int
}

func withStatus(ctx context.Context) (context.Context, *statusHolder) {
	h := &statusHolder{}
	return context.WithValue(ctx, statusKey{}, h), h
}

type statusRecorder struct {
	next http.RoundTripper
}

func (t *statusRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if h, ok := req.Context().Value(statusKey{}).(*statusHolder); ok {
		h.code = resp.StatusCode
	}
	return resp, nil
}
