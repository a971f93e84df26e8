package verify_test

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailcast/pkg/cache"
	"github.com/dmitrymomot/mailcast/pkg/verify"
)

type fakeResolver struct {
	records map[string][]*net.MX
	err     error
	calls   atomic.Int32
}

func (f *fakeResolver) LookupMX(_ context.Context, name string) ([]*net.MX, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	mx, ok := f.records[name]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: name, IsNotFound: true}
	}
	return mx, nil
}

func newResolver() *fakeResolver {
	return &fakeResolver{records: map[string][]*net.MX{
		"example.com":    {{Host: "mx.example.com.", Pref: 10}},
		"gmail.com":      {{Host: "gmail-smtp-in.l.google.com.", Pref: 5}},
		"mailinator.com": {{Host: "mail.mailinator.com.", Pref: 10}},
	}}
}

func TestVerifier_Verify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		addr       string
		status     verify.Status
		webmail    bool
		disposable bool
	}{
		{name: "valid", addr: "ada@example.com", status: verify.StatusValid},
		{name: "webmail is valid", addr: "ada@gmail.com", status: verify.StatusValid, webmail: true},
		{name: "disposable is risky", addr: "x@mailinator.com", status: verify.StatusRisky, disposable: true},
		{name: "no mx", addr: "ada@nowhere.test", status: verify.StatusInvalid},
		{name: "bad syntax", addr: "not-an-address", status: verify.StatusInvalid},
		{name: "display name rejected", addr: "Ada <ada@example.com>", status: verify.StatusInvalid},
		{name: "dotless domain", addr: "ada@localhost", status: verify.StatusInvalid},
	}

	v := verify.New(verify.WithResolver(newResolver()))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := v.Verify(context.Background(), tt.addr)
			require.NoError(t, err)
			assert.Equal(t, tt.status, res.Status)
			assert.Equal(t, tt.webmail, res.Webmail)
			assert.Equal(t, tt.disposable, res.Disposable)
		})
	}
}

func TestVerifier_Empty(t *testing.T) {
	t.Parallel()
	_, err := verify.New().Verify(context.Background(), "  ")
	require.ErrorIs(t, err, verify.ErrEmptyAddress)
}

func TestVerifier_IsDeliverable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	v := verify.New(verify.WithResolver(newResolver()))
	assert.True(t, v.IsDeliverable(ctx, "ada@example.com"))
	assert.False(t, v.IsDeliverable(ctx, "x@mailinator.com"))
	assert.False(t, v.IsDeliverable(ctx, "ada@nowhere.test"))
	assert.False(t, v.IsDeliverable(ctx, ""))

	risky := verify.New(verify.WithResolver(newResolver()), verify.WithAllowRisky(true))
	assert.True(t, risky.IsDeliverable(ctx, "x@mailinator.com"))
}

func TestVerifier_LookupFailureIsUnknown(t *testing.T) {
	t.Parallel()

	r := &fakeResolver{err: errors.New("i/o timeout")}
	v := verify.New(verify.WithResolver(r))

	res, err := v.Verify(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, verify.StatusUnknown, res.Status)
	assert.True(t, v.IsDeliverable(context.Background(), "ada@example.com"))
}

func TestVerifier_Cached(t *testing.T) {
	t.Parallel()

	r := newResolver()
	c := cache.NewMemory[verify.Result]()
	defer c.Close()
	v := verify.New(verify.WithResolver(r), verify.WithCache(c))

	ctx := context.Background()
	for range 3 {
		res, err := v.Verify(ctx, "ada@example.com")
		require.NoError(t, err)
		assert.Equal(t, verify.StatusValid, res.Status)
	}
	assert.Equal(t, int32(1), r.calls.Load())

	cached, err := c.Get(ctx, "email_verification:ada@example.com")
	require.NoError(t, err)
	assert.True(t, cached.HasMX)
}

func TestDomainLists(t *testing.T) {
	t.Parallel()
	assert.True(t, verify.IsDisposable("sub.mailinator.com"))
	assert.True(t, verify.IsDisposable("YOPMAIL.COM"))
	assert.False(t, verify.IsDisposable("notmailinator.com"))
	assert.True(t, verify.IsWebmail("gmail.com"))
	assert.False(t, verify.IsWebmail("example.com"))
}
