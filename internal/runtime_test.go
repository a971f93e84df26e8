package internal_test

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailcast/internal"
	"github.com/dmitrymomot/mailcast/pkg/mailer"
)

type checkedProvider struct {
	*fakeProvider
	err error
}

func (p *checkedProvider) Healthcheck(context.Context) error { return p.err }

func TestRun_GracefulShutdown(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []mailer.Provider{newFakeProvider("resend", nil)})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu    sync.Mutex
		order []string
	)
	hook := func(name string, err error) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return err
		}
	}

	addrCh := make(chan net.Addr, 1)
	done := make(chan error, 1)
	go func() {
		done <- internal.Run(f.engine, internal.NewHandler(f.engine),
			internal.WithAddress("127.0.0.1:0"),
			internal.WithBaseContext(ctx),
			internal.WithShutdownTimeout(5*time.Second),
			internal.WithOnListen(func(a net.Addr) { addrCh <- a }),
			internal.WithShutdownHook(hook("forwarder", nil)),
			internal.WithShutdownHook(hook("db", errors.New("pool already closed"))),
		)
	}()

	var addr net.Addr
	select {
	case addr = <-addrCh:
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start listening")
	}

	resp, err := http.Get("http://" + addr.String() + "/health/live")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))

	cancel()

	select {
	case err = <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	require.EqualError(t, err, "pool already closed")

	mu.Lock()
	assert.Equal(t, []string{"forwarder", "db"}, order)
	mu.Unlock()
}

func TestRun_ListenError(t *testing.T) {
	t.Parallel()

	err := internal.Run(nil, http.NotFoundHandler(), internal.WithAddress("256.0.0.1:bad"))
	require.Error(t, err)
}

func TestProviderChecks(t *testing.T) {
	t.Parallel()

	down := errors.New("invalid api key")
	set, err := mailer.NewSet(mailer.ModeHybrid, "resend",
		&checkedProvider{fakeProvider: newFakeProvider("resend", nil), err: down},
		newFakeProvider("log", nil),
	)
	require.NoError(t, err)

	checks := internal.ProviderChecks(set)
	require.Len(t, checks, 1)
	require.Contains(t, checks, "provider_resend")
	assert.ErrorIs(t, checks["provider_resend"](context.Background()), down)
}
