package keepalive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthServer(t *testing.T, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			hits.Add(1)
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestPing(t *testing.T) {
	srv, hits := healthServer(t, http.StatusOK)
	require.NoError(t, NewPinger(srv.URL+"/", zerolog.Nop()).Ping(context.Background()))
	assert.Equal(t, int32(1), hits.Load())

	bad, _ := healthServer(t, http.StatusBadGateway)
	assert.ErrorContains(t, NewPinger(bad.URL, zerolog.Nop()).Ping(context.Background()), "502")
}

func TestStartPingsImmediatelyAndOnSchedule(t *testing.T) {
	srv, hits := healthServer(t, http.StatusOK)

	stop, err := Start(context.Background(), srv.URL, "@every 1s", zerolog.Nop())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return hits.Load() >= 1 }, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return hits.Load() >= 2 }, 3*time.Second, 50*time.Millisecond)

	stop()
	stop()
	after := hits.Load()
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, after, hits.Load())
}

func TestStartSurvivesFailingBackend(t *testing.T) {
	srv, hits := healthServer(t, http.StatusServiceUnavailable)

	ctx, cancel := context.WithCancel(context.Background())
	stop, err := Start(ctx, srv.URL, "", zerolog.Nop())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	stop()
}

func TestStartRejectsBadSchedule(t *testing.T) {
	_, err := Start(context.Background(), "http://localhost:1", "every now and then", zerolog.Nop())
	assert.Error(t, err)
}
