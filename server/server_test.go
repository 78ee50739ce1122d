package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestHealth(t *testing.T) {
	s := New(Options{}, zerolog.Nop())
	s.now = func() time.Time { return time.Date(2025, 3, 1, 12, 30, 0, 250e6, time.UTC) }

	rec, body := get(t, s.Handler(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "2025-03-01T12:30:00.250Z", body["timestamp"])
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestConfig(t *testing.T) {
	rec, body := get(t, New(Options{APIKey: "dg-secret"}, zerolog.Nop()).Handler(), "/api/config")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, map[string]string{"DEEPGRAM_API_KEY": "dg-secret"}, body)

	rec, body = get(t, New(Options{}, zerolog.Nop()).Handler(), "/api/config")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]string{"error": "Deepgram API key not configured"}, body)
}

func TestPreflight(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/config", nil)
	req.Header.Set("Origin", "http://localhost:8081")
	New(Options{}, zerolog.Nop()).Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServeReportsCredentialHealth(t *testing.T) {
	for _, tt := range []struct {
		key  string
		want healthpb.HealthCheckResponse_ServingStatus
	}{
		{"dg-secret", healthpb.HealthCheckResponse_SERVING},
		{"", healthpb.HealthCheckResponse_NOT_SERVING},
	} {
		httpLn, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		grpcLn, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- New(Options{APIKey: tt.key}, zerolog.Nop()).Serve(ctx, httpLn, grpcLn) }()

		conn, err := grpc.NewClient(grpcLn.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
		require.NoError(t, err)

		checkCtx, checkCancel := context.WithTimeout(context.Background(), 5*time.Second)
		resp, err := healthpb.NewHealthClient(conn).Check(checkCtx, &healthpb.HealthCheckRequest{Service: CredentialsService})
		checkCancel()
		require.NoError(t, err)
		assert.Equal(t, tt.want, resp.GetStatus())

		resp2, err := http.Get("http://" + httpLn.Addr().String() + "/health")
		require.NoError(t, err)
		resp2.Body.Close()
		assert.Equal(t, http.StatusOK, resp2.StatusCode)

		_ = conn.Close()
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("server did not shut down")
		}
	}
}
