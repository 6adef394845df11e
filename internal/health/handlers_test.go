package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fabric-pricing/internal/health"
)

func ok(context.Context) error { return nil }

func ready(t *testing.T, h health.Handler) (int, map[string]string) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	return rr.Code, body
}

func TestLive(t *testing.T) {
	rr := httptest.NewRecorder()
	health.Handler{}.Live(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestReadySuccess(t *testing.T) {
	code, body := ready(t, health.Handler{Probes: []health.Probe{
		{Name: "db", Check: ok},
		{Name: "redis", Check: ok},
	}})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, map[string]string{"db": "ok", "redis": "ok"}, body)
}

func TestReadyFailureHidesCause(t *testing.T) {
	code, body := ready(t, health.Handler{Probes: []health.Probe{
		{Name: "db", Check: func(context.Context) error { return errors.New("dial tcp 10.0.0.5:5432: secret") }},
		{Name: "redis", Check: ok},
	}})
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, map[string]string{"db": "unavailable", "redis": "ok"}, body)
}

func TestReadyProbeTimeout(t *testing.T) {
	slow := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	start := time.Now()
	code, body := ready(t, health.Handler{Probes: []health.Probe{
		{Name: "db", Timeout: 20 * time.Millisecond, Check: slow},
		{Name: "redis", Timeout: 20 * time.Millisecond, Check: slow},
	}})
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "unavailable", body["db"])
	require.Less(t, time.Since(start), time.Second, "probes run concurrently and respect their timeout")
}
