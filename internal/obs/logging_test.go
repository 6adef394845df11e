package obs_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fabric-pricing/internal/common"
	"github.com/noah-isme/fabric-pricing/internal/obs"
)

func TestNewLoggerToRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := obs.NewLoggerTo(&buf, "json", "warn")
	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")
}

func TestRequestLoggerRecordsAuthenticatedShop(t *testing.T) {
	var buf bytes.Buffer
	logger := obs.NewLoggerTo(&buf, "json", "info")

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = r.WithContext(common.WithShop(r.Context(), "demo.myshopify.com"))
		obs.AnnotateShop(r)
		w.WriteHeader(http.StatusCreated)
	})
	handler := obs.RequestLogger{Logger: logger}.Middleware(inner)

	req := httptest.NewRequest(http.MethodPost, "/api/settings", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "http_request", entry["message"])
	require.Equal(t, "demo.myshopify.com", entry["shop"])
	require.Equal(t, "203.0.113.7", entry["client_ip"])
	require.EqualValues(t, http.StatusCreated, entry["status"])
}

func TestRequestLoggerFallsBackToQueryShop(t *testing.T) {
	var buf bytes.Buffer
	handler := obs.RequestLogger{Logger: obs.NewLoggerTo(&buf, "json", "info")}.Middleware(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/setPriceDynamic?shop=demo.myshopify.com", nil))
	require.Contains(t, buf.String(), `"shop":"demo.myshopify.com"`)
}
