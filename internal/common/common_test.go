package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteEnvelopeErrorHidesInfrastructureDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteEnvelopeError(rec, InfrastructureError(errors.New("dial tcp 10.0.0.1:5432: connection refused")))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "10.0.0.1")
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, http.StatusInternalServerError, env.StatusCode)
	require.False(t, env.Success)
	require.Equal(t, InternalServerErrorMessage, env.Message)
	require.Nil(t, env.Data)
}

func TestWriteEnvelopeErrorKeepsValidationMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteEnvelopeError(rec, ValidationError("Please fill out all fields"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, "Please fill out all fields", env.Message)
}

func TestWriteEnvelopeErrorPlainError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteEnvelopeError(rec, errors.New("boom"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "boom")
}

func TestIsRetryable(t *testing.T) {
	require.True(t, IsRetryable(InfrastructureError(errors.New("x"))))
	require.True(t, IsRetryable(PlatformAPIError(errors.New("x"))))
	require.False(t, IsRetryable(ValidationError("x")))
	require.False(t, IsRetryable(errors.New("x")))
}

func TestShopContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := Shop(req.Context())
	require.False(t, ok)

	ctx := WithShop(req.Context(), "demo.myshopify.com")
	shop, ok := Shop(ctx)
	require.True(t, ok)
	require.Equal(t, "demo.myshopify.com", shop)
}

func TestClientIP(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "forwarded", headers: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, remote: "10.0.0.1:443", want: "203.0.113.7"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "198.51.100.2"}, remote: "10.0.0.1:443", want: "198.51.100.2"},
		{name: "garbage header", headers: map[string]string{"X-Forwarded-For": "not-an-ip"}, remote: "192.0.2.10:5000", want: "192.0.2.10"},
		{name: "mapped v4", remote: "[::ffff:192.0.2.1]:80", want: "192.0.2.1"},
		{name: "ipv6", remote: "[2001:db8::1]:80", want: "2001:db8::1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			require.Equal(t, tc.want, ClientIP(req))
		})
	}
}
