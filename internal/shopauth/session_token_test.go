package shopauth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fabric-pricing/internal/common"
	"github.com/noah-isme/fabric-pricing/internal/shopauth"
)

const (
	apiKey    = "api-key"
	apiSecret = "api-secret"
)

func signToken(t *testing.T, secret, aud, dest, iss string, exp time.Time) string {
	t.Helper()
	now := time.Now()
	tok, err := jwt.NewBuilder().
		Issuer(iss).
		Audience([]string{aud}).
		Subject("42").
		IssuedAt(now).
		NotBefore(now.Add(-time.Second)).
		Expiration(exp).
		Claim("dest", dest).
		Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte(secret)))
	require.NoError(t, err)
	return string(signed)
}

func validToken(t *testing.T) string {
	return signToken(t, apiSecret, apiKey, "https://demo.myshopify.com", "https://demo.myshopify.com/admin", time.Now().Add(time.Minute))
}

func TestSessionTokenVerifier(t *testing.T) {
	v := shopauth.SessionTokenVerifier{APIKey: apiKey, APISecret: apiSecret, ClockSkew: 5 * time.Second}

	shop, err := v.Verify(validToken(t))
	require.NoError(t, err)
	require.Equal(t, "demo.myshopify.com", shop)

	cases := map[string]string{
		"wrong secret":    signToken(t, "nope", apiKey, "https://demo.myshopify.com", "https://demo.myshopify.com/admin", time.Now().Add(time.Minute)),
		"wrong audience":  signToken(t, apiSecret, "other", "https://demo.myshopify.com", "https://demo.myshopify.com/admin", time.Now().Add(time.Minute)),
		"expired":         signToken(t, apiSecret, apiKey, "https://demo.myshopify.com", "https://demo.myshopify.com/admin", time.Now().Add(-time.Minute)),
		"foreign dest":    signToken(t, apiSecret, apiKey, "https://evil.com", "https://evil.com/admin", time.Now().Add(time.Minute)),
		"issuer mismatch": signToken(t, apiSecret, apiKey, "https://demo.myshopify.com", "https://other.myshopify.com/admin", time.Now().Add(time.Minute)),
		"garbage":         "a.b.c",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(raw)
			require.Error(t, err)
		})
	}
}

func TestRequireSessionToken(t *testing.T) {
	mw := shopauth.RequireSessionToken(shopauth.SessionTokenVerifier{APIKey: apiKey, APISecret: apiSecret})
	var seen string
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = common.Shop(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	req.Header.Set("Authorization", "Bearer "+validToken(t))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "demo.myshopify.com", seen)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/settings", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "1", rec.Header().Get("X-Shopify-Retry-Invalid-Session-Request"))
	require.Contains(t, rec.Body.String(), `"success":false`)
}
