package shopauth

import (
	"crypto/hmac"
	"errors"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// ErrInvalidHMAC is returned when a signed redirect fails verification.
var ErrInvalidHMAC = errors.New("shopauth: invalid hmac")

// SignQuery computes the hex HMAC-SHA256 Shopify attaches to OAuth and app
// proxy redirects: keys sorted, "hmac" and "signature" excluded, pairs joined by "&".
func SignQuery(query url.Values, secret string) string {
	keys := make([]string, 0, len(query))
	for k := range query {
		if k == "hmac" || k == "signature" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		vals := query[k]
		value := ""
		switch len(vals) {
		case 0:
		case 1:
			value = vals[0]
		default:
			value = `["` + strings.Join(vals, `", "`) + `"]`
		}
		pairs = append(pairs, k+"="+value)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(mac.Sum(nil))
}

// CheckQuery returns ErrInvalidHMAC unless query carries a valid signature.
func CheckQuery(query url.Values, secret string) error {
	if !VerifyQuery(query, secret) {
		return ErrInvalidHMAC
	}
	return nil
}

// VerifyQuery reports whether the "hmac" parameter of query is valid for secret.
func VerifyQuery(query url.Values, secret string) bool {
	given, err := hex.DecodeString(query.Get("hmac"))
	if err != nil || len(given) == 0 || secret == "" {
		return false
	}
	want, _ := hex.DecodeString(SignQuery(query, secret))
	return hmac.Equal(given, want)
}
