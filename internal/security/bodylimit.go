package security

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/noah-isme/fabric-pricing/internal/common"
)

const msgTooLarge = "request entity too large"

// BodyLimit caps request payloads. Overrides maps a path prefix to its own
// cap, e.g. webhook deliveries that legitimately exceed the form limit.
type BodyLimit struct {
	Max       int64
	Overrides map[string]int64
}

func (b BodyLimit) limitFor(path string) int64 {
	limit := b.Max
	matched := 0
	for prefix, max := range b.Overrides {
		if strings.HasPrefix(path, prefix) && len(prefix) > matched {
			limit, matched = max, len(prefix)
		}
	}
	return limit
}

// Middleware rejects requests exceeding the applicable limit with a 413
// envelope. Bodies within the limit are buffered so handlers may re-read them.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := b.limitFor(r.URL.Path)
		if limit <= 0 || r.Body == nil || r.Body == http.NoBody || r.Method == http.MethodGet || r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > limit {
			common.WriteEnvelope(w, http.StatusRequestEntityTooLarge, msgTooLarge, nil)
			return
		}

		buf, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
		_ = r.Body.Close()
		if err != nil && !errors.Is(err, io.EOF) {
			common.WriteEnvelope(w, http.StatusBadRequest, "invalid request body", nil)
			return
		}
		if int64(len(buf)) > limit {
			common.WriteEnvelope(w, http.StatusRequestEntityTooLarge, msgTooLarge, nil)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(buf))
		r.ContentLength = int64(len(buf))
		next.ServeHTTP(w, r)
	})
}
