package security

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/noah-isme/fabric-pricing/internal/common"
)

const shopifyAdminOrigin = "https://admin.shopify.com"

var hostPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]*[a-z0-9]$`)

// Headers configures common security headers for HTTP responses.
type Headers struct {
	Enable                bool
	EnableHSTS            bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
}

// Middleware attaches standard security headers to each response. Embedded
// app pages may only be framed by the Shopify admin and the shop's own domain.
func (h Headers) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.Enable {
			next.ServeHTTP(w, r)
			return
		}
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		headers.Set("Permissions-Policy", "geolocation=(), microphone=()")
		headers.Set("Content-Security-Policy", FrameAncestors(frameShop(r)))
		if h.EnableHSTS && r.TLS != nil {
			maxAge := h.HSTSMaxAge
			if maxAge <= 0 {
				maxAge = 31536000
			}
			value := "max-age=" + strconv.Itoa(maxAge)
			if h.HSTSIncludeSubdomains {
				value += "; includeSubDomains"
			}
			headers.Set("Strict-Transport-Security", value)
		}
		next.ServeHTTP(w, r)
	})
}

// FrameAncestors renders the CSP directive for a shop. Without a shop only
// the admin origin is allowed.
func FrameAncestors(shop string) string {
	parts := []string{"frame-ancestors"}
	if shop != "" {
		parts = append(parts, "https://"+shop)
	}
	parts = append(parts, shopifyAdminOrigin)
	return strings.Join(parts, " ") + ";"
}

func frameShop(r *http.Request) string {
	if shop, ok := common.Shop(r.Context()); ok {
		return shop
	}
	shop := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("shop")))
	if !hostPattern.MatchString(shop) {
		return ""
	}
	return shop
}
