// Package shopauth handles app installation, stored shop sessions and the
// verification of embedded-admin session tokens.
package shopauth

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
)

// ErrSessionNotFound is returned when no session is stored for a shop.
var ErrSessionNotFound = errors.New("shopauth: session not found")

// Session is an authorized installation of the app on a shop.
type Session struct {
	ID          string
	Shop        string
	State       string
	IsOnline    bool
	Scope       string
	AccessToken string
	ExpiresAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OfflineSessionID is the identifier of the long-lived session of a shop.
func OfflineSessionID(shop string) string {
	return "offline_" + shop
}

// SessionStore persists sessions.
type SessionStore interface {
	// Store inserts or replaces the session with the same ID.
	Store(ctx context.Context, s Session) error
	FindOffline(ctx context.Context, shop string) (Session, error)
	DeleteByShop(ctx context.Context, shop string) (int64, error)
}

var myshopifyDomain = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*\.myshopify\.com$`)

// NormaliseShop lowercases and trims a shop domain, returning "" when it is
// not a *.myshopify.com domain or a subdomain of customDomain.
func NormaliseShop(shop, customDomain string) string {
	shop = strings.ToLower(strings.TrimSpace(shop))
	shop = strings.TrimPrefix(shop, "https://")
	shop = strings.TrimSuffix(shop, "/")
	if myshopifyDomain.MatchString(shop) {
		return shop
	}
	customDomain = strings.ToLower(strings.TrimSpace(customDomain))
	if customDomain != "" && strings.HasSuffix(shop, "."+customDomain) {
		label := strings.TrimSuffix(shop, "."+customDomain)
		if label != "" && !strings.ContainsAny(label, "/:@?#") {
			return shop
		}
	}
	return ""
}
