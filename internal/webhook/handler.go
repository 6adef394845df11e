// Package webhook receives Shopify app webhooks.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/fabric-pricing/internal/obs"
	"github.com/noah-isme/fabric-pricing/internal/shopauth"
)

const (
	TopicAppUninstalled = "app/uninstalled"

	// MaxBodyBytes caps a single delivery.
	MaxBodyBytes = 1 << 20
)

// ReplayProtector suppresses duplicate deliveries of the same webhook.
type ReplayProtector interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// RedisReplayProtector implements ReplayProtector with SETNX.
type RedisReplayProtector struct {
	R *redis.Client
}

// Acquire reports whether key was not seen within ttl.
func (p RedisReplayProtector) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if p.R == nil {
		return true, nil
	}
	return p.R.SetNX(ctx, key, time.Now().Unix(), ttl).Result()
}

// Release forgets key so a redelivery is processed again.
func (p RedisReplayProtector) Release(ctx context.Context, key string) error {
	if p.R == nil {
		return nil
	}
	return p.R.Del(ctx, key).Err()
}

// Handler verifies and processes webhook deliveries.
type Handler struct {
	Secret    string
	Sessions  shopauth.SessionStore
	Replay    ReplayProtector
	ReplayTTL time.Duration
	Logger    zerolog.Logger
}

// Sign returns the base64 HMAC-SHA256 of body as sent in X-Shopify-Hmac-Sha256.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature authenticates body.
func Verify(secret string, body []byte, signature string) bool {
	given, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(given) == 0 || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return hmac.Equal(given, mac.Sum(nil))
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	topic := strings.TrimSpace(r.Header.Get("X-Shopify-Topic"))
	shop := shopauth.NormaliseShop(r.Header.Get("X-Shopify-Shop-Domain"), "")

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil || len(body) > MaxBodyBytes {
		obs.CountWebhook(topic, "bad_request")
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if !Verify(h.Secret, body, r.Header.Get("X-Shopify-Hmac-Sha256")) {
		obs.CountWebhook(topic, "invalid_signature")
		h.Logger.Warn().Str("topic", topic).Str("shop", shop).Msg("webhook signature rejected")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	key := ""
	if id := strings.TrimSpace(r.Header.Get("X-Shopify-Webhook-Id")); id != "" && h.Replay != nil {
		key = "webhook:seen:" + id
		fresh, err := h.Replay.Acquire(ctx, key, h.replayTTL())
		switch {
		case err != nil:
			key = ""
			h.Logger.Warn().Err(err).Str("webhook_id", id).Msg("webhook replay check failed")
		case !fresh:
			obs.CountWebhook(topic, "duplicate")
			w.WriteHeader(http.StatusOK)
			return
		}
	}

	if err := h.process(ctx, topic, shop); err != nil {
		if key != "" {
			if relErr := h.Replay.Release(context.WithoutCancel(ctx), key); relErr != nil {
				h.Logger.Warn().Err(relErr).Str("key", key).Msg("webhook replay release failed")
			}
		}
		obs.CountWebhook(topic, "error")
		h.Logger.Error().Err(err).Str("topic", topic).Str("shop", shop).Msg("webhook processing failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	obs.CountWebhook(topic, "processed")
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) process(ctx context.Context, topic, shop string) error {
	switch topic {
	case TopicAppUninstalled:
		if shop == "" {
			return errors.New("webhook: shop domain header missing")
		}
		// Configuration records are kept so a reinstall restores the merchant's settings.
		n, err := h.Sessions.DeleteByShop(ctx, shop)
		if err != nil {
			return err
		}
		h.Logger.Info().Str("shop", shop).Int64("sessions", n).Msg("app uninstalled")
	default:
		h.Logger.Debug().Str("topic", topic).Str("shop", shop).Msg("webhook acknowledged")
	}
	return nil
}

func (h *Handler) replayTTL() time.Duration {
	if h.ReplayTTL <= 0 {
		return 24 * time.Hour
	}
	return h.ReplayTTL
}
