package shopauth

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/fabric-pricing/internal/common"
	"github.com/noah-isme/fabric-pricing/internal/obs"
	"github.com/noah-isme/fabric-pricing/internal/shopifyapi"
)

const stateCookie = "shopify_app_state"

// Config describes the app registration on the platform.
type Config struct {
	APIKey         string
	APISecret      string
	Scopes         []string
	AppURL         string
	AuthPathPrefix string
	CustomDomain   string
	StateTTL       time.Duration
}

// CodeExchanger trades an OAuth code for an access token. shopifyapi.Client satisfies it.
type CodeExchanger interface {
	ExchangeCode(ctx context.Context, shop, clientID, clientSecret, code string) (shopifyapi.AccessToken, error)
}

// AfterAuthHook runs once a session has been stored. Hooks are invoked
// inline and must hand long work to their own goroutines.
type AfterAuthHook func(ctx context.Context, sess Session)

// OAuth serves the install and callback legs of the authorization code grant.
type OAuth struct {
	cfg       Config
	states    StateStore
	sessions  SessionStore
	exchanger CodeExchanger
	hooks     []AfterAuthHook
	logger    zerolog.Logger
	now       func() time.Time
}

// NewOAuth constructs the OAuth handlers.
func NewOAuth(cfg Config, states StateStore, sessions SessionStore, exchanger CodeExchanger, logger zerolog.Logger, hooks ...AfterAuthHook) *OAuth {
	if cfg.AuthPathPrefix == "" {
		cfg.AuthPathPrefix = "/auth"
	}
	if cfg.StateTTL <= 0 {
		cfg.StateTTL = 10 * time.Minute
	}
	cfg.AppURL = strings.TrimSuffix(cfg.AppURL, "/")
	return &OAuth{
		cfg:       cfg,
		states:    states,
		sessions:  sessions,
		exchanger: exchanger,
		hooks:     hooks,
		logger:    logger,
		now:       time.Now,
	}
}

// Begin starts an installation by redirecting the merchant to the grant screen.
func (o *OAuth) Begin(w http.ResponseWriter, r *http.Request) {
	shop := NormaliseShop(r.URL.Query().Get("shop"), o.cfg.CustomDomain)
	if shop == "" {
		common.WriteEnvelope(w, http.StatusBadRequest, "invalid shop", nil)
		return
	}
	state := uuid.NewString()
	if err := o.states.Put(r.Context(), state, shop, o.cfg.StateTTL); err != nil {
		o.logger.Error().Err(err).Str("shop", shop).Msg("store oauth state")
		common.WriteEnvelopeError(w, common.InfrastructureError(err))
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     o.cfg.AuthPathPrefix,
		MaxAge:   int(o.cfg.StateTTL.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})

	q := url.Values{}
	q.Set("client_id", o.cfg.APIKey)
	q.Set("scope", strings.Join(o.cfg.Scopes, ","))
	q.Set("redirect_uri", o.cfg.AppURL+o.cfg.AuthPathPrefix+"/callback")
	q.Set("state", state)
	http.Redirect(w, r, "https://"+shop+"/admin/oauth/authorize?"+q.Encode(), http.StatusFound)
}

// Callback completes an installation: it verifies the redirect, stores the
// offline session, fires the after-auth hooks and sends the merchant to the app.
func (o *OAuth) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()
	shop := NormaliseShop(query.Get("shop"), o.cfg.CustomDomain)
	if shop == "" {
		obs.CountOAuth("invalid_shop")
		common.WriteEnvelope(w, http.StatusBadRequest, "invalid shop", nil)
		return
	}
	if err := CheckQuery(query, o.cfg.APISecret); err != nil {
		obs.CountOAuth("invalid_hmac")
		o.logger.Warn().Err(err).Str("shop", shop).Msg("oauth callback rejected")
		common.WriteEnvelope(w, http.StatusBadRequest, "invalid hmac", nil)
		return
	}
	if err := o.consumeState(ctx, r, shop); err != nil {
		obs.CountOAuth("invalid_state")
		o.logger.Warn().Err(err).Str("shop", shop).Msg("oauth state rejected")
		common.WriteEnvelope(w, http.StatusBadRequest, "invalid oauth state", nil)
		return
	}

	token, err := o.exchanger.ExchangeCode(ctx, shop, o.cfg.APIKey, o.cfg.APISecret, query.Get("code"))
	if err != nil {
		obs.CountOAuth("exchange_failed")
		o.logger.Error().Err(err).Str("shop", shop).Msg("exchange oauth code")
		common.WriteEnvelopeError(w, common.PlatformAPIError(err))
		return
	}

	now := o.now().UTC()
	sess := Session{
		ID:          OfflineSessionID(shop),
		Shop:        shop,
		State:       query.Get("state"),
		Scope:       token.Scope,
		AccessToken: token.AccessToken,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := o.sessions.Store(ctx, sess); err != nil {
		obs.CountOAuth("store_failed")
		o.logger.Error().Err(err).Str("shop", shop).Msg("store session")
		common.WriteEnvelopeError(w, common.InfrastructureError(err))
		return
	}
	obs.CountOAuth("success")
	o.logger.Info().Str("shop", shop).Str("scope", token.Scope).Msg("shop authenticated")

	hookCtx := context.WithoutCancel(ctx)
	for _, hook := range o.hooks {
		hook(hookCtx, sess)
	}

	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: o.cfg.AuthPathPrefix, MaxAge: -1, HttpOnly: true, Secure: true})
	http.Redirect(w, r, o.embeddedAppURL(shop, query.Get("host")), http.StatusFound)
}

func (o *OAuth) consumeState(ctx context.Context, r *http.Request, shop string) error {
	state := r.URL.Query().Get("state")
	if state == "" {
		return errors.New("state missing")
	}
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value != state {
		return errors.New("state cookie mismatch")
	}
	bound, err := o.states.Take(ctx, state)
	if err != nil {
		return err
	}
	if bound != shop {
		return errors.New("state bound to another shop")
	}
	return nil
}

// embeddedAppURL resolves where the merchant lands after install. The host
// parameter is the base64 admin host, e.g. admin.shopify.com/store/demo.
func (o *OAuth) embeddedAppURL(shop, host string) string {
	trimmed := strings.TrimRight(host, "=")
	for _, enc := range []*base64.Encoding{base64.RawURLEncoding, base64.RawStdEncoding} {
		if trimmed == "" {
			break
		}
		decoded, err := enc.DecodeString(trimmed)
		if err == nil && isAdminHost(string(decoded), shop) {
			return "https://" + string(decoded) + "/apps/" + o.cfg.APIKey
		}
	}
	return "https://" + shop + "/admin/apps/" + o.cfg.APIKey
}

func isAdminHost(host, shop string) bool {
	return strings.HasPrefix(host, "admin.shopify.com/store/") || host == shop+"/admin"
}
