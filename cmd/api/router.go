package main

import (
	"crypto/subtle"
	"net/http"
	"net/http/pprof"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/fabric-pricing/internal/config"
	"github.com/noah-isme/fabric-pricing/internal/health"
	"github.com/noah-isme/fabric-pricing/internal/obs"
	"github.com/noah-isme/fabric-pricing/internal/ratelimit"
	"github.com/noah-isme/fabric-pricing/internal/security"
	"github.com/noah-isme/fabric-pricing/internal/shopauth"
	"github.com/noah-isme/fabric-pricing/internal/shopconfig"
	"github.com/noah-isme/fabric-pricing/internal/webhook"
)

type routerDeps struct {
	cfg         *config.Config
	logger      zerolog.Logger
	health      health.Handler
	settings    *shopconfig.Handler
	oauth       *shopauth.OAuth
	webhooks    http.Handler
	verifier    shopauth.SessionTokenVerifier
	limiter     ratelimit.Handler
	httpMetrics *obs.HTTPMetrics
	tracing     bool
}

func newRouter(d routerDeps) http.Handler {
	cfg := d.cfg
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if d.tracing {
		r.Use(obs.TracingMiddleware)
	}
	if d.httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: d.httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.logger}.Middleware)
	r.Use(security.BodyLimit{
		Max:       cfg.BodyLimitBytes,
		Overrides: map[string]int64{cfg.WebhookPath: webhook.MaxBodyBytes},
	}.Middleware)

	if cfg.Obs.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if cfg.Obs.PprofEnabled {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), cfg.Obs.PprofUser, cfg.Obs.PprofPass))
	}

	r.Get("/health/live", d.health.Live)
	r.Get("/health/ready", d.health.Ready)

	embedded := security.Headers{Enable: true, EnableHSTS: true}
	r.Group(func(app chi.Router) {
		app.Use(embedded.Middleware)
		app.Get(cfg.AuthPathPrefix, d.oauth.Begin)
		app.Get(cfg.AuthCallbackPath(), d.oauth.Callback)
		app.Route("/api/settings", func(settings chi.Router) {
			settings.Use(shopauth.RequireSessionToken(d.verifier))
			settings.Get("/", d.settings.AdminGet)
			settings.Post("/", d.settings.AdminSave)
		})
	})

	r.Post(cfg.WebhookPath, d.webhooks.ServeHTTP)

	r.Route("/api/setPriceDynamic", func(public chi.Router) {
		public.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins(cfg),
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
		public.Use(d.limiter.Middleware)
		public.Get("/", d.settings.PublicGet)
	})

	return r
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
