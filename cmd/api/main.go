package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/fabric-pricing/internal/config"
	"github.com/noah-isme/fabric-pricing/internal/health"
	"github.com/noah-isme/fabric-pricing/internal/lock"
	"github.com/noah-isme/fabric-pricing/internal/obs"
	"github.com/noah-isme/fabric-pricing/internal/ratelimit"
	"github.com/noah-isme/fabric-pricing/internal/registration"
	"github.com/noah-isme/fabric-pricing/internal/resilience"
	"github.com/noah-isme/fabric-pricing/internal/shopauth"
	"github.com/noah-isme/fabric-pricing/internal/shopconfig"
	"github.com/noah-isme/fabric-pricing/internal/shopifyapi"
	"github.com/noah-isme/fabric-pricing/internal/webhook"
)

const shutdownGrace = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("env", cfg.AppEnv).Logger()
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Obs.MetricsEnabled {
		obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNS, nil)
	}

	tracingEnabled := cfg.Obs.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   "fabric-pricing",
			Endpoint:      cfg.Obs.OTLPEndpoint,
			Exporter:      cfg.Obs.TracingExporter,
			SamplingRatio: cfg.Obs.SamplingRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse REDIS_URL: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()
	if tracingEnabled {
		if err := redisotel.InstrumentTracing(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis tracing")
		}
	}

	configService, err := shopconfig.NewService(shopconfig.ServiceConfig{
		Store:   store.configs,
		Cache:   shopconfig.NewCache(redisClient, cfg.ConfigCacheTTL),
		Locker:  lock.Locker{R: redisClient, MaxWait: cfg.ConfigLockTTL},
		LockTTL: cfg.ConfigLockTTL,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	if cfg.Obs.MetricsEnabled {
		if err := resilience.RegisterMetrics(nil); err != nil {
			return fmt.Errorf("register breaker metrics: %w", err)
		}
	}
	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		Target:       "shopify_admin",
		MinRequests:  10,
		FailureRatio: 0.5,
		OpenFor:      30 * time.Second,
		Logger:       logger,
	})
	adminAPI := shopifyapi.New(shopifyapi.Config{
		APIVersion:  cfg.Shopify.APIVersion,
		Breaker:     breaker,
		Timeout:     cfg.Shopify.AdminAPITimeout,
		MaxAttempts: cfg.Shopify.AdminAPIMaxAttempts,
	})

	if cfg.Shopify.CartTransformFunctionID == "" {
		logger.Warn().Msg("CART_TRANSFORM_FUNCTION_ID not set; cart transform registration disabled")
	}
	dispatcher := registration.NewDispatcher(logger, cfg.Shopify.AdminAPITimeout,
		registration.CartTransformRegistrar{Client: adminAPI, FunctionID: cfg.Shopify.CartTransformFunctionID},
		registration.WebhookRegistrar{Client: adminAPI, CallbackURL: cfg.WebhookURL(), Topics: []string{"APP_UNINSTALLED"}},
	)

	oauth := shopauth.NewOAuth(shopauth.Config{
		APIKey:         cfg.Shopify.APIKey,
		APISecret:      cfg.Shopify.APISecret,
		Scopes:         cfg.Shopify.Scopes,
		AppURL:         cfg.Shopify.AppURL,
		AuthPathPrefix: cfg.AuthPathPrefix,
		CustomDomain:   cfg.Shopify.CustomDomain,
		StateTTL:       cfg.OAuthStateTTL,
	}, shopauth.RedisStateStore{R: redisClient}, store.sessions, adminAPI, logger, dispatcher.AfterAuth)

	var httpMetrics *obs.HTTPMetrics
	if cfg.Obs.MetricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(cfg.Obs.MetricsNS, obs.ParseBucketsCSV(cfg.Obs.MetricsBuckets), nil)
	}

	handler := newRouter(routerDeps{
		cfg:    cfg,
		logger: logger,
		health: health.Handler{Probes: []health.Probe{
			{Name: "db", Timeout: cfg.Obs.ReadyDBTimeout, Check: store.ping},
			{Name: "redis", Timeout: cfg.Obs.ReadyRedisTimeout, Check: func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			}},
		}},
		settings: shopconfig.NewHandler(configService, logger),
		oauth:    oauth,
		webhooks: &webhook.Handler{
			Secret:    cfg.Shopify.APISecret,
			Sessions:  store.sessions,
			Replay:    webhook.RedisReplayProtector{R: redisClient},
			ReplayTTL: cfg.WebhookReplayTTL,
			Logger:    logger,
		},
		verifier: shopauth.SessionTokenVerifier{
			APIKey:       cfg.Shopify.APIKey,
			APISecret:    cfg.Shopify.APISecret,
			ClockSkew:    cfg.SessionTokenSkew,
			CustomDomain: cfg.Shopify.CustomDomain,
		},
		limiter: ratelimit.Handler{
			Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "ratelimit:public:"},
			Config: ratelimit.Config{
				Key:    ratelimit.ByClientIP,
				Window: cfg.PublicRateLimitWindow,
				Max:    cfg.PublicRateLimitMax,
			},
			Fallback: ratelimit.NewLocal(cfg.PublicRateLimitWindow, cfg.PublicRateLimitMax),
			OnError:  func(err error) {
				logger.Warn().Err(err).Msg("rate limiter unavailable")
			},
		},
		httpMetrics: httpMetrics,
		tracing:     tracingEnabled,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	health.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	if err := dispatcher.Drain(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("registrations still in flight at exit")
	}
	return nil
}
