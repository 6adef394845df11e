package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	RedisURL    string
	AutoMigrate bool

	Shopify Shopify

	AuthPathPrefix     string
	WebhookPath        string
	CORSAllowedOrigins []string

	ConfigCacheTTL        time.Duration
	ConfigLockTTL         time.Duration
	PublicRateLimitMax    int
	PublicRateLimitWindow time.Duration
	OAuthStateTTL         time.Duration
	WebhookReplayTTL      time.Duration
	SessionTokenSkew      time.Duration
	BodyLimitBytes        int64

	Obs Obs
}

// Shopify groups the app credentials and Admin API settings.
type Shopify struct {
	APIKey                  string
	APISecret               string
	Scopes                  []string
	AppURL                  string
	APIVersion              string
	CartTransformFunctionID string
	CustomDomain            string
	AdminAPITimeout         time.Duration
	AdminAPIMaxAttempts     int
}

// Obs groups logging, metrics and tracing settings.
type Obs struct {
	LogFormat         string
	LogLevel          string
	MetricsEnabled    bool
	MetricsNS         string
	MetricsBuckets    string
	TracingEnabled    bool
	TracingExporter   string
	OTLPEndpoint      string
	SamplingRatio     float64
	PprofEnabled      bool
	PprofUser         string
	PprofPass         string
	ReadyDBTimeout    time.Duration
	ReadyRedisTimeout time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:      valueOrDefault(k.String("APP_ENV"), "development"),
		Port:        valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL: strings.TrimSpace(k.String("DATABASE_URL")),
		RedisURL:    strings.TrimSpace(k.String("REDIS_URL")),
		AutoMigrate: parseBool(k.String("AUTO_MIGRATE")),
		Shopify: Shopify{
			APIKey:                  strings.TrimSpace(k.String("SHOPIFY_API_KEY")),
			APISecret:               strings.TrimSpace(k.String("SHOPIFY_API_SECRET")),
			Scopes:                  splitAndTrim(k.String("SCOPES")),
			AppURL:                  strings.TrimRight(strings.TrimSpace(k.String("SHOPIFY_APP_URL")), "/"),
			APIVersion:              valueOrDefault(k.String("SHOPIFY_API_VERSION"), "2024-04"),
			CartTransformFunctionID: strings.TrimSpace(k.String("CART_TRANSFORM_FUNCTION_ID")),
			CustomDomain:            strings.TrimSpace(k.String("SHOP_CUSTOM_DOMAIN")),
			AdminAPITimeout:         parseDuration(k.String("ADMIN_API_TIMEOUT"), "0s"),
			AdminAPIMaxAttempts:     parseInt(k.String("ADMIN_API_MAX_ATTEMPTS"), 1),
		},
		AuthPathPrefix:        strings.TrimRight(valueOrDefault(k.String("AUTH_PATH_PREFIX"), "/auth"), "/"),
		WebhookPath:           valueOrDefault(k.String("WEBHOOK_PATH"), "/webhooks"),
		CORSAllowedOrigins:    splitAndTrim(valueOrDefault(k.String("CORS_ALLOWED_ORIGINS"), "*")),
		ConfigCacheTTL:        parseDuration(k.String("CONFIG_CACHE_TTL"), "5m"),
		ConfigLockTTL:         parseDuration(k.String("CONFIG_LOCK_TTL"), "5s"),
		PublicRateLimitMax:    parseInt(k.String("PUBLIC_RATE_LIMIT_MAX"), 120),
		PublicRateLimitWindow: parseDuration(k.String("PUBLIC_RATE_LIMIT_WINDOW"), "1m"),
		OAuthStateTTL:         parseDuration(k.String("OAUTH_STATE_TTL"), "10m"),
		WebhookReplayTTL:      parseDuration(k.String("WEBHOOK_REPLAY_TTL"), "24h"),
		SessionTokenSkew:      parseDuration(k.String("SESSION_TOKEN_CLOCK_SKEW"), "10s"),
		BodyLimitBytes:        int64(parseInt(k.String("BODY_LIMIT_BYTES"), 64<<10)),
		Obs: Obs{
			LogFormat:         valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:          valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsEnabled:    parseBoolDefault(k.String("OBS_ENABLE_PROMETHEUS"), true),
			MetricsNS:         valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "fabric"),
			MetricsBuckets:    k.String("OBS_METRICS_BUCKETS_MS"),
			TracingEnabled:    parseBoolDefault(k.String("OBS_ENABLE_TRACING"), false),
			TracingExporter:   valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
			OTLPEndpoint:      strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
			SamplingRatio:     parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0),
			PprofEnabled:      parseBoolDefault(k.String("OBS_ENABLE_PPROF"), false),
			PprofUser:         strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_USER")),
			PprofPass:         strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_PASS")),
			ReadyDBTimeout:    time.Duration(parseInt(k.String("HEALTH_READY_DB_TIMEOUT_MS"), 500)) * time.Millisecond,
			ReadyRedisTimeout: time.Duration(parseInt(k.String("HEALTH_READY_REDIS_TIMEOUT_MS"), 300)) * time.Millisecond,
		},
	}

	if cfg.Shopify.AdminAPIMaxAttempts < 1 {
		cfg.Shopify.AdminAPIMaxAttempts = 1
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.Shopify.APIKey == "" || cfg.Shopify.APISecret == "" {
		return nil, errors.New("SHOPIFY_API_KEY and SHOPIFY_API_SECRET are required")
	}
	if cfg.Shopify.AppURL == "" {
		return nil, errors.New("SHOPIFY_APP_URL is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// AuthCallbackPath is the OAuth redirect target registered with the app.
func (c *Config) AuthCallbackPath() string {
	return c.AuthPathPrefix + "/callback"
}

// WebhookURL is the absolute address webhook subscriptions deliver to.
func (c *Config) WebhookURL() string {
	return c.Shopify.AppURL + c.WebhookPath
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil || d < 0 {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseBool(value string) bool {
	return parseBoolDefault(value, false)
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
