package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// ConfigSaveTotal counts shop configuration saves by outcome.
	ConfigSaveTotal *prometheus.CounterVec
	// ConfigCacheTotal counts configuration cache lookups by outcome.
	ConfigCacheTotal *prometheus.CounterVec
	// RegistrationTotal counts post-install Admin API registrations by kind and outcome.
	RegistrationTotal *prometheus.CounterVec
	// RegistrationLatency records registration call latency in milliseconds.
	RegistrationLatency *prometheus.HistogramVec
	// WebhookTotal counts inbound Shopify webhooks by topic and outcome.
	WebhookTotal *prometheus.CounterVec
	// OAuthTotal counts OAuth install callbacks by outcome.
	OAuthTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		ConfigSaveTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_save_total",
			Help:      "Count of shop configuration saves by outcome.",
		}, []string{"result"})
		ConfigCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_cache_total",
			Help:      "Count of configuration cache lookups by outcome.",
		}, []string{"result"})
		RegistrationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registration_total",
			Help:      "Count of post-install registrations by kind and outcome.",
		}, []string{"kind", "result"})
		RegistrationLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "registration_duration_ms",
			Help:      "Latency for post-install registration calls in milliseconds.",
			Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"kind"})
		WebhookTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_total",
			Help:      "Count of processed Shopify webhooks by topic and outcome.",
		}, []string{"topic", "result"})
		OAuthTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oauth_callback_total",
			Help:      "Count of OAuth install callbacks by outcome.",
		}, []string{"result"})

		mustRegisterCollector(reg, ConfigSaveTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ConfigSaveTotal = v
			}
		})
		mustRegisterCollector(reg, ConfigCacheTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ConfigCacheTotal = v
			}
		})
		mustRegisterCollector(reg, RegistrationTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				RegistrationTotal = v
			}
		})
		mustRegisterCollector(reg, RegistrationLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				RegistrationLatency = v
			}
		})
		mustRegisterCollector(reg, WebhookTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				WebhookTotal = v
			}
		})
		mustRegisterCollector(reg, OAuthTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				OAuthTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}

// CountConfigSave increments ConfigSaveTotal when registered.
func CountConfigSave(result string) {
	if ConfigSaveTotal != nil {
		ConfigSaveTotal.WithLabelValues(result).Inc()
	}
}

// CountConfigCache increments ConfigCacheTotal when registered.
func CountConfigCache(result string) {
	if ConfigCacheTotal != nil {
		ConfigCacheTotal.WithLabelValues(result).Inc()
	}
}

// CountRegistration increments RegistrationTotal when registered.
func CountRegistration(kind, result string) {
	if RegistrationTotal != nil {
		RegistrationTotal.WithLabelValues(kind, result).Inc()
	}
}

// ObserveRegistration records a registration latency sample when registered.
func ObserveRegistration(kind string, ms float64) {
	if RegistrationLatency != nil {
		RegistrationLatency.WithLabelValues(kind).Observe(ms)
	}
}

// CountWebhook increments WebhookTotal when registered.
func CountWebhook(topic, result string) {
	if WebhookTotal != nil {
		WebhookTotal.WithLabelValues(topic, result).Inc()
	}
}

// CountOAuth increments OAuthTotal when registered.
func CountOAuth(result string) {
	if OAuthTotal != nil {
		OAuthTotal.WithLabelValues(result).Inc()
	}
}
