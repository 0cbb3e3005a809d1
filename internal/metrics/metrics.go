// Package metrics provides Prometheus instrumentation for Kestrel.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kestrel",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kestrel",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// ChargesScreenedTotal counts screened charges by decision.
	ChargesScreenedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kestrel",
			Name:      "charges_screened_total",
			Help:      "Total charges screened by decision.",
		},
		[]string{"decision"},
	)

	// RulesTriggeredTotal counts rule triggers by rule label.
	RulesTriggeredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kestrel",
			Name:      "rules_triggered_total",
			Help:      "Total rule triggers by rule label.",
		},
		[]string{"rule"},
	)

	// ExplanationCacheHits counts explanation cache lookups by result.
	ExplanationCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kestrel",
			Name:      "explanation_cache_lookups_total",
			Help:      "Explanation cache lookups by result (hit/miss).",
		},
		[]string{"result"},
	)

	// ExplanationFallbacksTotal counts provider failures covered by the
	// deterministic fallback text.
	ExplanationFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kestrel",
			Name:      "explanation_fallbacks_total",
			Help:      "Explanations served from the deterministic fallback after a provider failure.",
		},
	)

	// RuleReloadsTotal counts rule-set reloads by result.
	RuleReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kestrel",
			Name:      "rule_reloads_total",
			Help:      "Rule set reloads by result (ok/error).",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ChargesScreenedTotal,
		RulesTriggeredTotal,
		ExplanationCacheHits,
		ExplanationFallbacksTotal,
		RuleReloadsTotal,
	)
}

// Handler returns the /metrics endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
