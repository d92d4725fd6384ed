package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Provider metrics
	ProviderAPICalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aeroclaim_provider_api_calls_total",
			Help: "Total number of flight data provider API calls",
		},
		[]string{"provider", "endpoint", "status"}, // status: success|error|not_found|rate_limited
	)

	ProviderAPILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aeroclaim_provider_api_latency_seconds",
			Help:    "Flight data provider API latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"provider", "endpoint"},
	)

	ProviderRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aeroclaim_provider_retries_total",
			Help: "Total number of retried provider requests",
		},
		[]string{"provider", "kind"},
	)

	// Quota metrics
	QuotaCreditsUsed = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aeroclaim_quota_credits_used",
			Help: "Credits consumed in the current quota period",
		},
		[]string{"provider"},
	)

	QuotaUsagePercent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aeroclaim_quota_usage_percent",
			Help: "Percentage of the monthly credit allowance consumed",
		},
		[]string{"provider"},
	)

	QuotaAlerts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aeroclaim_quota_alerts_total",
			Help: "Total number of quota threshold alerts sent",
		},
		[]string{"provider", "threshold"},
	)

	QuotaRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aeroclaim_quota_rejections_total",
			Help: "Total number of requests rejected by the quota brake",
		},
		[]string{"provider"},
	)

	// Cache metrics
	CacheOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aeroclaim_cache_operations_total",
			Help: "Total number of cache lookups by outcome",
		},
		[]string{"namespace", "outcome"}, // outcome: hit|miss|error
	)

	CacheCreditsSaved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aeroclaim_cache_credits_saved_total",
			Help: "Provider credits saved by serving cached payloads",
		},
		[]string{"namespace"},
	)

	// Verification metrics
	VerificationRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aeroclaim_verification_requests_total",
			Help: "Total number of flight verification requests by source",
		},
		[]string{"source"}, // source: cached|provider|not_found|quota_exceeded|manual
	)

	RouteSearches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aeroclaim_route_searches_total",
			Help: "Total number of route searches",
		},
		[]string{"source"},
	)
)

// Init registers all metrics with Prometheus
func Init() {
	prometheus.MustRegister(ProviderAPICalls)
	prometheus.MustRegister(ProviderAPILatency)
	prometheus.MustRegister(ProviderRetries)

	prometheus.MustRegister(QuotaCreditsUsed)
	prometheus.MustRegister(QuotaUsagePercent)
	prometheus.MustRegister(QuotaAlerts)
	prometheus.MustRegister(QuotaRejections)

	prometheus.MustRegister(CacheOperations)
	prometheus.MustRegister(CacheCreditsSaved)

	prometheus.MustRegister(VerificationRequests)
	prometheus.MustRegister(RouteSearches)
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordProviderCall records a provider API call outcome
func RecordProviderCall(provider, endpoint, status string, latency time.Duration) {
	ProviderAPICalls.WithLabelValues(provider, endpoint, status).Inc()
	ProviderAPILatency.WithLabelValues(provider, endpoint).Observe(latency.Seconds())
}

// RecordQuotaUsage updates the quota gauges after a usage record
func RecordQuotaUsage(provider string, creditsUsed int64, usagePercent float64) {
	QuotaCreditsUsed.WithLabelValues(provider).Set(float64(creditsUsed))
	QuotaUsagePercent.WithLabelValues(provider).Set(usagePercent)
}

// RecordCacheLookup records a cache lookup outcome
func RecordCacheLookup(namespace, outcome string) {
	CacheOperations.WithLabelValues(namespace, outcome).Inc()
}
