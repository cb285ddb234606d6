// Package metrics declares the Prometheus collectors exported at /metrics.
// Collectors are registered with the default registry at init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatwrapper_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chatwrapper_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// CompletionCalls counts completion API calls by outcome: ok or error.
	CompletionCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatwrapper_completion_calls_total",
		Help: "Completion API calls by outcome",
	}, []string{"outcome"})

	CompletionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "chatwrapper_completion_duration_seconds",
		Help:    "Latency of completion API calls",
		Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
	})

	// Tokens counts tokens reported by the API, by direction: input or output.
	Tokens = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatwrapper_tokens_total",
		Help: "Tokens consumed by direction",
	}, []string{"direction"})

	CostUSD = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatwrapper_estimated_cost_usd_total",
		Help: "Estimated completion spend in USD",
	})

	// RateLimited counts rejected calls per fixed-window policy, plus
	// "global" for the token-bucket throttle.
	RateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatwrapper_rate_limited_total",
		Help: "Requests rejected by a rate limit",
	}, []string{"policy"})

	SessionsSwept = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatwrapper_sessions_swept_total",
		Help: "Expired sessions removed by the sweeper",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		CompletionCalls,
		CompletionDuration,
		Tokens,
		CostUSD,
		RateLimited,
		SessionsSwept,
	)
}
