package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	celiaAgent = "celia_agent"

	// Job metrics
	jobsTotal   = "jobs_total"
	jobsRunning = "jobs_running"

	// Generation client metrics
	generateRequestsTotal  = "generate_requests_total"
	generateFailuresTotal  = "generate_failures_total"
	generateTokensTotal    = "generate_tokens_total"
	generateCacheHitsTotal = "generate_cache_hits_total"
	rateLimiterWaitSeconds = "rate_limiter_wait_seconds"

	// Labels
	jobStatusLabel = "status"
)

/**
* Metrics definition
**/
var jobsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: celiaAgent,
		Name:      jobsTotal,
		Help:      "number of jobs that reached a terminal status",
	},
	[]string{jobStatusLabel},
)

var jobsRunningMetric = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Subsystem: celiaAgent,
		Name:      jobsRunning,
		Help:      "number of jobs currently holding an execution slot",
	},
)

var generateRequestsTotalMetric = prometheus.NewCounter(
	prometheus.CounterOpts{
		Subsystem: celiaAgent,
		Name:      generateRequestsTotal,
		Help:      "number of outbound generation requests",
	},
)

var generateFailuresTotalMetric = prometheus.NewCounter(
	prometheus.CounterOpts{
		Subsystem: celiaAgent,
		Name:      generateFailuresTotal,
		Help:      "number of failed outbound generation requests",
	},
)

var generateTokensTotalMetric = prometheus.NewCounter(
	prometheus.CounterOpts{
		Subsystem: celiaAgent,
		Name:      generateTokensTotal,
		Help:      "estimated number of tokens exchanged with the generation capability",
	},
)

var generateCacheHitsTotalMetric = prometheus.NewCounter(
	prometheus.CounterOpts{
		Subsystem: celiaAgent,
		Name:      generateCacheHitsTotal,
		Help:      "number of generation requests served from the response cache",
	},
)

var rateLimiterWaitSecondsMetric = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Subsystem: celiaAgent,
		Name:      rateLimiterWaitSeconds,
		Help:      "time spent waiting for rate limiter admission",
		Buckets:   []float64{0.001, 0.1, 1, 5, 15, 60},
	},
)

func IncreaseJobsTotalMetric(status string) {
	jobsTotalMetric.With(prometheus.Labels{jobStatusLabel: status}).Inc()
}

func IncreaseJobsRunningMetric() {
	jobsRunningMetric.Inc()
}

func DecreaseJobsRunningMetric() {
	jobsRunningMetric.Dec()
}

func IncreaseGenerateRequestsTotalMetric() {
	generateRequestsTotalMetric.Inc()
}

func IncreaseGenerateFailuresTotalMetric() {
	generateFailuresTotalMetric.Inc()
}

func AddGenerateTokensTotalMetric(tokens int) {
	generateTokensTotalMetric.Add(float64(tokens))
}

func IncreaseGenerateCacheHitsTotalMetric() {
	generateCacheHitsTotalMetric.Inc()
}

func ObserveRateLimiterWaitMetric(seconds float64) {
	rateLimiterWaitSecondsMetric.Observe(seconds)
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(jobsTotalMetric)
	prometheus.MustRegister(jobsRunningMetric)
	prometheus.MustRegister(generateRequestsTotalMetric)
	prometheus.MustRegister(generateFailuresTotalMetric)
	prometheus.MustRegister(generateTokensTotalMetric)
	prometheus.MustRegister(generateCacheHitsTotalMetric)
	prometheus.MustRegister(rateLimiterWaitSecondsMetric)
}
