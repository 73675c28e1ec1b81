// Package metrics provides Prometheus metrics for the glycemia API.
// HTTP metrics:
//   - http_request_total: Counter with method, path, and status labels
//   - http_request_duration_seconds: Histogram with method and path labels
//   - http_request_in_flight: Gauge for concurrent requests
//
// Engine metrics:
//   - dose_calculations_total: Counter with outcome label
//   - dose_cap_clamped_total: Counter of doses reduced to the safety cap
//   - dose_total_units: Histogram of recommended bolus sizes
//   - risk_assessments_total: Counter with tier and source (analyze, quick_check) labels
//   - risk_requests_rejected_total: Counter with source and outcome labels
//   - knowledge_base_info: Gauge set to 1 for the loaded guideline version
//   - knowledge_base_drift: Gauge set to 1 when the guideline file changed on disk
//
// All metrics are registered with the Prometheus default registry during
// package initialization.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Total number of rate limiter buckets (clients seen since the last cleanup)",
		},
	)

	DoseCalculationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dose_calculations_total",
			Help: "Bolus calculations by outcome (ok, invalid_parameter, physiologically_implausible)",
		},
		[]string{"outcome"},
	)

	DoseCapClampedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dose_cap_clamped_total",
			Help: "Bolus recommendations reduced to the safety cap",
		},
	)

	DoseTotalUnits = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dose_total_units",
			Help:    "Recommended bolus size in units",
			Buckets: []float64{0, 1, 2, 4, 6, 8, 10, 15, 20, 30},
		},
	)

	RiskAssessmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_assessments_total",
			Help: "Risk assessments by tier and source",
		},
		[]string{"source", "tier"},
	)

	RiskRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_requests_rejected_total",
			Help: "Risk requests answered with an error, by source and outcome (invalid_parameter, physiologically_implausible)",
		},
		[]string{"source", "outcome"},
	)

	KnowledgeBaseInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "knowledge_base_info",
			Help: "Loaded guideline version (value is always 1)",
		},
		[]string{"version", "checksum"},
	)

	KnowledgeBaseDrift = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "knowledge_base_drift",
			Help: "1 when the guideline file on disk no longer matches the loaded table",
		},
	)
)

// Outcome labels for DoseCalculationsTotal
const (
	OutcomeOK          = "ok"
	OutcomeInvalid     = "invalid_parameter"
	OutcomeImplausible = "physiologically_implausible"
)

// Source labels for RiskAssessmentsTotal
const (
	SourceAnalyze    = "analyze"
	SourceQuickCheck = "quick_check"
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
	prometheus.MustRegister(DoseCalculationsTotal)
	prometheus.MustRegister(DoseCapClampedTotal)
	prometheus.MustRegister(DoseTotalUnits)
	prometheus.MustRegister(RiskAssessmentsTotal)
	prometheus.MustRegister(RiskRejectedTotal)
	prometheus.MustRegister(KnowledgeBaseInfo)
	prometheus.MustRegister(KnowledgeBaseDrift)
}

// ObserveDose records a successful calculation
func ObserveDose(totalUnits float64, clamped bool) {
	DoseCalculationsTotal.WithLabelValues(OutcomeOK).Inc()
	DoseTotalUnits.Observe(totalUnits)
	if clamped {
		DoseCapClampedTotal.Inc()
	}
}

// ObserveRisk records an assessment tier for source
func ObserveRisk(source, tier string) {
	RiskAssessmentsTotal.WithLabelValues(source, tier).Inc()
}

// ObserveRiskRejected records a risk request that failed validation
func ObserveRiskRejected(source, outcome string) {
	RiskRejectedTotal.WithLabelValues(source, outcome).Inc()
}

// SetKnowledgeBase publishes the loaded guideline version
func SetKnowledgeBase(version, checksum string) {
	KnowledgeBaseInfo.Reset()
	KnowledgeBaseInfo.WithLabelValues(version, checksum).Set(1)
}

// SetDrift flags whether the guideline file changed since startup
func SetDrift(drifted bool) {
	if drifted {
		KnowledgeBaseDrift.Set(1)
		return
	}
	KnowledgeBaseDrift.Set(0)
}
