package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the admission layer
type Metrics struct {
	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Admission decision metrics
	DecisionsTotal  *prometheus.CounterVec
	RejectionsTotal *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitRejected *prometheus.CounterVec
	TrackedBuckets    *prometheus.GaugeVec

	// Brute force metrics
	LoginFailures  prometheus.Counter
	BruteBlocks    prometheus.Counter
	BlockedClients prometheus.Gauge

	// Threat scanner metrics
	ThreatDetections *prometheus.CounterVec

	// CSRF metrics
	CSRFIssued   prometheus.Counter
	CSRFFailures prometheus.Counter

	// Janitor metrics
	SweepDuration prometheus.Histogram
	SweptEntries  *prometheus.CounterVec

	// Registerer and Gatherer expose the backing registry so other
	// collectors can join it and the management endpoint can serve it
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewWithRegistry creates a new Metrics instance with a custom registry
func NewWithRegistry(registerer prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeeper_requests_total",
				Help: "Total number of requests seen by the admission gate",
			},
			[]string{"method", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gatekeeper_request_duration_seconds",
				Help:    "Request latencies including admission checks",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status"},
		),

		DecisionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeeper_admission_decisions_total",
				Help: "Admission decisions by check and outcome",
			},
			[]string{"check", "outcome"},
		),
		RejectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeeper_admission_rejections_total",
				Help: "Rejected requests by check",
			},
			[]string{"check"},
		),

		RateLimitRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeeper_ratelimit_rejected_total",
				Help: "Rate limited requests by scope",
			},
			[]string{"scope"},
		),
		TrackedBuckets: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gatekeeper_ratelimit_buckets",
				Help: "Live token buckets by scope",
			},
			[]string{"scope"},
		),

		LoginFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gatekeeper_login_failures_total",
				Help: "Failed authentication attempts recorded",
			},
		),
		BruteBlocks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gatekeeper_bruteforce_blocks_total",
				Help: "Blocks imposed by the brute force guard",
			},
		),
		BlockedClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "gatekeeper_blocked_clients",
				Help: "Entries currently on the blocklist",
			},
		),

		ThreatDetections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeeper_threat_detections_total",
				Help: "Threat scanner matches by category",
			},
			[]string{"category"},
		),

		CSRFIssued: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gatekeeper_csrf_tokens_issued_total",
				Help: "CSRF tokens issued",
			},
		),
		CSRFFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gatekeeper_csrf_failures_total",
				Help: "Requests rejected for a missing or invalid CSRF token",
			},
		),

		SweepDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gatekeeper_janitor_sweep_duration_seconds",
				Help:    "Janitor sweep latencies",
				Buckets: prometheus.DefBuckets,
			},
		),
		SweptEntries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeeper_janitor_swept_entries_total",
				Help: "Entries evicted by the janitor by store",
			},
			[]string{"store"},
		),

		Registerer: registerer,
		Gatherer:   gatherer,
	}
}
