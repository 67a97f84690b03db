package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds every Prometheus metric the repo exports: HTTP
// front-door metrics (request rate/latency, circuit breaker state,
// retry budget) and active-check-engine metrics (per-server health,
// liveness, and queue depth).
type Collector struct {
	// Front-door request metrics.
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	ActiveRequests     *prometheus.GaugeVec
	CircuitBreakerState *prometheus.GaugeVec
	RetriesTotal       *prometheus.CounterVec
	RetryBudgetTokens  prometheus.Gauge

	// Check-engine metrics, one series per server.
	Health          *prometheus.GaugeVec
	Up              *prometheus.GaugeVec
	DownTransitions *prometheus.GaugeVec
	FailedChecks    *prometheus.GaugeVec
	QueueDepth      *prometheus.GaugeVec
	RequeuedTotal   *prometheus.GaugeVec
}

// NewCollector creates and registers all metrics.
func NewCollector() *Collector {
	return &Collector{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkengine_requests_total",
				Help: "Total number of front-door requests",
			},
			[]string{"backend", "method", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "checkengine_request_duration_seconds",
				Help:    "Front-door request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend", "method"},
		),
		ActiveRequests: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "checkengine_active_requests",
				Help: "Number of active front-door requests per backend",
			},
			[]string{"backend"},
		),
		CircuitBreakerState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "checkengine_circuit_breaker_state",
				Help: "Circuit breaker state (0=CLOSED, 1=HALF_OPEN, 2=OPEN)",
			},
			[]string{"backend"},
		),
		RetriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkengine_retries_total",
				Help: "Total number of front-door retries",
			},
			[]string{"reason"},
		),
		RetryBudgetTokens: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "checkengine_retry_budget_tokens",
				Help: "Available retry budget tokens",
			},
		),

		Health: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "checkengine_server_health",
				Help: "Current health counter (0..rise+fall-1) per server",
			},
			[]string{"proxy", "server"},
		),
		Up: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "checkengine_server_up",
				Help: "Liveness FSM verdict per server (1=up, 0=down)",
			},
			[]string{"proxy", "server"},
		),
		DownTransitions: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "checkengine_server_down_transitions_total",
				Help: "Cumulative number of UP-to-DOWN transitions per server",
			},
			[]string{"proxy", "server"},
		),
		FailedChecks: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "checkengine_server_failed_checks_total",
				Help: "Cumulative number of failed probes while up, per server",
			},
			[]string{"proxy", "server"},
		),
		QueueDepth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "checkengine_pending_queue_depth",
				Help: "Current pending-connection queue depth",
			},
			[]string{"proxy", "queue"},
		),
		RequeuedTotal: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "checkengine_requeued_sessions_total",
				Help: "Cumulative sessions requeued by liveness edges, per server",
			},
			[]string{"proxy", "server"},
		),
	}
}
