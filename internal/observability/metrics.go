// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Trade metrics
	TradesExecuted    *prometheus.CounterVec
	TradesRejected    *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec
	DuplicatesBlocked prometheus.Counter

	// Endpoint metrics
	RPCRequests      *prometheus.CounterVec
	RPCLatency       *prometheus.HistogramVec
	HealthyEndpoints prometheus.Gauge
	TotalEndpoints   prometheus.Gauge

	// Protection metrics
	QuotesRejected   prometheus.Counter
	SlippageChecks   *prometheus.CounterVec
	BundlesSubmitted prometheus.Counter
	BundlesLanded    prometheus.Counter
	BundlesFailed    prometheus.Counter
	TipLamports      prometheus.Histogram

	// Health metrics
	LastSuccessfulTrade prometheus.Gauge
	UptimeSeconds       prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solsniper"
	}

	return &Metrics{
		// Trade metrics
		TradesExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "trades_executed_total",
			Help:      "Total number of trades executed by side, method and outcome",
		}, []string{"side", "method", "outcome"}),
		TradesRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "trades_rejected_total",
			Help:      "Total number of trades rejected before submission by reason",
		}, []string{"reason"}),
		ExecutionDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "execution_duration_seconds",
			Help:      "End-to-end trade execution duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"side", "method"}),
		DuplicatesBlocked: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "duplicates_blocked_total",
			Help:      "Total number of trades blocked by the dedup window",
		}),

		// Endpoint metrics
		RPCRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "Total number of RPC requests by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		RPCLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "latency_seconds",
			Help:      "RPC call latency in seconds by endpoint",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		HealthyEndpoints: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "healthy_endpoints",
			Help:      "Current number of healthy RPC endpoints",
		}),
		TotalEndpoints: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "total_endpoints",
			Help:      "Total number of configured RPC endpoints",
		}),

		// Protection metrics
		QuotesRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "protection",
			Name:      "quotes_rejected_total",
			Help:      "Total number of quotes rejected for excessive price impact",
		}),
		SlippageChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "protection",
			Name:      "slippage_checks_total",
			Help:      "Total number of post-trade slippage checks by result",
		}, []string{"result"}),
		BundlesSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "protection",
			Name:      "bundles_submitted_total",
			Help:      "Total number of bundles submitted to the relay",
		}),
		BundlesLanded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "protection",
			Name:      "bundles_landed_total",
			Help:      "Total number of bundles that landed on chain",
		}),
		BundlesFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "protection",
			Name:      "bundles_failed_total",
			Help:      "Total number of bundles that failed or timed out",
		}),
		TipLamports: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "protection",
			Name:      "tip_lamports",
			Help:      "Tip size in lamports attached to submitted bundles",
			Buckets:   []float64{100_000, 500_000, 1_000_000, 2_000_000, 4_000_000, 8_000_000, 10_000_000},
		}),

		// Health metrics
		LastSuccessfulTrade: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_trade_timestamp",
			Help:      "Unix timestamp of the last successful trade",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRPC records one RPC call's outcome and latency for an endpoint.
func (m *Metrics) ObserveRPC(endpoint string, success bool, latency time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.RPCRequests.WithLabelValues(endpoint, outcome).Inc()
	m.RPCLatency.WithLabelValues(endpoint).Observe(latency.Seconds())
}

// SetHealthyEndpoints updates the endpoint health gauges.
func (m *Metrics) SetHealthyEndpoints(healthy, total int) {
	m.HealthyEndpoints.Set(float64(healthy))
	m.TotalEndpoints.Set(float64(total))
}

// RecordTrade records a completed trade execution.
func (m *Metrics) RecordTrade(side, method string, success bool, duration time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.TradesExecuted.WithLabelValues(side, method, outcome).Inc()
	m.ExecutionDuration.WithLabelValues(side, method).Observe(duration.Seconds())
	if success {
		m.LastSuccessfulTrade.SetToCurrentTime()
	}
}

// RecordRejection records a trade rejected before submission.
func (m *Metrics) RecordRejection(reason string) {
	m.TradesRejected.WithLabelValues(reason).Inc()
}

// RecordBundle records a bundle submission outcome.
func (m *Metrics) RecordBundle(landed bool, tipLamports uint64) {
	m.BundlesSubmitted.Inc()
	m.TipLamports.Observe(float64(tipLamports))
	if landed {
		m.BundlesLanded.Inc()
	} else {
		m.BundlesFailed.Inc()
	}
}
