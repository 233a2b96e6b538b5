// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Event flow
	EventsReceived       *prometheus.CounterVec
	TransactionsResolved prometheus.Counter
	TransactionsSkipped  prometheus.Counter
	DedupHits            prometheus.Counter
	BuysDetected         prometheus.Counter

	// Alerting
	AlertsDispatched prometheus.Counter
	DispatchErrors   prometheus.Counter
	PriceErrors      prometheus.Counter
	ArchiveErrors    prometheus.Counter

	// Registry
	TrackedTokens prometheus.Gauge

	// Latency
	RPCCallLatency       *prometheus.HistogramVec
	EventHandlingLatency prometheus.Histogram

	// Health
	LastEventUnixtime prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_buybot"
	}

	return &Metrics{
		EventsReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "events_received_total",
			Help:      "Total number of log events received by source",
		}, []string{"source"}),
		TransactionsResolved: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "transactions_resolved_total",
			Help:      "Total number of transactions resolved via RPC",
		}),
		TransactionsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "transactions_skipped_total",
			Help:      "Total number of events skipped because the transaction was unavailable",
		}),
		DedupHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "dedup_hits_total",
			Help:      "Total number of transactions dropped as already processed",
		}),
		BuysDetected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "buys_detected_total",
			Help:      "Total number of tracked-token buys detected",
		}),

		AlertsDispatched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerting",
			Name:      "alerts_dispatched_total",
			Help:      "Total number of buy alerts delivered to Telegram",
		}),
		DispatchErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerting",
			Name:      "dispatch_errors_total",
			Help:      "Total number of alerts dropped after delivery failure",
		}),
		PriceErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerting",
			Name:      "price_errors_total",
			Help:      "Total number of failed price lookups",
		}),
		ArchiveErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerting",
			Name:      "archive_errors_total",
			Help:      "Total number of failed alert archive appends",
		}),

		TrackedTokens: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "tracked_tokens",
			Help:      "Current number of tracked token mints",
		}),

		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_duration_seconds",
			Help:      "Solana RPC call latency by method",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		EventHandlingLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "event_handling_duration_seconds",
			Help:      "Wall time to handle one log event end to end",
			Buckets:   prometheus.DefBuckets,
		}),

		LastEventUnixtime: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_event_unixtime",
			Help:      "Unix timestamp of the last log event received",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordEventReceived increments the received counter for a source.
func RecordEventReceived(source string) {
	DefaultMetrics.EventsReceived.WithLabelValues(source).Inc()
}

// RecordResolved increments the resolved transactions counter.
func RecordResolved() {
	DefaultMetrics.TransactionsResolved.Inc()
}

// RecordSkipped increments the skipped transactions counter.
func RecordSkipped() {
	DefaultMetrics.TransactionsSkipped.Inc()
}

// RecordDedupHit increments the dedup hit counter.
func RecordDedupHit() {
	DefaultMetrics.DedupHits.Inc()
}

// RecordBuyDetected increments the buys detected counter.
func RecordBuyDetected() {
	DefaultMetrics.BuysDetected.Inc()
}

// RecordAlertDispatched increments the dispatched alerts counter.
func RecordAlertDispatched() {
	DefaultMetrics.AlertsDispatched.Inc()
}

// RecordDispatchError increments the dispatch error counter.
func RecordDispatchError() {
	DefaultMetrics.DispatchErrors.Inc()
}

// RecordPriceError increments the price lookup error counter.
func RecordPriceError() {
	DefaultMetrics.PriceErrors.Inc()
}

// RecordArchiveError increments the archive append error counter.
func RecordArchiveError() {
	DefaultMetrics.ArchiveErrors.Inc()
}

// UpdateTrackedTokens sets the tracked tokens gauge.
func UpdateTrackedTokens(n int) {
	DefaultMetrics.TrackedTokens.Set(float64(n))
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordEventHandling records the handling time of one event.
func RecordEventHandling(seconds float64) {
	DefaultMetrics.EventHandlingLatency.Observe(seconds)
}

// MarkEventSeen updates the last event timestamp gauge.
func MarkEventSeen(unixtime int64) {
	DefaultMetrics.LastEventUnixtime.Set(float64(unixtime))
}
