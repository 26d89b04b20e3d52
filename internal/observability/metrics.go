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
	// Ingestion metrics
	CandlesProcessed  *prometheus.CounterVec
	StaleCandles      prometheus.Counter
	IngestionErrors   *prometheus.CounterVec
	LastCandleCloseMs prometheus.Gauge

	// Detection metrics
	SignalsDetected  *prometheus.CounterVec
	SignalConfidence prometheus.Histogram

	// Evaluation metrics
	TradesSimulated    *prometheus.CounterVec
	PendingEvaluations prometheus.Gauge

	// Promotion metrics
	BotsByStage      *prometheus.GaugeVec
	StageTransitions *prometheus.CounterVec
	ScansTotal       prometheus.Counter

	// Sink metrics
	SinkQueueDepth prometheus.Gauge
	SinkDropped    prometheus.Counter
	SinkDegraded   prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	UptimeSeconds prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "pump_strategy_lab"
	}

	return &Metrics{
		// Ingestion metrics
		CandlesProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "candles_processed_total",
			Help:      "Total number of closed candles processed",
		}, []string{"symbol"}),
		StaleCandles: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "stale_candles_total",
			Help:      "Total number of out-of-order candles dropped",
		}),
		IngestionErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "errors_total",
			Help:      "Total number of ingestion errors by type",
		}, []string{"error_type"}),
		LastCandleCloseMs: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "last_candle_close_ms",
			Help:      "Close time of the newest processed candle (Unix ms)",
		}),

		// Detection metrics
		SignalsDetected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "signals_detected_total",
			Help:      "Total number of pump signals detected by direction",
		}, []string{"direction"}),
		SignalConfidence: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "signal_confidence",
			Help:      "Confidence score of emitted signals",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),

		// Evaluation metrics
		TradesSimulated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "trades_simulated_total",
			Help:      "Total number of simulated trades by exit reason",
		}, []string{"exit_reason"}),
		PendingEvaluations: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "pending_evaluations",
			Help:      "Signals waiting for their evaluation horizon to fill",
		}),

		// Promotion metrics
		BotsByStage: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "promotion",
			Name:      "bots",
			Help:      "Number of bots by stage",
		}, []string{"stage"}),
		StageTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "promotion",
			Name:      "stage_transitions_total",
			Help:      "Total number of stage transitions",
		}, []string{"from", "to"}),
		ScansTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "promotion",
			Name:      "scans_total",
			Help:      "Total number of promotion scans",
		}),

		// Sink metrics
		SinkQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "queue_depth",
			Help:      "Current number of records queued for persistence",
		}),
		SinkDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "records_dropped_total",
			Help:      "Total number of records dropped by backpressure",
		}),
		SinkDegraded: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "degraded",
			Help:      "1 when the repository sink is in degraded mode",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
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

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordCandleProcessed increments the candle counter and moves the
// freshness gauge.
func RecordCandleProcessed(symbol string, closeTime int64) {
	DefaultMetrics.CandlesProcessed.WithLabelValues(symbol).Inc()
	DefaultMetrics.LastCandleCloseMs.Set(float64(closeTime))
}

// RecordStaleCandle increments the stale candle counter.
func RecordStaleCandle() {
	DefaultMetrics.StaleCandles.Inc()
}

// RecordSignal records a detected pump signal.
func RecordSignal(direction string, confidence float64) {
	DefaultMetrics.SignalsDetected.WithLabelValues(direction).Inc()
	DefaultMetrics.SignalConfidence.Observe(confidence)
}

// RecordTradeSimulated increments the simulated trade counter.
func RecordTradeSimulated(exitReason string) {
	DefaultMetrics.TradesSimulated.WithLabelValues(exitReason).Inc()
}

// UpdatePendingEvaluations updates the pending evaluation gauge.
func UpdatePendingEvaluations(n int) {
	DefaultMetrics.PendingEvaluations.Set(float64(n))
}

// RecordTransition records a stage transition.
func RecordTransition(from, to string) {
	DefaultMetrics.StageTransitions.WithLabelValues(from, to).Inc()
}

// UpdateBotCounts updates the bots-by-stage gauges.
func UpdateBotCounts(byStage map[string]int) {
	for stage, n := range byStage {
		DefaultMetrics.BotsByStage.WithLabelValues(stage).Set(float64(n))
	}
}

// UpdateSinkState updates the sink gauges and drop counter to the given
// absolute values.
func UpdateSinkState(queueDepth int, degraded bool) {
	DefaultMetrics.SinkQueueDepth.Set(float64(queueDepth))
	if degraded {
		DefaultMetrics.SinkDegraded.Set(1)
	} else {
		DefaultMetrics.SinkDegraded.Set(0)
	}
}

// AddSinkDrops adds newly observed dropped records to the counter.
func AddSinkDrops(n uint64) {
	DefaultMetrics.SinkDropped.Add(float64(n))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
