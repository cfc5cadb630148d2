package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iho/ledgerbook/internal/domain"
)

const namespace = "ledgerbook"

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Ledger metrics
	EntriesPosted  *prometheus.CounterVec
	PostDuration   prometheus.Histogram
	EngineErrors   *prometheus.CounterVec
	HistoryLatency prometheus.Histogram
	HistorySize    prometheus.Histogram

	// Reconciliation metrics
	ReconciliationRuns          prometheus.Counter
	ReconciliationDiscrepancies prometheus.Gauge

	// Outbox metrics
	OutboxPublished prometheus.Counter
	OutboxFailed    prometheus.Counter

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	HTTPInFlight prometheus.Gauge
}

// New creates all metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EntriesPosted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entries_posted_total",
				Help:      "Total number of ledger entries posted by accounting type",
			},
			[]string{"type"},
		),
		PostDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "entry_post_duration_seconds",
			Help:      "Duration of entry postings",
			Buckets:   prometheus.DefBuckets,
		}),
		EngineErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "engine_errors_total",
				Help:      "Total number of engine errors by operation and kind",
			},
			[]string{"operation", "kind"},
		),
		HistoryLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "history_query_duration_seconds",
			Help:      "Duration of history queries",
			Buckets:   prometheus.DefBuckets,
		}),
		HistorySize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "history_query_entries",
			Help:      "Number of entries returned by history queries",
			Buckets:   []float64{0, 1, 10, 100, 1000, 10000},
		}),

		ReconciliationRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliation_runs_total",
			Help:      "Total number of reconciliation runs",
		}),
		ReconciliationDiscrepancies: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reconciliation_discrepancies",
			Help:      "Accounts whose balance disagreed with their entries in the last run",
		}),

		OutboxPublished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_published_total",
			Help:      "Total number of outbox events published",
		}),
		OutboxFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_failed_total",
			Help:      "Total number of outbox publish failures",
		}),

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		HTTPInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		}),
	}
}

// ObserveEntryPosted records a successful posting.
func (m *Metrics) ObserveEntryPosted(typeCode domain.TypeCode, duration time.Duration) {
	m.EntriesPosted.WithLabelValues(string(typeCode)).Inc()
	m.PostDuration.Observe(duration.Seconds())
}

// ObserveHistoryQuery records a completed history query.
func (m *Metrics) ObserveHistoryQuery(entries int, duration time.Duration) {
	m.HistoryLatency.Observe(duration.Seconds())
	m.HistorySize.Observe(float64(entries))
}

// ObserveError counts a failed engine operation.
func (m *Metrics) ObserveError(operation string, err error) {
	m.EngineErrors.WithLabelValues(operation, ErrorKind(err)).Inc()
}

// ObserveReconciliation records the outcome of a reconciliation run.
func (m *Metrics) ObserveReconciliation(discrepancies int) {
	m.ReconciliationRuns.Inc()
	m.ReconciliationDiscrepancies.Set(float64(discrepancies))
}

// ObservePublished counts an outbox event handed to the broker.
func (m *Metrics) ObservePublished() {
	m.OutboxPublished.Inc()
}

// ObservePublishFailed counts an outbox event the broker rejected.
func (m *Metrics) ObservePublishFailed() {
	m.OutboxFailed.Inc()
}

// ObserveHTTPRequest records a served request.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RequestStarted and RequestFinished track in-flight requests.
func (m *Metrics) RequestStarted()  { m.HTTPInFlight.Inc() }
func (m *Metrics) RequestFinished() { m.HTTPInFlight.Dec() }

// ErrorKind maps an engine error to a low-cardinality label.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, domain.ErrUnknownTypeCode):
		return "unknown_type_code"
	case errors.Is(err, domain.ErrInvalidLimit):
		return "invalid_limit"
	case errors.Is(err, domain.ErrStorageFailure):
		return "storage"
	default:
		return "other"
	}
}
