// Package metrics provides observability for the notification module.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks notice creation, live delivery outcomes, and the number of
// open push connections. Components accept a nil *Metrics and skip recording.
type Metrics struct {
	NoticesCreated  *prometheus.CounterVec
	PushesDelivered prometheus.Counter
	PushesFailed    prometheus.Counter
	OpenConnections prometheus.Gauge
	ListDuration    prometheus.Histogram
}

// New creates a Metrics instance with all notification metrics registered on
// the default registry. Construct once per process.
func New() *Metrics {
	return &Metrics{
		NoticesCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "famlink_notices_created_total",
			Help: "Total number of notifications appended to the log",
		}, []string{"kind"}),
		PushesDelivered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "famlink_pushes_delivered_total",
			Help: "Total number of events delivered to live connections",
		}),
		PushesFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "famlink_pushes_failed_total",
			Help: "Total number of connection-local delivery failures",
		}),
		OpenConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "famlink_open_connections",
			Help: "Number of live push connections currently registered",
		}),
		ListDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "famlink_list_notices_duration_seconds",
			Help:    "Duration of notice listing including the read-marking side effect",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// NoticeCreated records a successful append of the given kind.
func (m *Metrics) NoticeCreated(kind string) {
	m.NoticesCreated.WithLabelValues(kind).Inc()
}

// PushDelivered records one event written to one live connection.
func (m *Metrics) PushDelivered() {
	m.PushesDelivered.Inc()
}

// PushFailed records one connection-local delivery failure.
func (m *Metrics) PushFailed() {
	m.PushesFailed.Inc()
}

// ConnectionOpened records a connection entering the registry.
func (m *Metrics) ConnectionOpened() {
	m.OpenConnections.Inc()
}

// ConnectionClosed records a connection leaving the registry.
func (m *Metrics) ConnectionClosed() {
	m.OpenConnections.Dec()
}

// ObserveList records the duration of a listing operation.
// Call with time.Now() captured at the start.
func (m *Metrics) ObserveList(start time.Time) {
	m.ListDuration.Observe(time.Since(start).Seconds())
}
