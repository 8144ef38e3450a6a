package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the collector.
// A nil *Metrics is valid and records nothing, so tests and tools that do
// not scrape can skip construction entirely.
type Metrics struct {
	// Ingestion metrics
	ObservationsAccepted  *prometheus.CounterVec
	ObservationsDuplicate prometheus.Counter
	ObservationsRejected  prometheus.Counter

	// Feed metrics
	FeedConnected     prometheus.Gauge
	FeedErrors        *prometheus.CounterVec
	EndpointRotations prometheus.Counter
	PollCycleDuration prometheus.Histogram

	// Tier metrics
	BufferSize        prometheus.Gauge
	StoreRecords      prometheus.Gauge
	StoreFlushes      prometheus.Counter
	StoreFlushErrors  prometheus.Counter
	ObservationsSwept *prometheus.CounterVec

	// Query metrics
	Queries *prometheus.CounterVec

	// HTTP metrics
	RequestDuration *prometheus.HistogramVec
}

// New creates a Metrics instance with all metrics registered on the default
// registry. Call once per process.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "pricevault"
	}

	return &Metrics{
		ObservationsAccepted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "observations_accepted_total",
			Help:      "Total observations accepted, by symbol",
		}, []string{"symbol"}),
		ObservationsDuplicate: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "observations_duplicate_total",
			Help:      "Total observations dropped as duplicates",
		}),
		ObservationsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "observations_rejected_total",
			Help:      "Total observations rejected by validation",
		}),

		FeedConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "connected",
			Help:      "1 when the push feed subscription is live",
		}),
		FeedErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "errors_total",
			Help:      "Total feed errors by class",
		}, []string{"class"}),
		EndpointRotations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "endpoint_rotations_total",
			Help:      "Total failover rotations between upstream endpoints",
		}),
		PollCycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "poll_cycle_duration_seconds",
			Help:      "Duration of one full poll cycle across symbols",
			Buckets:   prometheus.DefBuckets,
		}),

		BufferSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "buffer",
			Name:      "observations",
			Help:      "Observations currently held in the memory tier",
		}),
		StoreRecords: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "records",
			Help:      "Observations currently held in the durable tier",
		}),
		StoreFlushes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "flushes_total",
			Help:      "Total snapshot flushes to disk",
		}),
		StoreFlushErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "flush_errors_total",
			Help:      "Total failed snapshot flushes",
		}),
		ObservationsSwept: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reaper",
			Name:      "observations_swept_total",
			Help:      "Total observations removed by retention sweeps, by tier",
		}, []string{"tier"}),

		Queries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "lookups_total",
			Help:      "Total point lookups by result (memory, durable, miss)",
		}, []string{"result"}),

		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route and status",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAccepted counts one accepted observation.
func (m *Metrics) RecordAccepted(symbol string) {
	if m == nil {
		return
	}
	m.ObservationsAccepted.WithLabelValues(symbol).Inc()
}

// RecordDuplicate counts one deduplicated observation.
func (m *Metrics) RecordDuplicate() {
	if m == nil {
		return
	}
	m.ObservationsDuplicate.Inc()
}

// RecordRejected counts one rejected observation.
func (m *Metrics) RecordRejected() {
	if m == nil {
		return
	}
	m.ObservationsRejected.Inc()
}

// RecordFeedError counts one feed error by class.
func (m *Metrics) RecordFeedError(class string) {
	if m == nil {
		return
	}
	m.FeedErrors.WithLabelValues(class).Inc()
}

// SetFeedConnected records the push-feed connection state.
func (m *Metrics) SetFeedConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.FeedConnected.Set(1)
	} else {
		m.FeedConnected.Set(0)
	}
}

// RecordRotation counts one failover endpoint rotation.
func (m *Metrics) RecordRotation() {
	if m == nil {
		return
	}
	m.EndpointRotations.Inc()
}

// ObservePollCycle records one poll cycle duration.
func (m *Metrics) ObservePollCycle(seconds float64) {
	if m == nil {
		return
	}
	m.PollCycleDuration.Observe(seconds)
}

// SetTierSizes records current buffer and store occupancy.
func (m *Metrics) SetTierSizes(buffered, stored int) {
	if m == nil {
		return
	}
	m.BufferSize.Set(float64(buffered))
	m.StoreRecords.Set(float64(stored))
}

// RecordSwept counts observations removed by a retention sweep.
func (m *Metrics) RecordSwept(tier string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.ObservationsSwept.WithLabelValues(tier).Add(float64(n))
}

// RecordQuery counts one lookup by result.
func (m *Metrics) RecordQuery(result string) {
	if m == nil {
		return
	}
	m.Queries.WithLabelValues(result).Inc()
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(route, status).Observe(seconds)
}
