package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomePartial  = "partial"
	OutcomeAborted  = "aborted"
	OutcomeRejected = "rejected"
)

// Upstream label values.
const (
	UpstreamTimeEdit = "timeedit"
	UpstreamCanvas   = "canvas"
)

// Metrics holds the collectors for one registry. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	sourceFetch     *prometheus.CounterVec
	publishEvents   *prometheus.CounterVec
	publishBatches  *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
}

// New registers the collectors on reg. Use prometheus.DefaultRegisterer in
// the binary and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		sourceFetch: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pulsesync_source_fetch_total",
			Help: "TimeEdit fetch-and-normalize calls by outcome (success or the failure kind).",
		}, []string{"outcome"}),
		publishEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pulsesync_publish_events_total",
			Help: "Canvas calendar events by publish outcome.",
		}, []string{"outcome"}),
		publishBatches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pulsesync_publish_batches_total",
			Help: "Publish batches by outcome.",
		}, []string{"outcome"}),
		upstreamLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pulsesync_upstream_request_seconds",
			Help:    "Round trip time of upstream HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"upstream"}),
	}
}

func (m *Metrics) SourceFetch(outcome string) {
	if m == nil {
		return
	}
	m.sourceFetch.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PublishEvent(outcome string) {
	if m == nil {
		return
	}
	m.publishEvents.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PublishBatch(outcome string) {
	if m == nil {
		return
	}
	m.publishBatches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveUpstream(upstream string, d time.Duration) {
	if m == nil {
		return
	}
	m.upstreamLatency.WithLabelValues(upstream).Observe(d.Seconds())
}

// UpstreamObserver returns a callback suitable for canvas.ClientConfig.Observe.
func (m *Metrics) UpstreamObserver(upstream string) func(time.Duration) {
	return func(d time.Duration) {
		m.ObserveUpstream(upstream, d)
	}
}
