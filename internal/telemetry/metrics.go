// Package telemetry holds the Prometheus instruments shared by the event
// log, the resource caches and the timelapse renderer.
//
// Every method is safe on a nil *Metrics so components can run without
// instrumentation in tests.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pixelarts"

// Metrics groups all collectors. Create one per process with New.
type Metrics struct {
	LogAppends     *prometheus.CounterVec
	LogRemovals    prometheus.Counter
	CacheLookups   *prometheus.CounterVec
	CacheCreations *prometheus.CounterVec
	CacheEvictions *prometheus.CounterVec
	CacheEntries   *prometheus.GaugeVec
	RenderRuns     *prometheus.CounterVec
	RenderFrames   prometheus.Counter
	RenderDuration prometheus.Histogram
}

// New registers all collectors with reg. A nil reg creates unregistered
// collectors, which is what tests usually want.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LogAppends: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "log",
			Name:      "appends_total",
			Help:      "Event log entries appended, by kind (snapshot|delta).",
		}, []string{"kind"}),
		LogRemovals: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "log",
			Name:      "removals_total",
			Help:      "Event log entries removed by undo.",
		}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by cache name and result (hit|miss).",
		}, []string{"cache", "result"}),
		CacheCreations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "creations_total",
			Help:      "Resource creations by cache name and result (ok|error).",
		}, []string{"cache", "result"}),
		CacheEvictions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Capacity evictions by cache name.",
		}, []string{"cache"}),
		CacheEntries: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Current number of cached resources.",
		}, []string{"cache"}),
		RenderRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "runs_total",
			Help:      "Timelapse requests by outcome (ok|reused|empty|error).",
		}, []string{"outcome"}),
		RenderFrames: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "frames_total",
			Help:      "Raw frames written to the encoder.",
		}),
		RenderDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "duration_seconds",
			Help:      "Wall time of successful encoder runs.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}
}

// Append counts one log append of the given kind.
func (m *Metrics) Append(kind string) {
	if m == nil {
		return
	}
	m.LogAppends.WithLabelValues(kind).Inc()
}

// Removal counts one undo removal.
func (m *Metrics) Removal() {
	if m == nil {
		return
	}
	m.LogRemovals.Inc()
}

// Lookup counts a cache lookup.
func (m *Metrics) Lookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(cache, result).Inc()
}

// Creation counts a resource creation attempt.
func (m *Metrics) Creation(cache string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.CacheCreations.WithLabelValues(cache, result).Inc()
}

// Eviction counts a capacity eviction.
func (m *Metrics) Eviction(cache string) {
	if m == nil {
		return
	}
	m.CacheEvictions.WithLabelValues(cache).Inc()
}

// Entries records the current cache size.
func (m *Metrics) Entries(cache string, n int) {
	if m == nil {
		return
	}
	m.CacheEntries.WithLabelValues(cache).Set(float64(n))
}

// Render counts a timelapse request outcome.
func (m *Metrics) Render(outcome string) {
	if m == nil {
		return
	}
	m.RenderRuns.WithLabelValues(outcome).Inc()
}

// Frames counts frames written to an encoder.
func (m *Metrics) Frames(n int) {
	if m == nil {
		return
	}
	m.RenderFrames.Add(float64(n))
}

// RenderTook records an encoder run's duration.
func (m *Metrics) RenderTook(d time.Duration) {
	if m == nil {
		return
	}
	m.RenderDuration.Observe(d.Seconds())
}
