// Package metrics holds the prometheus collectors for lastfm-events.
//
// Collectors are registered on a caller supplied registry rather than the
// global one, so tests and multiple servers in one process do not collide.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lastfm_events"

// Fetch kinds
const (
	KindListing = "listing"
	KindDetail  = "detail"
	KindArtist  = "artist"
)

// Metrics records fetch, cache and pipeline activity
type Metrics struct {
	fetches      *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	pipelineDur  prometheus.Histogram
	events       *prometheus.CounterVec
}

// New creates the collectors and registers them on reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{}
	m.fetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetches_total",
		Help:      "Pages fetched from the source site by kind and status",
	}, []string{"kind", "status"})
	m.cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Cache lookups by cache and result (hit or miss)",
	}, []string{"cache", "result"})
	m.pipelineDur = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pipeline_duration_seconds",
		Help:      "Time spent turning one listing into events",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	})
	m.events = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_total",
		Help:      "Listing rows by result (assembled or skipped)",
	}, []string{"result"})

	reg.MustRegister(m.fetches, m.cacheLookups, m.pipelineDur, m.events)
	return m
}

// Fetch counts one fetch of kind, labelled ok or error
func (m *Metrics) Fetch(kind string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.fetches.WithLabelValues(kind, status).Inc()
}

// CacheLookup counts one lookup in the named cache
func (m *Metrics) CacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(cache, result).Inc()
}

// PipelineRun observes the duration of a run started at start
func (m *Metrics) PipelineRun(start time.Time) {
	if m == nil {
		return
	}
	m.pipelineDur.Observe(time.Since(start).Seconds())
}

// EventAssembled counts an event returned to a caller
func (m *Metrics) EventAssembled() {
	if m == nil {
		return
	}
	m.events.WithLabelValues("assembled").Inc()
}

// EventSkipped counts a listing row dropped because it could not be resolved
func (m *Metrics) EventSkipped() {
	if m == nil {
		return
	}
	m.events.WithLabelValues("skipped").Inc()
}
