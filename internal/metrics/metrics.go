// Package metrics owns the prometheus collectors for the deep-link loader.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "doulaboard"

// Fetch results recorded by ObserveFetch.
const (
	FetchFound     = "found"
	FetchNotFound  = "not_found"
	FetchError     = "error"
	FetchCancelled = "cancelled"
)

// Loader holds the deep-link loader collectors. A nil *Loader records nothing.
type Loader struct {
	outcomes     *prometheus.CounterVec
	fetchSeconds *prometheus.HistogramVec
	sessions     prometheus.Gauge
}

// NewRegistry returns a registry carrying the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewLoader creates the loader collectors and registers them with reg.
func NewLoader(reg prometheus.Registerer) *Loader {
	l := &Loader{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deeplink",
			Name:      "outcomes_total",
			Help:      "Deep-link resolutions by terminal state.",
		}, []string{"outcome"}),
		fetchSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "deeplink",
			Name:      "fetch_seconds",
			Help:      "Latency of fetch-by-id calls issued by the loader.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "deeplink",
			Name:      "sessions",
			Help:      "Mounted deep-link loader sessions.",
		}),
	}
	if reg != nil {
		reg.MustRegister(l.outcomes, l.fetchSeconds, l.sessions)
	}
	return l
}

// ObserveOutcome counts a loader reaching a terminal state.
func (l *Loader) ObserveOutcome(outcome string) {
	if l == nil {
		return
	}
	l.outcomes.WithLabelValues(outcome).Inc()
}

// ObserveFetch records a completed fetch.
func (l *Loader) ObserveFetch(d time.Duration, result string) {
	if l == nil {
		return
	}
	l.fetchSeconds.WithLabelValues(result).Observe(d.Seconds())
}

// SessionOpened increments the mounted-session gauge.
func (l *Loader) SessionOpened() {
	if l == nil {
		return
	}
	l.sessions.Inc()
}

// SessionClosed decrements the mounted-session gauge.
func (l *Loader) SessionClosed() {
	if l == nil {
		return
	}
	l.sessions.Dec()
}
