package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors for source fetches and probes. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	sourceFetches    *prometheus.CounterVec
	sourceCandidates *prometheus.GaugeVec
	probes           *prometheus.CounterVec
	probeLatency     prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sourceFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "proxyfinder",
			Name:      "source_fetches_total",
			Help:      "Source fetch attempts by outcome.",
		}, []string{"source", "outcome"}),
		sourceCandidates: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "proxyfinder",
			Name:      "source_candidates",
			Help:      "Candidates returned by the last fetch of each source.",
		}, []string{"source"}),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "proxyfinder",
			Name:      "probes_total",
			Help:      "Completed probes by outcome.",
		}, []string{"outcome"}),
		probeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "proxyfinder",
			Name:      "probe_latency_seconds",
			Help:      "Latency of successful probes.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
	}
	reg.MustRegister(m.sourceFetches, m.sourceCandidates, m.probes, m.probeLatency)
	return m
}

// ObserveSource records one source fetch.
func (m *Metrics) ObserveSource(source string, count int, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.sourceFetches.WithLabelValues(source, outcome).Inc()
	m.sourceCandidates.WithLabelValues(source).Set(float64(count))
}

// ObserveProbe records one probe outcome.
func (m *Metrics) ObserveProbe(valid bool, latency time.Duration) {
	if m == nil {
		return
	}
	if !valid {
		m.probes.WithLabelValues("invalid").Inc()
		return
	}
	m.probes.WithLabelValues("valid").Inc()
	m.probeLatency.Observe(latency.Seconds())
}
