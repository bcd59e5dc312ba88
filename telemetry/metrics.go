package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "worldweaver"

// Metrics holds the runtime's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry   *prometheus.Registry
	selections *prometheus.CounterVec
	eligible   prometheus.Histogram
	moves      *prometheus.CounterVec
	placements prometheus.Counter
	sessions   prometheus.Gauge
}

// NewMetrics registers the collectors on a fresh registry, together with
// the Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selections_total",
			Help:      "Fragment selections by outcome.",
		}, []string{"outcome"}),
		eligible: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "eligible_fragments",
			Help:      "Number of fragments eligible per selection.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
		moves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moves_total",
			Help:      "Directional moves by result.",
		}, []string{"result"}),
		placements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layout_placements_total",
			Help:      "Fragments placed on the layout grid.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions live in the registry.",
		}),
	}
	reg.MustRegister(
		m.selections, m.eligible, m.moves, m.placements, m.sessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Selection records one selector run.
func (m *Metrics) Selection(outcome string, eligible int) {
	if m == nil {
		return
	}
	m.selections.WithLabelValues(outcome).Inc()
	m.eligible.Observe(float64(eligible))
}

// Move records one directional move attempt.
func (m *Metrics) Move(result string) {
	if m == nil {
		return
	}
	m.moves.WithLabelValues(result).Inc()
}

// Placed records n new layout placements.
func (m *Metrics) Placed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.placements.Add(float64(n))
}

// SessionOpened and SessionClosed track the live session count.
func (m *Metrics) SessionOpened() {
	if m != nil {
		m.sessions.Inc()
	}
}

func (m *Metrics) SessionClosed() {
	if m != nil {
		m.sessions.Dec()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
