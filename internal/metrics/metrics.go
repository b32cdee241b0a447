// Package metrics exposes run progress as Prometheus collectors and a small
// status HTTP server.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/gurnoornatt/supergoodleadgen/internal/model"
)

const namespace = "leadgen"

// Metrics records pipeline progress. The zero value is not usable; call New.
type Metrics struct {
	registry *prometheus.Registry

	records          *prometheus.CounterVec
	qualifications   *prometheus.CounterVec
	renderFailures   *prometheus.CounterVec
	renderSeconds    prometheus.Histogram
	rendersInFlight  prometheus.Gauge
	checkpointErrors prometheus.Counter
	resumed          prometheus.Counter

	mu      sync.RWMutex
	summary *model.RunSummary
}

// New creates Metrics on a fresh registry so repeated construction in tests
// never collides.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Records emitted, by terminal render status.",
		}, []string{"render_status"}),
		qualifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "qualification_total",
			Help:      "Records emitted, by qualification verdict.",
		}, []string{"qualification"}),
		renderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_failures_total",
			Help:      "Failed renders, by failure kind.",
		}, []string{"kind"}),
		renderSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Time to render a website, successful renders only.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
		}),
		rendersInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "renders_in_flight",
			Help:      "Renders currently running.",
		}),
		checkpointErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoint_errors_total",
			Help:      "Checkpoint writes that failed.",
		}),
		resumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resumed_total",
			Help:      "Records reused from the checkpoint without rendering.",
		}),
	}

	m.registry.MustRegister(
		m.records, m.qualifications, m.renderFailures, m.renderSeconds,
		m.rendersInFlight, m.checkpointErrors, m.resumed,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry backing these metrics.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RenderStarted marks a render as in flight.
func (m *Metrics) RenderStarted() { m.rendersInFlight.Inc() }

// RenderFinished records the outcome of an in-flight render.
func (m *Metrics) RenderFinished(outcome model.RenderOutcome) {
	m.rendersInFlight.Dec()
	switch o := outcome.(type) {
	case model.Rendered:
		if o.Page != nil {
			m.renderSeconds.Observe(o.Page.Elapsed.Seconds())
		}
	case model.Failed:
		m.renderFailures.WithLabelValues(string(o.Kind)).Inc()
	}
}

// RecordEmitted counts one emitted record.
func (m *Metrics) RecordEmitted(rec *model.LeadRecord) {
	m.records.WithLabelValues(string(rec.RenderStatus)).Inc()
	if rec.Qualification != "" {
		m.qualifications.WithLabelValues(string(rec.Qualification)).Inc()
	}
	if rec.Resumed {
		m.resumed.Inc()
	}
}

// CheckpointFailed counts a failed checkpoint write.
func (m *Metrics) CheckpointFailed() { m.checkpointErrors.Inc() }

// SetSummary publishes the latest run summary for /status.
func (m *Metrics) SetSummary(s *model.RunSummary) {
	c := s.Clone()
	m.mu.Lock()
	m.summary = c
	m.mu.Unlock()
}

// Summary returns the last published summary, or nil.
func (m *Metrics) Summary() *model.RunSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.summary == nil {
		return nil
	}
	return m.summary.Clone()
}
