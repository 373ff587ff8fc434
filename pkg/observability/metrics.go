package observability

import (
	"context"

	"github.com/aretw0/diagramflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the studio collectors.
type Metrics struct {
	transitions    *prometheus.CounterVec
	renders        *prometheus.CounterVec
	renderDuration prometheus.Histogram
	exports        *prometheus.CounterVec
	exportDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "diagramflow_transitions_total",
				Help: "Total number of session transitions by target status",
			},
			[]string{"status"},
		),
		renders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "diagramflow_renders_total",
				Help: "Total number of completed renders by outcome",
			},
			[]string{"outcome"},
		),
		renderDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "diagramflow_render_duration_seconds",
				Help:    "Duration of rendering engine calls",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
			},
		),
		exports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "diagramflow_exports_total",
				Help: "Total number of exports by format and outcome",
			},
			[]string{"format", "outcome"},
		),
		exportDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "diagramflow_export_duration_seconds",
				Help: "Duration of export pipelines",
			},
			[]string{"format"},
		),
	}

	for _, c := range []prometheus.Collector{m.transitions, m.renders, m.renderDuration, m.exports, m.exportDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks feeding the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			m.transitions.WithLabelValues(string(e.To)).Inc()
		},
		OnRenderDone: func(_ context.Context, e *domain.RenderEvent) {
			m.renders.WithLabelValues(outcome(e.Err, e.Stale)).Inc()
			m.renderDuration.Observe(e.Duration.Seconds())
		},
		OnExportDone: func(_ context.Context, e *domain.ExportEvent) {
			m.exports.WithLabelValues(string(e.Format), outcome(e.Err, false)).Inc()
			m.exportDuration.WithLabelValues(string(e.Format)).Observe(e.Duration.Seconds())
		},
	}
}

func outcome(err error, stale bool) string {
	switch {
	case stale:
		return "stale"
	case err != nil:
		return "error"
	}
	return "ok"
}
