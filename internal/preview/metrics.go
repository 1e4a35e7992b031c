package preview

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records render outcomes per category.
type Metrics struct {
	renders  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the preview collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		renders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preview_renders_total",
				Help: "Preview renders by category and outcome (rendered, error, unsupported).",
			},
			[]string{"category", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "preview_render_duration_seconds",
				Help:    "Time spent rendering previews, placeholders included.",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"category"},
		),
	}
	for _, c := range []prometheus.Collector{m.renders, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(c Category, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.renders.WithLabelValues(c.metricLabel(), outcome).Inc()
	m.duration.WithLabelValues(c.metricLabel()).Observe(d.Seconds())
}
