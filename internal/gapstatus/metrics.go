package gapstatus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for gap-status transitions.
type Metrics struct {
	Transitions *prometheus.CounterVec
	Rejections  *prometheus.CounterVec
	Duration    prometheus.Histogram
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "esgledger_gap_status_transitions_total",
			Help: "Executed gap-status transitions by from and to status",
		}, []string{"from", "to"}),
		Rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "esgledger_gap_status_rejections_total",
			Help: "Rejected gap-status transition requests by error code",
		}, []string{"code"}),
		Duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "esgledger_gap_status_transition_duration_seconds",
			Help:    "Duration of successful gap-status transitions",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncTransition(from, to string) {
	if m != nil {
		m.Transitions.WithLabelValues(from, to).Inc()
	}
}

func (m *Metrics) IncRejected(code string) {
	if m != nil {
		m.Rejections.WithLabelValues(code).Inc()
	}
}

func (m *Metrics) ObserveDuration(d time.Duration) {
	if m != nil {
		m.Duration.Observe(d.Seconds())
	}
}
