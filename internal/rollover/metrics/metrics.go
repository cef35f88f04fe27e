// Package metrics exposes Prometheus collectors for period rollovers.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomePreviewed = "previewed"
)

type Metrics struct {
	Rollovers        *prometheus.CounterVec
	Duration         prometheus.Histogram
	StageDuration    *prometheus.HistogramVec
	SectionsMapped   *prometheus.CounterVec
	SectionsUnmapped prometheus.Counter
	DataPointsCopied prometheus.Counter
	InactiveOwners   prometheus.Counter
	LockRejections   prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Rollovers: f.NewCounterVec(prometheus.CounterOpts{
			Name: "esgledger_rollovers_total",
			Help: "Rollover operations by outcome",
		}, []string{"outcome"}),
		Duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "esgledger_rollover_duration_seconds",
			Help:    "Duration of committed rollovers",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "esgledger_rollover_stage_duration_seconds",
			Help:    "Duration of each copy stage",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"stage"}),
		SectionsMapped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "esgledger_rollover_sections_mapped_total",
			Help: "Source sections mapped to a target section by method",
		}, []string{"method"}),
		SectionsUnmapped: f.NewCounter(prometheus.CounterOpts{
			Name: "esgledger_rollover_sections_unmapped_total",
			Help: "Source sections left unmapped by committed rollovers",
		}),
		DataPointsCopied: f.NewCounter(prometheus.CounterOpts{
			Name: "esgledger_rollover_data_points_copied_total",
			Help: "Data points written into target periods",
		}),
		InactiveOwners: f.NewCounter(prometheus.CounterOpts{
			Name: "esgledger_rollover_inactive_owner_warnings_total",
			Help: "Inactive owner warnings raised by committed rollovers",
		}),
		LockRejections: f.NewCounter(prometheus.CounterOpts{
			Name: "esgledger_rollover_lock_rejections_total",
			Help: "Rollovers rejected because the source period was busy",
		}),
	}
}

func (m *Metrics) IncOutcome(outcome string) {
	if m != nil {
		m.Rollovers.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObserveDuration(d time.Duration) {
	if m != nil {
		m.Duration.Observe(d.Seconds())
	}
}

// ObserveStage matches copier.WithStageObserver.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m != nil {
		m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	}
}

func (m *Metrics) AddMapped(method string, n int) {
	if m != nil && n > 0 {
		m.SectionsMapped.WithLabelValues(method).Add(float64(n))
	}
}

func (m *Metrics) AddUnmapped(n int) {
	if m != nil && n > 0 {
		m.SectionsUnmapped.Add(float64(n))
	}
}

func (m *Metrics) AddDataPointsCopied(n int) {
	if m != nil && n > 0 {
		m.DataPointsCopied.Add(float64(n))
	}
}

func (m *Metrics) AddInactiveOwners(n int) {
	if m != nil && n > 0 {
		m.InactiveOwners.Add(float64(n))
	}
}

func (m *Metrics) IncLockRejected() {
	if m != nil {
		m.LockRejections.Inc()
	}
}
