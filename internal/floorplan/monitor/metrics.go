package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/banshee-data/floorplan.report/internal/floorplan/pipeline"
)

// Run outcomes recorded in floorplan_runs_total.
const (
	StatusOK      = "ok"
	StatusInvalid = "invalid"
	StatusError   = "error"
)

// Metrics are the prometheus collectors of one server. They are registered
// on the registry passed to NewMetrics, never on the global default.
type Metrics struct {
	Runs          *prometheus.CounterVec
	Walls         prometheus.Histogram
	Points        prometheus.Histogram
	StageDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "floorplan_runs_total",
				Help: "Pipeline runs by detection method and outcome",
			},
			[]string{"method", "status"},
		),
		Walls: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "floorplan_walls_detected",
			Help:    "Walls in each finished floor plan",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64},
		}),
		Points: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "floorplan_slice_points",
			Help:    "Points kept by the slice box in each run",
			Buckets: prometheus.ExponentialBuckets(100, 4, 8),
		}),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "floorplan_stage_duration_seconds",
				Help:    "Time spent in each pipeline stage",
				Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
			},
			[]string{"stage"},
		),
	}
	reg.MustRegister(m.Runs, m.Walls, m.Points, m.StageDuration)
	return m
}

// ObserveStage is a pipeline.StageObserver.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordRun counts one run. A nil res (a run that failed before producing a
// plan) is counted under method "none".
func (m *Metrics) RecordRun(res *pipeline.Result, status string) {
	method := "none"
	if res != nil && res.Plan != nil {
		method = res.Plan.Metadata.DetectionMethod
		m.Walls.Observe(float64(len(res.Plan.Walls)))
		m.Points.Observe(float64(res.Plan.Metadata.PointCount))
	}
	m.Runs.WithLabelValues(method, status).Inc()
}
