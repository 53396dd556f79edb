package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics groups the collectors exported by the optimization service.
type metrics struct {
	// jobsTotal counts finished jobs by terminal status
	jobsTotal *prometheus.CounterVec
	// jobsRunning tracks jobs that have started and not yet finished
	jobsRunning prometheus.Gauge
	// evaluations counts objective evaluations per objective
	evaluations *prometheus.CounterVec
	// iterations tracks the number of DIRECT iterations per finished job
	iterations *prometheus.HistogramVec
	// duration tracks the wall time of finished jobs
	duration *prometheus.HistogramVec
}

// newMetrics registers the service collectors with reg. A nil reg creates
// unregistered collectors.
func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		jobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "direct_jobs_total",
				Help: "The total number of finished optimization jobs",
			},
			[]string{"objective", "status"},
		),
		jobsRunning: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "direct_jobs_running",
				Help: "The number of optimization jobs currently running",
			},
		),
		evaluations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "direct_objective_evaluations_total",
				Help: "The total number of objective function evaluations",
			},
			[]string{"objective"},
		),
		iterations: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "direct_job_iterations",
				Help:    "The number of DIRECT iterations run by finished jobs",
				Buckets: prometheus.ExponentialBuckets(1, 2, 14), // From 1 to 8192
			},
			[]string{"objective"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "direct_job_duration_seconds",
				Help:    "The duration of optimization jobs in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 16), // From 1ms to ~33s
			},
			[]string{"objective"},
		),
	}
}
