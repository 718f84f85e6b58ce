package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailcore_job_duration_seconds",
			Help:    "Duration of scheduled job runs.",
			Buckets: []float64{0.05, 0.25, 1, 5, 15, 60, 300, 900},
		},
		[]string{"job"},
	)
	metricJobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailcore_job_runs_total",
			Help: "Scheduled job runs by result.",
		},
		[]string{"job", "result"},
	)
)
