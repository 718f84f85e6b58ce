package logingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricLines = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mailcore_log_lines_total",
		Help: "Postfix log lines processed by event.",
	},
	[]string{"event"},
)
