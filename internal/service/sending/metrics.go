package sending

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Send outcomes.
const (
	resultSent    = "sent"
	resultSandbox = "sandbox"
	resultBlocked = "blocked"
	resultFailed  = "failed"
)

var metricSend = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mailcore_send_total",
		Help: "Send attempts by outcome.",
	},
	[]string{"result"},
)
