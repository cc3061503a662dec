package manager

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeAccepted  = "accepted"
	outcomeDuplicate = "duplicate"
	outcomeRejected  = "rejected"
)

var (
	failoversTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_gateway_failovers_total",
			Help: "Total number of failovers from one gateway to the next",
		},
		[]string{"from", "to"},
	)

	webhooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_gateway_webhooks_total",
			Help: "Total number of received webhooks by gateway and outcome",
		},
		[]string{"gateway", "outcome"},
	)

	healthChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_gateway_health_checks_total",
			Help: "Total number of gateway health probes by result",
		},
		[]string{"gateway", "healthy"},
	)
)
