package gateway

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/c50bossio/6fb-booking-sub001/internal/domain"
)

var (
	// AdapterCallsTotal counts provider calls by gateway, operation and outcome.
	AdapterCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_gateway_calls_total",
			Help: "Total number of payment provider API calls",
		},
		[]string{"gateway", "operation", "outcome"},
	)

	// AdapterCallDuration observes provider call latency.
	AdapterCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_gateway_call_duration_seconds",
			Help:    "Duration of payment provider API calls in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30},
		},
		[]string{"gateway", "operation"},
	)
)

// ObserveCall records one provider call. outcome is "success" or the error code.
func ObserveCall(gw domain.GatewayType, operation string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = domain.ErrorCode(err)
		if outcome == "" {
			outcome = domain.CodeUnexpectedError
		}
	}
	AdapterCallsTotal.WithLabelValues(gw.String(), operation, outcome).Inc()
	AdapterCallDuration.WithLabelValues(gw.String(), operation).Observe(time.Since(start).Seconds())
}
