package selector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	selectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_gateway_selections_total",
			Help: "Total number of gateway selections by gateway and strategy",
		},
		[]string{"gateway", "strategy"},
	)

	successRateGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "payment_gateway_success_rate",
			Help: "Exponential moving average of the gateway success rate",
		},
		[]string{"gateway"},
	)

	uptimeGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "payment_gateway_uptime",
			Help: "Gateway uptime from the last health check (1 up, 0 down)",
		},
		[]string{"gateway"},
	)

	responseTimeGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "payment_gateway_response_time_ms",
			Help: "Exponential moving average of the gateway response time in milliseconds",
		},
		[]string{"gateway"},
	)
)

func publish(m GatewayMetrics) {
	gw := m.Gateway.String()
	successRateGauge.WithLabelValues(gw).Set(m.SuccessRate)
	uptimeGauge.WithLabelValues(gw).Set(m.Uptime)
	responseTimeGauge.WithLabelValues(gw).Set(m.AverageResponseMs)
}
