package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Publish outcomes recorded on EventsPublished.
const (
	resultOK    = "ok"
	resultError = "error"
)

var (
	// EventsPublished counts publish attempts by topic and outcome.
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paygate",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Gateway events handed to Kafka, by topic and result.",
		},
		[]string{"topic", "result"},
	)

	// PublishDuration observes how long the writer took to accept a message.
	PublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "paygate",
			Subsystem: "events",
			Name:      "publish_duration_seconds",
			Help:      "Kafka write latency for gateway events.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"topic"},
	)
)
