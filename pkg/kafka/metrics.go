package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	outcomeOK           = "ok"
	outcomeError        = "error"
	outcomeDuplicate    = "duplicate"
	outcomeDeadLettered = "dead_lettered"
)

var (
	publishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_published_total",
		Help: "Domain events handed to the broker, by topic and outcome.",
	}, []string{"topic", "outcome"})

	publishDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "events_publish_duration_seconds",
		Help:    "Time spent writing one event to the broker.",
		Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
	}, []string{"topic"})

	consumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_consumed_total",
		Help: "Events read by a consumer group, by outcome.",
	}, []string{"topic", "consumer_group", "outcome"})
)
