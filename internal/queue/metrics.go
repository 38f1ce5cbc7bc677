package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runningGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "advisor_queue_running",
		Help: "Completion calls currently holding a queue slot.",
	})
	queuedGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "advisor_queue_pending",
		Help: "Completion calls waiting for a queue slot.",
	})
	timeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "advisor_queue_timeouts_total",
		Help: "Callers released with a timeout before their task finished.",
	})
	waitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "advisor_queue_wait_seconds",
		Help:    "Time spent waiting for a queue slot.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
	})
)
