package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "advisor_chat_requests_total",
		Help: "Chat requests by answer source and outcome.",
	}, []string{"source", "outcome"})
	requestSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "advisor_chat_request_seconds",
		Help:    "End to end chat latency by answer source.",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})
	tokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "advisor_llm_tokens_total",
		Help: "Tokens consumed by completion calls.",
	}, []string{"model"})
)
