package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "advisor_cache_lookups_total",
		Help: "Response cache lookups by result.",
	}, []string{"result"})
	savesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "advisor_cache_saves_total",
		Help: "Answers written to the response cache.",
	})
)
