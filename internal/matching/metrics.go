package matching

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	batchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grantmatch",
		Subsystem: "scorer",
		Name:      "batches_total",
		Help:      "Scored batches by outcome (scored, partial, neutral)",
	}, []string{"outcome"})

	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "grantmatch",
		Subsystem: "scorer",
		Name:      "retries_total",
		Help:      "Completion attempts repeated after a rate limit or timeout",
	})

	cacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grantmatch",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Result cache lookups by result (hit, miss)",
	}, []string{"result"})

	interpreterFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "grantmatch",
		Subsystem: "interpreter",
		Name:      "fallbacks_total",
		Help:      "Queries interpreted with the keyword fallback",
	})

	searchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "grantmatch",
		Subsystem: "search",
		Name:      "latency_seconds",
		Help:      "End-to-end search latency",
		Buckets:   []float64{0.05, 0.25, 1, 2.5, 5, 10, 30, 60},
	})

	candidatesPerSearch = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "grantmatch",
		Subsystem: "search",
		Name:      "candidates",
		Help:      "Candidate grants fetched per search",
		Buckets:   []float64{0, 5, 10, 25, 50, 100, 250},
	})
)
