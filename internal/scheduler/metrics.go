package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gswatch_ticks_total",
		Help: "Completed query ticks.",
	})

	probesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gswatch_probes_total",
		Help: "Endpoint probes by outcome.",
	}, []string{"result"})

	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gswatch_tick_duration_seconds",
		Help:    "Wall-clock duration of a full query tick.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})
)
