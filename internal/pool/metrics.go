package pool

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "savekit_pool_jobs_total",
		Help: "Jobs finished by the worker pool, by result",
	}, []string{"result"})

	busyLanes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "savekit_pool_busy_lanes",
		Help: "Lanes currently running a job",
	})
)
