package vault

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	depositsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vault",
			Name:      "deposits_total",
			Help:      "Total number of committed deposits by entry path",
		},
		[]string{"path"},
	)
	withdrawalsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vault",
			Name:      "withdrawals_total",
			Help:      "Total number of committed withdrawals",
		},
	)
	releaseFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vault",
			Name:      "release_failures_total",
			Help:      "Total number of external fund releases that failed",
		},
	)
	totalHeldMinor = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vault",
			Name:      "total_held_minor",
			Help:      "Total value currently held by the vault, in minor units",
		},
	)
)
