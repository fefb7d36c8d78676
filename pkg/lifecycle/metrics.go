package lifecycle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// installsTotal tracks install attempts by result
	installsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitecache_installs_total",
			Help: "Total install attempts by result",
		},
		[]string{"result"}, // "success", "failure"
	)

	// activationsTotal tracks completed activations
	activationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sitecache_activations_total",
			Help: "Total completed activations",
		},
	)
)
