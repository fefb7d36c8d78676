package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// relayForwardsTotal tracks relay forwards by provider and result
	relayForwardsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitecache_relay_forwards_total",
			Help: "Total friend-link relay forwards by provider and result",
		},
		[]string{"provider", "result"}, // result: "success", "config_missing", "upstream_failure"
	)
)
