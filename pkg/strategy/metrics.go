package strategy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// fetchesTotal tracks strategy invocations by strategy and source
	fetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitecache_strategy_fetches_total",
			Help: "Total strategy fetches by strategy and response source",
		},
		[]string{"strategy", "source"},
	)

	// backgroundRefreshTotal tracks detached cache-first refreshes
	backgroundRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitecache_background_refresh_total",
			Help: "Total background refresh attempts by result",
		},
		[]string{"result"}, // "ok", "not_ok", "error"
	)
)
