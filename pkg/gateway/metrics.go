package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestsTotal tracks intercepted requests by tier and serving source
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitecache_gateway_requests_total",
			Help: "Total intercepted requests by routing tier and serving source",
		},
		[]string{"tier", "source"}, // source: "network", "cache", "offline", "error"
	)

	// requestDuration tracks end-to-end serve latency by tier
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sitecache_gateway_request_duration_seconds",
			Help:    "End-to-end request serving duration by routing tier",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tier"},
	)
)
