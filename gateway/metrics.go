// Copyright 2025 Unigate
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics
var (
	promRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unigate_requests_total",
			Help: "Total number of requests processed by the gateway",
		},
		[]string{"route", "status"},
	)
	promRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "unigate_request_duration_milliseconds",
			Help:    "Request duration in milliseconds",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000, 5000, 15000},
		},
		[]string{"route"},
	)
	promCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unigate_cache_hits_total",
			Help: "Responses served from the cache",
		},
		[]string{"route"},
	)
	promUpstreamFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "unigate_upstream_failures_total",
			Help: "Requests that failed because no provider could serve them",
		},
	)
)

func init() {
	// Register Prometheus metrics
	prometheus.MustRegister(promRequestsTotal)
	prometheus.MustRegister(promRequestDuration)
	prometheus.MustRegister(promCacheHits)
	prometheus.MustRegister(promUpstreamFailures)
}
