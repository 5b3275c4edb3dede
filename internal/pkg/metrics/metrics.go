package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SwapsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moltydex_swaps_total",
		Help: "The total number of swaps recorded",
	}, []string{"status"})

	QuotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moltydex_quotes_total",
		Help: "Quote fetch outcomes per routing endpoint",
	}, []string{"endpoint", "status"})

	RPCRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moltydex_rpc_retries_total",
		Help: "Retried upstream calls by failure category",
	}, []string{"category"})

	OptimisticConfirms = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moltydex_optimistic_confirms_total",
		Help: "Swaps resolved as succeeded after the confirmation poll budget ran out",
	})

	TrackingFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moltydex_tracking_fallbacks_total",
		Help: "Tracking writes served by the volatile store after a durable-backend failure",
	})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "moltydex_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)
