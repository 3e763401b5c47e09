package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CartMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Total number of cart mutations by operation and result",
	}, []string{"op", "result"})

	CatalogLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_loads_total",
		Help: "Total number of catalog loads by result",
	}, []string{"result"})

	SalesFinalizedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sales_finalized_total",
		Help: "Total number of sales confirmed by the backend",
	})

	SalesFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_failed_total",
		Help: "Total number of failed sale finalizations",
	}, []string{"reason"})

	SalesReplayedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sales_replayed_total",
		Help: "Total number of finalize calls answered from an idempotency key",
	})

	SaleSubmissionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sale_submission_latency_seconds",
		Help:    "Latency of sale submissions to the backend",
		Buckets: prometheus.DefBuckets,
	})

	ReceiptsGeneratedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "receipts_generated_total",
		Help: "Total number of receipts rendered by format",
	}, []string{"format"})

	ReceiptFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "receipt_failures_total",
		Help: "Total number of receipts that could not be rendered",
	})

	SessionsTerminatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sessions_terminated_total",
		Help: "Total number of terminated operator sessions",
	}, []string{"reason"})

	BackendRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "backend_request_duration_seconds",
		Help:    "Latency of requests to the VetHope backend",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	BackendBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "backend_circuit_breaker_state",
		Help: "Current state of the backend circuit breaker (0=closed, 1=half-open, 2=open)",
	}, []string{"name"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
