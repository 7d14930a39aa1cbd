package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trackerkit_http_requests_total",
		Help: "Tracker API calls that reached the network, by final status",
	}, []string{"service", "method", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trackerkit_http_request_duration_seconds",
		Help:    "Tracker API call latency including retries",
		Buckets: prometheus.DefBuckets,
	}, []string{"service", "method"})

	paginationTruncations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trackerkit_pagination_truncated_total",
		Help: "Paginated listings stopped early at the item ceiling or a stuck cursor",
	})
)
