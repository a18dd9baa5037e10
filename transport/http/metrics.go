package http

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recoverd_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "code"},
	)

	walletOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoverd_wallet_operations_total",
			Help: "Wallet operations by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)
)

// MetricsMiddleware records request durations by route template
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

func observeOperation(operation string, err error) {
	walletOperations.WithLabelValues(operation, outcomeFor(err)).Inc()
}
