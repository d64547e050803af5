// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file exposes Prometheus instrumentation for HTTP traffic and for the
// resilience pipeline. Labels stay bounded:
//
//   - method: HTTP method verb (GET/POST/…)
//   - path:   the registered Gin route; falls back to the raw URL path when no
//     route matched
//   - status: numeric status code as a string (e.g. "200", "404")
//   - code:   error envelope code (e.g. "NOT_FOUND")
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	// Status is omitted to keep histogram cardinality lower.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	apiErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_errors_total",
			Help: "Error envelopes written, by code and status.",
		},
		[]string{"code", "status"},
	)

	apiTimeouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_request_timeouts_total",
			Help: "Requests that exceeded their route deadline.",
		},
		[]string{"method"},
	)

	apiSlow = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_slow_requests_total",
			Help: "Successful requests slower than the slow request threshold.",
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, apiErrors, apiTimeouts, apiSlow)
}

// Metrics returns a Gin middleware that instruments requests with Prometheus.
//
//	r := gin.New()
//	r.Use(middleware.Metrics())
//	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method
		httpReqs.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
