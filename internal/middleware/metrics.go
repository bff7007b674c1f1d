// Package middleware provides the Gin middleware shared by the events API.
// Everything here is registered in internal/api/router.go.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/event-scraper/event-scraper/internal/telemetry"
)

// unmatchedRoute labels requests that hit no registered route, keeping
// arbitrary URLs out of the path label.
const unmatchedRoute = "<no-route>"

// MetricsMiddleware records http_requests_total{method,path,status} and
// http_request_duration_seconds{method,path} for every request. path is the
// matched route template, e.g. /events/batch.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = unmatchedRoute
		}
		method := c.Request.Method

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
