package middleware

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jroosing/pdnsadmin/internal/metrics"
)

// SlogRequestLogger logs one line per request. Errors attached to the
// context with c.Error are logged at ERROR.
func SlogRequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		if logger == nil {
			return
		}
		latency := time.Since(start)
		attrs := []any{
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if id := Identity(c); id != nil {
			attrs = append(attrs, "user", id.Username, "auth", string(id.Method))
		}
		if len(c.Errors) > 0 {
			logger.Error("api request", append(attrs, "error", c.Errors.String())...)
			return
		}
		logger.Info("api request", attrs...)
	}
}

// Metrics records request counts and latency per route template.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
