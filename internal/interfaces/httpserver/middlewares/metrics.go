package middlewares

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"scribe-server/internal/infrastructure/metrics"
)

// MetricsMiddleware records HTTP request metrics
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = c.Request.URL.Path
		}

		// Set by the intake and chat handlers once selection is known.
		model := c.GetString("model")
		if model == "" {
			model = "unknown"
		}

		metrics.RecordRequest(c.Request.Method, endpoint, status, model, duration)
	}
}
