package middleware

import (
	"strconv"
	"time"

	"library-services/internal/observability/metrics"

	"github.com/gin-gonic/gin"
)

// Metrics records request count and latency per route template so path
// parameters do not blow up label cardinality.
func Metrics(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.ObserveHTTPRequest(service, c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
