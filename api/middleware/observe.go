package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/capacity-manager/internal/metrics"
)

// HTTPMetrics counts API requests by method and status class.
func HTTPMetrics(instruments *metrics.Instruments) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if instruments == nil {
			return
		}
		class := strconv.Itoa(c.Writer.Status()/100) + "xx"
		instruments.HTTPRequestsTotal.WithLabelValues(c.Request.Method, class).Inc()
	}
}
