package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/OldStager01/capacity-manager/internal/logger"
)

// RequestLogger logs every request through the service-scoped logger.
// Proxied workflow traffic is tagged apart from the management surface so
// operators can filter one without the other.
func RequestLogger(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()

		surface := "management"
		if strings.HasPrefix(path, "/workflow/") {
			surface = "proxy"
		}

		entry := logger.WithService(service).WithFields(logrus.Fields{
			"status":     status,
			"method":     c.Request.Method,
			"path":       path,
			"surface":    surface,
			"latency_ms": time.Since(start).Milliseconds(),
			"ip":         c.ClientIP(),
			"trace_id":   GetTraceID(c),
		})

		if query := c.Request.URL.RawQuery; query != "" {
			entry = entry.WithField("query", query)
		}
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			entry.Error("request failed")
		case status >= 400:
			entry.Warn("request rejected")
		default:
			entry.Info("request served")
		}
	}
}
