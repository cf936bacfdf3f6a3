package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/OldStager01/capacity-manager/internal/logger"
)

const TraceIDHeader = "X-Trace-ID"

const traceIDKey = "trace_id"

// TraceID assigns every request a trace id, honoring one supplied by the
// caller so capacityd log lines correlate with workflow-engine logs for the
// same request.
func TraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		c.Set(traceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)

		c.Next()
	}
}

func GetTraceID(c *gin.Context) string {
	if traceID, exists := c.Get(traceIDKey); exists {
		return traceID.(string)
	}
	return ""
}

// TraceLogger returns a log entry carrying the request's trace id, for
// handlers that log beyond the per-request line.
func TraceLogger(c *gin.Context) *logrus.Entry {
	return logger.WithField(traceIDKey, GetTraceID(c))
}
