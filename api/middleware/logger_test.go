package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/capacity-manager/internal/logger"
)

func TestTraceID_GeneratesAndEchoes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(TraceID())
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, GetTraceID(c))
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.NotEmpty(t, rec.Body.String())
	assert.Equal(t, rec.Body.String(), rec.Header().Get(TraceIDHeader))

	// A caller-supplied id is kept, so log lines correlate across services.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(TraceIDHeader, "trace-from-upstream")
	router.ServeHTTP(rec, req)
	assert.Equal(t, "trace-from-upstream", rec.Body.String())
	assert.Equal(t, "trace-from-upstream", rec.Header().Get(TraceIDHeader))
}

func TestRequestLogger_TagsSurfacesAndTraceID(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(os.Stdout)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(TraceID(), RequestLogger("workflow-worker"))
	router.GET("/api/v1/stats", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.POST("/workflow/run", func(c *gin.Context) { c.Status(http.StatusBadGateway) })

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	req.Header.Set(TraceIDHeader, "trace-123")
	router.ServeHTTP(httptest.NewRecorder(), req)

	line := buf.String()
	assert.Contains(t, line, `"surface":"management"`)
	assert.Contains(t, line, `"service":"workflow-worker"`)
	assert.Contains(t, line, `"trace_id":"trace-123"`)
	assert.Contains(t, line, "request served")

	buf.Reset()
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/workflow/run", nil))

	line = buf.String()
	assert.Contains(t, line, `"surface":"proxy"`)
	assert.Contains(t, line, "request failed")
}
