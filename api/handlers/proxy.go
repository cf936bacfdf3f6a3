package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/capacity-manager/internal/balancer"
	"github.com/OldStager01/capacity-manager/internal/collector"
	"github.com/OldStager01/capacity-manager/pkg/models"
)

type ProxyHandler struct {
	lb        *balancer.LoadBalancer
	collector *collector.Collector
}

func NewProxyHandler(lb *balancer.LoadBalancer, coll *collector.Collector) *ProxyHandler {
	return &ProxyHandler{lb: lb, collector: coll}
}

// Forward proxies one workflow request to a backend instance and feeds the
// observed outcome into the metrics collector. Proxied traffic is what the
// request-rate and response-time policies evaluate.
func (h *ProxyHandler) Forward(c *gin.Context) {
	start := time.Now()

	h.lb.ProxyRequest(c.Writer, c.Request)

	if h.collector != nil {
		h.collector.RecordRequest(models.RequestObservation{
			Method:       c.Request.Method,
			Path:         c.Request.URL.Path,
			StatusCode:   c.Writer.Status(),
			ResponseTime: time.Since(start),
			Timestamp:    time.Now(),
		})
	}
}
