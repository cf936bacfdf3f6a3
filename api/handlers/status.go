package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/capacity-manager/internal/collector"
	"github.com/OldStager01/capacity-manager/internal/manager"
)

type StatusHandler struct {
	manager   *manager.Manager
	collector *collector.Collector
}

func NewStatusHandler(mgr *manager.Manager, coll *collector.Collector) *StatusHandler {
	return &StatusHandler{manager: mgr, collector: coll}
}

func (h *StatusHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.manager.Stats())
}

func (h *StatusHandler) GetScalingHistory(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = parsed
	}

	events := h.manager.ScaleHistory(limit)
	c.JSON(http.StatusOK, gin.H{
		"count":  len(events),
		"events": events,
	})
}

func (h *StatusHandler) GetAlerts(c *gin.Context) {
	alerts := h.manager.ActiveAlerts()
	c.JSON(http.StatusOK, gin.H{
		"count":  len(alerts),
		"alerts": alerts,
	})
}

func (h *StatusHandler) GetMetricHistory(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name query parameter is required"})
		return
	}

	window := time.Hour
	if raw := c.Query("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "window must be a positive duration"})
			return
		}
		window = parsed
	}

	samples := h.collector.MetricHistory(name, window)
	c.JSON(http.StatusOK, gin.H{
		"name":    name,
		"window":  window.String(),
		"count":   len(samples),
		"samples": samples,
	})
}
