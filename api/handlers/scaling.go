package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/capacity-manager/api/middleware"
	"github.com/OldStager01/capacity-manager/internal/manager"
)

type ScalingHandler struct {
	manager *manager.Manager
}

func NewScalingHandler(mgr *manager.Manager) *ScalingHandler {
	return &ScalingHandler{manager: mgr}
}

type ManualScaleRequest struct {
	TargetCount int    `json:"target_count" binding:"min=0"`
	Reason      string `json:"reason"`
}

// ManualScale sets the instance count directly. The target is still clamped
// to the configured bounds and serialized with automatic scaling.
func (h *ScalingHandler) ManualScale(c *gin.Context) {
	var req ManualScaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	middleware.TraceLogger(c).Infof("Manual scale requested: %d instances (%s)", req.TargetCount, req.Reason)

	err := h.manager.ManualScale(c.Request.Context(), req.TargetCount, req.Reason)
	switch {
	case errors.Is(err, manager.ErrScaleInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case errors.Is(err, manager.ErrInvalidTarget):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"requested_count": req.TargetCount,
		"current_count":   h.manager.CurrentCount(),
	})
}
