package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mmcgeh6/acjobs-engine/internal/repository"
)

// ActivityHandler handles pipeline activity log endpoints.
type ActivityHandler struct {
	activity repository.ActivityRepository
}

// NewActivityHandler creates a new activity handler.
func NewActivityHandler(activity repository.ActivityRepository) *ActivityHandler {
	return &ActivityHandler{activity: activity}
}

// ListActivity handles GET /api/v1/activity.
func (h *ActivityHandler) ListActivity(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 {
		limit = 50
	}

	entries, err := h.activity.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list activity: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"total":   len(entries),
	})
}

// PurgeActivity handles DELETE /api/v1/activity.
func (h *ActivityHandler) PurgeActivity(c *gin.Context) {
	purged, err := h.activity.Purge(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to purge activity: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"purged": purged,
	})
}
