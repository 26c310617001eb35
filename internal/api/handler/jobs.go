package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mmcgeh6/acjobs-engine/internal/repository"
)

// JobHandler handles stored job posting endpoints.
type JobHandler struct {
	jobs repository.JobRepository
}

// NewJobHandler creates a new job handler.
// Parameters:
//   - jobs: job posting store.
// Returns:
//   - *JobHandler: initialized handler.
func NewJobHandler(jobs repository.JobRepository) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// ListJobs handles GET /api/v1/jobs.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *JobHandler) ListJobs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	jobs, err := h.jobs.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs: " + err.Error(),
		})
		return
	}

	total, err := h.jobs.Count(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to count jobs: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":   jobs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetJob handles GET /api/v1/jobs/:key.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *JobHandler) GetJob(c *gin.Context) {
	key := c.Param("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Job key is required",
		})
		return
	}

	job, err := h.jobs.GetByKey(c.Request.Context(), key)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Job not found",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load job: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, job)
}
