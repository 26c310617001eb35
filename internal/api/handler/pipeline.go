package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mmcgeh6/acjobs-engine/internal/domain"
	"github.com/mmcgeh6/acjobs-engine/internal/repository"
	"github.com/mmcgeh6/acjobs-engine/internal/service"
	"github.com/mmcgeh6/acjobs-engine/internal/source"
)

// PipelineHandler handles pipeline run and status endpoints.
type PipelineHandler struct {
	pipeline *service.PipelineService
	src      source.Source
	execs    repository.ExecutionRepository
}

// TriggerRequest is the optional body of POST /api/v1/pipeline/run.
type TriggerRequest struct {
	BatchSize int `json:"batch_size"`
}

// NewPipelineHandler creates a new pipeline handler.
// Parameters:
//   - pipeline: pipeline service instance.
//   - src: the listing source API-triggered runs synchronize against.
//   - execs: execution store for status and history reads.
// Returns:
//   - *PipelineHandler: initialized handler.
func NewPipelineHandler(pipeline *service.PipelineService, src source.Source, execs repository.ExecutionRepository) *PipelineHandler {
	return &PipelineHandler{
		pipeline: pipeline,
		src:      src,
		execs:    execs,
	}
}

// TriggerRun handles POST /api/v1/pipeline/run. The run detaches onto a
// background goroutine; the response carries the newly created execution
// record.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *PipelineHandler) TriggerRun(c *gin.Context) {
	var req TriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}
	if req.BatchSize < 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "batch_size must not be negative",
		})
		return
	}

	exec, err := h.pipeline.Trigger(c.Request.Context(), service.RunOptions{
		Source:      h.src,
		TriggeredBy: domain.TriggerAPI,
		BatchSize:   req.BatchSize,
	})
	if errors.Is(err, service.ErrPipelineRunning) {
		c.JSON(http.StatusConflict, gin.H{
			"error": "pipeline already running",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to start run: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, exec)
}

// Status handles GET /api/v1/pipeline/status. While a run is active the
// response carries its live counters; otherwise the latest stored execution.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *PipelineHandler) Status(c *gin.Context) {
	if exec, ok := h.pipeline.Active(); ok {
		c.JSON(http.StatusOK, exec)
		return
	}

	exec, err := h.execs.GetLatest(c.Request.Context())
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "no pipeline runs yet",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load status: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, exec)
}

// ListExecutions handles GET /api/v1/executions.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *PipelineHandler) ListExecutions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 {
		limit = 20
	}

	execs, err := h.execs.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list executions: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"executions": execs,
		"total":      len(execs),
	})
}
