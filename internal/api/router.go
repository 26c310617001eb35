package api

import (
	"github.com/gin-gonic/gin"

	"github.com/mmcgeh6/acjobs-engine/internal/api/handler"
	"github.com/mmcgeh6/acjobs-engine/internal/api/middleware"
	"github.com/mmcgeh6/acjobs-engine/internal/config"
	"github.com/mmcgeh6/acjobs-engine/internal/events"
	"github.com/mmcgeh6/acjobs-engine/internal/logger"
	"github.com/mmcgeh6/acjobs-engine/internal/repository"
	"github.com/mmcgeh6/acjobs-engine/internal/service"
	"github.com/mmcgeh6/acjobs-engine/internal/source"
)

// SetupRouter configures the Gin router with all routes
func SetupRouter(
	pipeline *service.PipelineService,
	src source.Source,
	stores *repository.Stores,
	hub *events.Hub,
	log *logger.Logger,
	cfg *config.ServerConfig,
) *gin.Engine {
	// Set Gin mode
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.CORS.AllowAllOrigins,
	}))

	// Create handlers
	healthHandler := handler.NewHealthHandler(stores.DB)
	pipelineHandler := handler.NewPipelineHandler(pipeline, src, stores.Executions)
	jobHandler := handler.NewJobHandler(stores.Jobs)
	activityHandler := handler.NewActivityHandler(stores.Activity)

	// Health check
	r.GET("/health", healthHandler.Health)

	// Progress websocket
	r.GET("/ws", func(c *gin.Context) {
		hub.Handle(c.Writer, c.Request)
	})

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Pipeline
		v1.POST("/pipeline/run", pipelineHandler.TriggerRun)
		v1.GET("/pipeline/status", pipelineHandler.Status)
		v1.GET("/executions", pipelineHandler.ListExecutions)

		// Stored jobs
		v1.GET("/jobs", jobHandler.ListJobs)
		v1.GET("/jobs/:key", jobHandler.GetJob)

		// Activity log
		v1.GET("/activity", activityHandler.ListActivity)
		v1.DELETE("/activity", activityHandler.PurgeActivity)
	}

	return r
}
