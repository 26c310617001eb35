package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mmcgeh6/acjobs-engine/internal/api"
	"github.com/mmcgeh6/acjobs-engine/internal/config"
	"github.com/mmcgeh6/acjobs-engine/internal/events"
	"github.com/mmcgeh6/acjobs-engine/internal/logger"
	"github.com/mmcgeh6/acjobs-engine/internal/repository"
	"github.com/mmcgeh6/acjobs-engine/internal/scheduler"
	"github.com/mmcgeh6/acjobs-engine/internal/service"
	"github.com/mmcgeh6/acjobs-engine/internal/source"
	"github.com/mmcgeh6/acjobs-engine/internal/source/algolia"
	"github.com/mmcgeh6/acjobs-engine/internal/source/fixture"
)

func main() {
	// Initialize logger first so every startup failure is reported through it
	appLogger := logger.NewFromEnv(logger.LoadFromEnv())
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		appLogger.WithError(err).Fatal("Invalid configuration")
	}

	ctx := context.Background()

	// Initialize stores (runs migrations and the zip-table seed)
	stores, err := repository.NewStores(ctx, &cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize stores")
	}

	// Initialize the listing source
	src, err := buildSource(cfg)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize source")
	}
	appLogger.WithField(logger.FieldSource, src.GetSourceID()).Info("Source initialized")

	// Initialize enrichment services
	parser := service.NewLocationParser(&service.LocationParserConfig{
		Enabled:           cfg.LLM.Enabled,
		Model:             cfg.LLM.Model,
		APIKey:            cfg.LLM.APIKey,
		BaseURL:           cfg.LLM.BaseURL,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
	}, appLogger)

	resolver := service.NewGeocodeResolver(&service.GeocodeResolverConfig{
		APIKey:            cfg.Geocode.APIKey,
		BaseURL:           cfg.Geocode.BaseURL,
		RequestsPerSecond: cfg.Geocode.RequestsPerSecond,
	}, stores.Zips, appLogger)

	// Progress events stream to dashboard clients over the websocket hub
	hub := events.NewHub(appLogger)

	pipeline := service.NewPipelineService(
		stores.Jobs,
		stores.Executions,
		stores.Activity,
		parser,
		resolver,
		hub,
		appLogger,
		&service.PipelineConfig{
			Workers:   cfg.Pipeline.Workers,
			BatchSize: cfg.Pipeline.BatchSize,
		},
	)

	// Fail over any execution a previous process left running, before the
	// scheduler or API can start new ones
	if err := pipeline.RecoverOrphaned(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to recover orphaned executions")
	}

	sched := scheduler.New(&cfg.Scheduler, pipeline, src, appLogger)
	if err := sched.Start(); err != nil {
		appLogger.WithError(err).Fatal("Failed to start scheduler")
	}

	// Setup router
	router := api.SetupRouter(pipeline, src, stores, hub, appLogger, &cfg.Server)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down...")

	// Stop taking new runs, cancel any run in flight, then drain HTTP
	sched.Stop()
	pipeline.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Fatal("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}

// buildSource constructs the listing source named by the configuration.
func buildSource(cfg *config.Config) (source.Source, error) {
	switch cfg.Source.Provider {
	case "algolia":
		return algolia.NewAdapter(algolia.Config{
			AppID:    cfg.Source.Algolia.AppID,
			APIKey:   cfg.Source.Algolia.APIKey,
			Index:    cfg.Source.Algolia.Index,
			PageSize: cfg.Source.Algolia.PageSize,
		}), nil
	case "fixture":
		return fixture.NewAdapter(cfg.Source.Fixture.Path), nil
	default:
		return nil, fmt.Errorf("unknown source provider %q", cfg.Source.Provider)
	}
}
