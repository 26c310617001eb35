package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mmcgeh6/acjobs-engine/internal/config"
	"github.com/mmcgeh6/acjobs-engine/internal/domain"
	"github.com/mmcgeh6/acjobs-engine/internal/events"
	"github.com/mmcgeh6/acjobs-engine/internal/logger"
	"github.com/mmcgeh6/acjobs-engine/internal/repository"
	"github.com/mmcgeh6/acjobs-engine/internal/service"
	"github.com/mmcgeh6/acjobs-engine/internal/source"
	"github.com/mmcgeh6/acjobs-engine/internal/source/algolia"
	"github.com/mmcgeh6/acjobs-engine/internal/source/fixture"
)

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "acjobs-sync",
	})
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Parse command line flags
	provider := flag.String("source", "", "Listing source to sync from (overrides config)")
	batchSize := flag.Int("batch", 0, "Maximum number of listings per run (0 uses config)")
	fixturePath := flag.String("fixture", "", "Path to a fixture file (overrides config)")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}
	if *provider != "" {
		cfg.Source.Provider = *provider
	}
	if *fixturePath != "" {
		cfg.Source.Fixture.Path = *fixturePath
	}
	if err := cfg.Validate(); err != nil {
		appLogger.WithError(err).Fatal("Invalid configuration")
	}

	appLogger.WithFields(logger.Fields{
		"source": cfg.Source.Provider,
		"batch":  *batchSize,
	}).Info("Starting sync run")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	pipeline := service.NewPipelineService(
		stores.Jobs,
		stores.Executions,
		stores.Activity,
		parser,
		resolver,
		events.NopSink{},
		appLogger,
		&service.PipelineConfig{
			Workers:   cfg.Pipeline.Workers,
			BatchSize: cfg.Pipeline.BatchSize,
		},
	)

	// Fail over any execution a previous process left running
	if err := pipeline.RecoverOrphaned(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to recover orphaned executions")
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	// Run the pipeline
	exec, err := pipeline.Run(ctx, service.RunOptions{
		Source:      src,
		TriggeredBy: domain.TriggerManual,
		BatchSize:   *batchSize,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Sync run failed")
	}

	appLogger.WithFields(logger.Fields{
		"execution_id": exec.ID,
		"total":        exec.TotalJobs,
		"processed":    exec.ProcessedJobs,
		"new":          exec.NewJobs,
		"deleted":      exec.DeletedJobs,
		"failed":       exec.FailedJobs,
	}).Info("Sync run completed")
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
