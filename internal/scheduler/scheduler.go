package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/mmcgeh6/acjobs-engine/internal/config"
	"github.com/mmcgeh6/acjobs-engine/internal/domain"
	"github.com/mmcgeh6/acjobs-engine/internal/logger"
	"github.com/mmcgeh6/acjobs-engine/internal/service"
	"github.com/mmcgeh6/acjobs-engine/internal/source"
)

// DefaultCron fires a sync run every six hours.
const DefaultCron = "0 */6 * * *"

// Scheduler runs the sync pipeline on a cron cadence. A firing that lands
// while a previous run is still active is skipped, never queued.
type Scheduler struct {
	pipeline *service.PipelineService
	src      source.Source
	cron     *cron.Cron
	spec     string
	enabled  bool
	logger   *logger.Logger
	started  bool
}

// New creates a scheduler that triggers runs against the given source.
// Parameters:
//   - cfg: scheduler section of the configuration; an empty cron expression
//     falls back to DefaultCron.
//   - pipeline: the pipeline service that owns run execution.
//   - src: the listing source every scheduled run synchronizes against.
//   - log: base logger.
//
// Returns:
//   - *Scheduler: the scheduler, not yet started.
func New(cfg *config.SchedulerConfig, pipeline *service.PipelineService, src source.Source, log *logger.Logger) *Scheduler {
	spec := cfg.Cron
	if spec == "" {
		spec = DefaultCron
	}
	return &Scheduler{
		pipeline: pipeline,
		src:      src,
		cron:     cron.New(),
		spec:     spec,
		enabled:  cfg.Enabled,
		logger:   log,
	}
}

// Start registers the sync job and starts the cron loop. When scheduling is
// disabled in config this is a no-op and runs stay on-demand only.
func (s *Scheduler) Start() error {
	if !s.enabled {
		s.logger.Info("Scheduler disabled, pipeline runs on demand only")
		return nil
	}
	if s.started {
		return errors.New("scheduler already started")
	}

	if _, err := s.cron.AddFunc(s.spec, s.fire); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.started = true

	s.logger.WithField("cron", s.spec).Info("Scheduler started")
	return nil
}

// Stop halts the cron loop and waits for an in-flight firing callback to
// return. The triggered pipeline run itself is detached; callers stop it
// through the pipeline service.
func (s *Scheduler) Stop() {
	if !s.started {
		return
	}
	<-s.cron.Stop().Done()
	s.started = false
	s.logger.Info("Scheduler stopped")
}

// fire triggers one background run. Trigger returns immediately, so the cron
// slot is never held for the duration of a run.
func (s *Scheduler) fire() {
	ctx := s.logger.WithContext(context.Background())
	ctx = logger.SetComponent(ctx, "scheduler")

	exec, err := s.pipeline.Trigger(ctx, service.RunOptions{
		Source:      s.src,
		TriggeredBy: domain.TriggerScheduled,
	})
	if errors.Is(err, service.ErrPipelineRunning) {
		logger.CtxInfo(ctx, "Skipping scheduled run, previous run still active")
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("Failed to start scheduled run")
		return
	}

	s.logger.WithField(logger.FieldExecutionID, exec.ID).Info("Scheduled run started")
}
