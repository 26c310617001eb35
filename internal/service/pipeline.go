package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mmcgeh6/acjobs-engine/internal/domain"
	"github.com/mmcgeh6/acjobs-engine/internal/events"
	"github.com/mmcgeh6/acjobs-engine/internal/logger"
	"github.com/mmcgeh6/acjobs-engine/internal/repository"
	"github.com/mmcgeh6/acjobs-engine/internal/source"
)

// ErrPipelineRunning is returned when a run is requested while another run
// is still active. One run per process; callers map this to HTTP 409.
var ErrPipelineRunning = errors.New("a pipeline run is already active")

// defaultWorkers bounds the enrichment and deletion pools when no worker
// count is configured. The work is I/O bound on two external APIs, so a
// small pool saturates the rate limits long before it saturates a CPU.
const defaultWorkers = 6

// Human-readable phase labels recorded on the execution as a run moves
// through its states.
const (
	phaseInitializing = "Initializing"
	phaseFetching     = "Fetching source"
	phaseReconciling  = "Reconciling"
	phaseDeleting     = "Deleting obsolete"
	phaseEnriching    = "Enriching"
	phasePersisting   = "Persisting"
	phaseCompleted    = "Completed"
	phaseFailed       = "Failed"
)

// PipelineService orchestrates one synchronization run: fetch every listing
// from the source, truncate to the batch window, reconcile against the
// stored set, delete stale postings, enrich new ones with a standardized
// location and coordinates, and persist the results.
//
// A fetch failure or a failure to load the stored key set aborts the run.
// Everything downstream is per-entry: a stale posting that fails to delete
// survives until the next run, a listing that fails to persist is counted
// and skipped, and a location that resolves nowhere is stored without
// coordinates. The run carries on.
type PipelineService struct {
	jobs     repository.JobRepository
	execs    repository.ExecutionRepository
	activity repository.ActivityRepository
	parser   *LocationParser
	geocoder *GeocodeResolver
	sink     events.ProgressSink
	logger   *logger.Logger

	workers   int
	batchSize int

	// mu guards the single-run state. progressMu guards the live counters
	// on the active execution plus the enrichment denominator, and
	// serializes event publication, so every event carries a consistent
	// snapshot and events leave in counter order.
	mu          sync.Mutex
	running     bool
	active      *domain.PipelineExecution
	cancelRun   context.CancelFunc
	progressMu  sync.Mutex
	enrichTotal int
	wg          sync.WaitGroup
}

// PipelineConfig holds configuration for the pipeline service.
type PipelineConfig struct {
	Workers   int
	BatchSize int
}

// RunOptions selects what one run operates on.
type RunOptions struct {
	Source      source.Source
	TriggeredBy string
	BatchSize   int // 0 means the configured default
}

// NewPipelineService creates a new pipeline service.
// Parameters:
//   - jobs: job posting store.
//   - execs: execution record store.
//   - activity: activity log store.
//   - parser: location standardizer.
//   - geocoder: coordinate and postal-code resolver.
//   - sink: progress event consumer, NopSink for CLI runs.
//   - log: logger for run diagnostics.
//   - cfg: worker and batch settings.
//
// Returns:
//   - *PipelineService: initialized service.
func NewPipelineService(
	jobs repository.JobRepository,
	execs repository.ExecutionRepository,
	activity repository.ActivityRepository,
	parser *LocationParser,
	geocoder *GeocodeResolver,
	sink events.ProgressSink,
	log *logger.Logger,
	cfg *PipelineConfig,
) *PipelineService {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	if sink == nil {
		sink = events.NopSink{}
	}

	return &PipelineService{
		jobs:      jobs,
		execs:     execs,
		activity:  activity,
		parser:    parser,
		geocoder:  geocoder,
		sink:      sink,
		logger:    log,
		workers:   workers,
		batchSize: cfg.BatchSize,
	}
}

// log returns a logger from context if available, otherwise the service's own.
func (s *PipelineService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// Run executes one synchronization run and blocks until it finishes.
// Parameters:
//   - ctx: context for cancellation; a cancelled run finalizes as failed
//     with the message "cancelled".
//   - opts: source and run settings.
//
// Returns:
//   - *domain.PipelineExecution: the finished execution record, also
//     returned alongside a run error once the execution exists.
//   - error: ErrPipelineRunning, a creation failure, or the fatal run error.
func (s *PipelineService) Run(ctx context.Context, opts RunOptions) (*domain.PipelineExecution, error) {
	exec, err := s.begin(ctx, opts)
	if err != nil {
		return nil, err
	}

	runErr := s.execute(ctx, exec, opts.Source)
	s.release()
	if runErr != nil {
		return exec, runErr
	}
	return exec, nil
}

// Trigger starts a run in the background and returns its execution record
// right away. The run detaches from the caller's context so it outlives the
// HTTP request that triggered it; Stop cancels it.
// Parameters:
//   - ctx: context for the synchronous setup only.
//   - opts: source and run settings.
//
// Returns:
//   - *domain.PipelineExecution: the newly created execution record.
//   - error: ErrPipelineRunning or a creation failure.
func (s *PipelineService) Trigger(ctx context.Context, opts RunOptions) (*domain.PipelineExecution, error) {
	exec, err := s.begin(ctx, opts)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Lock()
	s.cancelRun = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release()
		s.execute(runCtx, exec, opts.Source)
	}()

	return exec, nil
}

// Stop cancels any background run started by Trigger and waits for it to
// finalize. Runs started by Run are owned by their caller's context.
func (s *PipelineService) Stop() {
	s.mu.Lock()
	cancel := s.cancelRun
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// IsRunning reports whether a run is currently active.
func (s *PipelineService) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Active returns a snapshot of the in-flight execution, with live counters,
// and whether one exists.
func (s *PipelineService) Active() (domain.PipelineExecution, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.active == nil {
		return domain.PipelineExecution{}, false
	}

	s.progressMu.Lock()
	snapshot := *s.active
	s.progressMu.Unlock()
	return snapshot, true
}

// RecoverOrphaned fails over execution records left in the running state by
// a previous process. Call it once at startup, before the scheduler or API
// can start new runs: anything still marked running at that point is the
// orphan of a crash or restart, never a live run.
// Parameters:
//   - ctx: context for the store sweeps.
//
// Returns:
//   - error: non-nil if the store cannot be read or updated.
func (s *PipelineService) RecoverOrphaned(ctx context.Context) error {
	recovered := 0
	for {
		exec, err := s.execs.FindActive(ctx)
		if err != nil {
			return fmt.Errorf("failed to look up active executions: %w", err)
		}
		if exec == nil {
			break
		}

		now := time.Now()
		exec.Status = domain.ExecutionStatusFailed
		exec.CurrentStep = phaseFailed
		exec.ErrorMessage = "interrupted by restart"
		exec.CompletedAt = &now
		if err := s.execs.Update(ctx, exec); err != nil {
			return fmt.Errorf("failed to fail over execution %s: %w", exec.ID, err)
		}
		recovered++
	}

	if recovered > 0 {
		s.logger.WithField(logger.FieldCount, recovered).
			Warn("Recovered orphaned executions from a previous process")
	}
	return nil
}

// begin claims the single-run slot and persists the running execution. The
// slot is released by the run itself, never by begin's caller.
func (s *PipelineService) begin(ctx context.Context, opts RunOptions) (*domain.PipelineExecution, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("run options carry no source")
	}

	batch := opts.BatchSize
	if batch <= 0 {
		batch = s.batchSize
	}
	triggeredBy := opts.TriggeredBy
	if triggeredBy == "" {
		triggeredBy = domain.TriggerManual
	}

	now := time.Now()
	exec := &domain.PipelineExecution{
		ID:          uuid.New().String(),
		SourceName:  opts.Source.GetSourceID(),
		Status:      domain.ExecutionStatusRunning,
		TriggeredBy: triggeredBy,
		CurrentStep: phaseInitializing,
		BatchSize:   batch,
		StartedAt:   &now,
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrPipelineRunning
	}
	s.running = true
	s.active = exec
	s.mu.Unlock()

	s.progressMu.Lock()
	s.enrichTotal = 0
	s.progressMu.Unlock()

	if err := s.execs.Create(ctx, exec); err != nil {
		s.release()
		return nil, fmt.Errorf("failed to create execution record: %w", err)
	}
	return exec, nil
}

func (s *PipelineService) release() {
	s.mu.Lock()
	s.running = false
	s.active = nil
	s.cancelRun = nil
	s.mu.Unlock()
}

// execute walks the run through its phases and always leaves the execution
// in a terminal state.
func (s *PipelineService) execute(ctx context.Context, exec *domain.PipelineExecution, src source.Source) (err error) {
	ctx = logger.SetExecutionID(ctx, exec.ID)
	start := time.Now()

	defer func() {
		s.finalize(ctx, exec, err, time.Since(start))
	}()

	s.emit(ctx, events.EventStatus, exec, domain.StepInit, "run started")
	s.note(ctx, exec, domain.ActivityLevelInfo, domain.StepInit,
		fmt.Sprintf("run started against %s", src.GetDisplayName()))

	if err = s.advance(ctx, exec, domain.StepFetch, phaseFetching, "fetching listings"); err != nil {
		return err
	}
	listings, err := src.FetchAll(ctx)
	if err != nil {
		s.note(ctx, exec, domain.ActivityLevelError, domain.StepFetch, err.Error())
		return fmt.Errorf("fetch failed: %w", err)
	}
	s.note(ctx, exec, domain.ActivityLevelInfo, domain.StepFetch,
		fmt.Sprintf("fetched %d listings", len(listings)))

	// The batch window bounds one run's work: everything past it waits for
	// the next run, and reconciliation only ever sees the window.
	if exec.BatchSize > 0 && len(listings) > exec.BatchSize {
		s.note(ctx, exec, domain.ActivityLevelInfo, domain.StepFetch,
			fmt.Sprintf("truncating %d listings to batch size %d", len(listings), exec.BatchSize))
		listings = listings[:exec.BatchSize]
	}
	s.progressMu.Lock()
	exec.TotalJobs = len(listings)
	s.progressMu.Unlock()

	if err = s.advance(ctx, exec, domain.StepReconcile, phaseReconciling, "reconciling against stored jobs"); err != nil {
		return err
	}
	storedKeys, err := s.jobs.ListKeys(ctx)
	if err != nil {
		s.note(ctx, exec, domain.ActivityLevelError, domain.StepReconcile, err.Error())
		return fmt.Errorf("failed to load stored keys: %w", err)
	}
	toDelete, toEnrich := reconcile(storedKeys, listings)
	s.note(ctx, exec, domain.ActivityLevelInfo, domain.StepReconcile,
		fmt.Sprintf("%d new, %d stale, %d unchanged", len(toEnrich), len(toDelete),
			len(storedKeys)-len(toDelete)))

	if err = s.advance(ctx, exec, domain.StepDelete, phaseDeleting,
		fmt.Sprintf("deleting %d stale jobs", len(toDelete))); err != nil {
		return err
	}
	s.deleteStale(ctx, exec, toDelete)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s.progressMu.Lock()
	s.enrichTotal = len(toEnrich)
	s.progressMu.Unlock()
	if err = s.advance(ctx, exec, domain.StepEnrich, phaseEnriching,
		fmt.Sprintf("enriching %d new listings", len(toEnrich))); err != nil {
		return err
	}
	enriched := s.enrichAll(ctx, exec, toEnrich)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if err = s.advance(ctx, exec, domain.StepPersist, phasePersisting,
		fmt.Sprintf("persisting %d enriched jobs", len(enriched))); err != nil {
		return err
	}
	s.persistAll(ctx, exec, enriched)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// advance moves the run to its next phase: the label lands on the execution
// record, then an event announces the transition. An execution record that
// cannot be updated aborts the run.
func (s *PipelineService) advance(ctx context.Context, exec *domain.PipelineExecution, step, label, message string) error {
	s.progressMu.Lock()
	exec.CurrentStep = label
	s.progressMu.Unlock()

	if err := s.execs.Update(ctx, exec); err != nil {
		return fmt.Errorf("failed to update execution record: %w", err)
	}
	s.emit(ctx, events.EventStatus, exec, step, message)
	return nil
}

// deleteStale removes postings that disappeared upstream, each key on its
// own so one bad row cannot hold back the rest. A failed delete is a
// warning: the stale row survives until the next run. DeletedJobs reflects
// the reconciliation verdict, not the per-key outcomes.
func (s *PipelineService) deleteStale(ctx context.Context, exec *domain.PipelineExecution, keys []string) {
	if len(keys) == 0 {
		return
	}

	g := new(errgroup.Group)
	g.SetLimit(s.workers)
	for _, key := range keys {
		key := key
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := s.jobs.DeleteByKey(ctx, key); err != nil && ctx.Err() == nil {
				s.log(ctx).WithError(err).WithField(logger.FieldJobKey, key).
					Warn("Failed to delete stale job, continuing")
				s.note(ctx, exec, domain.ActivityLevelWarning, domain.StepDelete,
					fmt.Sprintf("delete %s: %v", key, err))
			}
			return nil
		})
	}
	g.Wait()
	if ctx.Err() != nil {
		return
	}

	s.progressMu.Lock()
	exec.DeletedJobs = len(keys)
	s.progressMu.Unlock()
	s.note(ctx, exec, domain.ActivityLevelInfo, domain.StepDelete,
		fmt.Sprintf("removed %d stale jobs", len(keys)))
	s.emit(ctx, events.EventStatus, exec, domain.StepDelete, "stale jobs removed")
}

// enrichAll fans the new listings out over the worker pool and aggregates
// the enriched postings for the persist phase. The progress counter moves
// after every entry regardless of completion order; the pool itself never
// fails.
func (s *PipelineService) enrichAll(ctx context.Context, exec *domain.PipelineExecution, listings []source.Listing) []*domain.JobPosting {
	if len(listings) == 0 {
		return nil
	}

	var (
		mu       sync.Mutex
		enriched = make([]*domain.JobPosting, 0, len(listings))
	)
	g := new(errgroup.Group)
	g.SetLimit(s.workers)
	for _, listing := range listings {
		listing := listing
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			job := s.enrichListing(ctx, exec, listing)
			if job == nil {
				return nil
			}
			mu.Lock()
			enriched = append(enriched, job)
			mu.Unlock()

			s.progressMu.Lock()
			exec.ProcessedJobs++
			s.publishLocked(ctx, events.EventStatus, exec, domain.StepEnrich, "enriched "+listing.Key)
			s.progressMu.Unlock()
			return nil
		})
	}
	g.Wait()
	return enriched
}

// enrichListing standardizes and geocodes one listing. A location that
// resolves nowhere is an informational note, not a failure: the posting is
// kept without coordinates. Only cancellation stops the entry, returning nil.
func (s *PipelineService) enrichListing(ctx context.Context, exec *domain.PipelineExecution, listing source.Listing) *domain.JobPosting {
	if ctx.Err() != nil {
		return nil
	}
	ctx = logger.WithField(ctx, logger.FieldJobKey, listing.Key)

	loc := s.parser.Parse(ctx, ParseInput{
		Title:      listing.Title,
		URL:        listing.URL,
		RawCity:    listing.City,
		RawState:   listing.State,
		RawCountry: listing.Country,
		Snippet:    listing.Description,
	})

	job := &domain.JobPosting{
		JobKey:      listing.Key,
		Title:       listing.Title,
		CompanyName: listing.Company,
		URL:         listing.URL,
		Description: listing.Description,
		RawCity:     listing.City,
		RawState:    listing.State,
		RawCountry:  listing.Country,
		City:        loc.City,
		State:       loc.State,
		Country:     loc.Country,
		SourceName:  exec.SourceName,
	}

	geo := s.geocoder.Resolve(ctx, loc)
	if ctx.Err() != nil {
		return nil
	}
	if geo.Point != nil {
		job.Latitude = &geo.Point.Lat
		job.Longitude = &geo.Point.Lng
	}
	job.PostalCode = geo.PostalCode
	if geo.IsEmpty() {
		s.log(ctx).WithField(logger.FieldJobKey, listing.Key).
			Info("Location unresolved, keeping listing without coordinates")
		s.note(ctx, exec, domain.ActivityLevelInfo, domain.StepEnrich,
			fmt.Sprintf("%s: location unresolved, keeping without coordinates", listing.Key))
	}
	return job
}

// persistAll upserts the enriched postings. A duplicate key counts as
// success (the stored row is refreshed); any other failure is tolerated per
// entry and the run carries on.
func (s *PipelineService) persistAll(ctx context.Context, exec *domain.PipelineExecution, jobs []*domain.JobPosting) {
	for _, job := range jobs {
		if ctx.Err() != nil {
			return
		}
		if err := s.jobs.Upsert(ctx, job); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.noteFailure(ctx, exec, job.JobKey, fmt.Errorf("store: %w", err))
			continue
		}
		s.progressMu.Lock()
		exec.NewJobs++
		s.progressMu.Unlock()
	}

	s.note(ctx, exec, domain.ActivityLevelInfo, domain.StepPersist,
		fmt.Sprintf("persisted %d new jobs", exec.NewJobs))
}

// noteFailure counts one failed listing and reports it on every channel.
func (s *PipelineService) noteFailure(ctx context.Context, exec *domain.PipelineExecution, key string, err error) {
	s.log(ctx).WithError(err).WithField(logger.FieldJobKey, key).
		Warn("Failed to persist listing")

	s.progressMu.Lock()
	exec.FailedJobs++
	s.publishLocked(ctx, events.EventError, exec, domain.StepPersist, "failed "+key)
	s.progressMu.Unlock()

	s.note(ctx, exec, domain.ActivityLevelWarning, domain.StepPersist,
		fmt.Sprintf("%s: %v", key, err))
}

// finalize drives the execution to its terminal state. It writes with a
// detached context so a cancelled run can still persist its outcome.
func (s *PipelineService) finalize(ctx context.Context, exec *domain.PipelineExecution, runErr error, elapsed time.Duration) {
	base := context.WithoutCancel(ctx)
	done := time.Now()

	cancelled := ctx.Err() != nil || errors.Is(runErr, context.Canceled)
	s.progressMu.Lock()
	exec.CompletedAt = &done
	switch {
	case cancelled:
		exec.Status = domain.ExecutionStatusFailed
		exec.ErrorMessage = "cancelled"
	case runErr != nil:
		exec.Status = domain.ExecutionStatusFailed
		exec.ErrorMessage = runErr.Error()
	default:
		exec.Status = domain.ExecutionStatusCompleted
	}
	if exec.Status == domain.ExecutionStatusCompleted {
		exec.CurrentStep = phaseCompleted
	} else {
		exec.CurrentStep = phaseFailed
	}
	s.progressMu.Unlock()

	if err := s.execs.Update(base, exec); err != nil {
		s.log(base).WithError(err).Error("Failed to persist final execution state")
	}

	if exec.Status == domain.ExecutionStatusCompleted {
		s.note(base, exec, domain.ActivityLevelSuccess, domain.StepFinalize,
			fmt.Sprintf("run completed: %d new, %d removed, %d failed of %d processed",
				exec.NewJobs, exec.DeletedJobs, exec.FailedJobs, exec.ProcessedJobs))
		s.emit(base, events.EventComplete, exec, domain.StepFinalize, "run completed")
	} else {
		s.note(base, exec, domain.ActivityLevelError, domain.StepFinalize, exec.ErrorMessage)
		s.emit(base, events.EventError, exec, domain.StepFinalize, exec.ErrorMessage)
	}

	logger.With(logger.Fields{
		"status":  string(exec.Status),
		"total":   exec.TotalJobs,
		"new":     exec.NewJobs,
		"deleted": exec.DeletedJobs,
		"failed":  exec.FailedJobs,
	}).WithDuration(elapsed.Milliseconds()).Info(base, "Pipeline run finished")
}

// emit publishes a progress event with a consistent counter snapshot.
func (s *PipelineService) emit(ctx context.Context, typ events.EventType, exec *domain.PipelineExecution, step, message string) {
	s.progressMu.Lock()
	s.publishLocked(ctx, typ, exec, step, message)
	s.progressMu.Unlock()
}

// publishLocked builds and publishes one event; the caller holds progressMu.
// Percent tracks the enrichment phase, the only part of a run long enough to
// need a progress bar; complete events always read 100.
func (s *PipelineService) publishLocked(ctx context.Context, typ events.EventType, exec *domain.PipelineExecution, step, message string) {
	ev := events.NewProgress(typ, exec, step, message)
	if typ == events.EventComplete {
		ev.Percent = 100
	} else {
		ev.Percent = events.PercentOf(exec.ProcessedJobs, s.enrichTotal)
	}
	s.sink.Publish(ctx, ev)
}

// note appends an activity entry; the log is best-effort and never fails
// the run.
func (s *PipelineService) note(ctx context.Context, exec *domain.PipelineExecution, level, step, message string) {
	entry := &domain.ActivityEntry{
		ExecutionID: exec.ID,
		Level:       level,
		Step:        step,
		Message:     message,
	}
	if err := s.activity.Append(ctx, entry); err != nil {
		s.log(ctx).WithError(err).Warn("Failed to append activity entry")
	}
}

// reconcile splits the upstream batch against the stored key set: keys only
// in the store are stale, listings only upstream are new. Order of toEnrich
// follows the upstream order; duplicate upstream keys are taken once. Both
// sets come from the same snapshot pair, so they never overlap.
func reconcile(storedKeys []string, listings []source.Listing) (toDelete []string, toEnrich []source.Listing) {
	upstream := make(map[string]bool, len(listings))
	for _, l := range listings {
		upstream[l.Key] = true
	}

	stored := make(map[string]bool, len(storedKeys))
	for _, key := range storedKeys {
		stored[key] = true
		if !upstream[key] {
			toDelete = append(toDelete, key)
		}
	}

	seen := make(map[string]bool, len(listings))
	for _, l := range listings {
		if stored[l.Key] || seen[l.Key] {
			continue
		}
		seen[l.Key] = true
		toEnrich = append(toEnrich, l)
	}
	return toDelete, toEnrich
}
