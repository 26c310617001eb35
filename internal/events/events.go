// Package events carries pipeline progress out of the engine. The pipeline
// publishes a ProgressEvent after every step transition and every processed
// listing; sinks decide where the events go. The websocket Hub streams them
// to dashboard clients, NopSink discards them for one-shot CLI runs.
package events

import (
	"context"
	"time"

	"github.com/mmcgeh6/acjobs-engine/internal/domain"
)

// EventType classifies a progress event.
type EventType string

const (
	// EventStatus reports counter movement while a run is in flight.
	EventStatus EventType = "status"
	// EventComplete reports a run that reached the completed state.
	EventComplete EventType = "complete"
	// EventError reports a failure: a non-fatal step error mid-run, or the
	// run itself reaching the failed state.
	EventError EventType = "error"
)

// ProgressEvent is a point-in-time snapshot of one pipeline run. Percent
// tracks the enrichment phase, the only part of a run long enough to need a
// progress bar; complete events always carry 100.
type ProgressEvent struct {
	Type          EventType              `json:"type"`
	ExecutionID   string                 `json:"execution_id"`
	Status        domain.ExecutionStatus `json:"status"`
	Step          string                 `json:"step,omitempty"`
	Message       string                 `json:"message,omitempty"`
	Percent       int                    `json:"progress_percent"`
	TotalJobs     int                    `json:"total_jobs"`
	ProcessedJobs int                    `json:"processed_jobs"`
	NewJobs       int                    `json:"new_jobs"`
	DeletedJobs   int                    `json:"deleted_jobs"`
	FailedJobs    int                    `json:"failed_jobs"`
	Timestamp     time.Time              `json:"timestamp"`
}

// NewProgress snapshots an execution into an event. Percent is left at zero;
// the publisher sets it because the denominator (entries awaiting enrichment)
// is not part of the execution record.
// Parameters:
//   - typ: event classification.
//   - exec: execution whose counters are copied.
//   - step: pipeline step the event belongs to, may be empty.
//   - message: human-readable detail, may be empty.
//
// Returns:
//   - ProgressEvent: snapshot stamped with the current time.
func NewProgress(typ EventType, exec *domain.PipelineExecution, step, message string) ProgressEvent {
	return ProgressEvent{
		Type:          typ,
		ExecutionID:   exec.ID,
		Status:        exec.Status,
		Step:          step,
		Message:       message,
		TotalJobs:     exec.TotalJobs,
		ProcessedJobs: exec.ProcessedJobs,
		NewJobs:       exec.NewJobs,
		DeletedJobs:   exec.DeletedJobs,
		FailedJobs:    exec.FailedJobs,
		Timestamp:     time.Now().UTC(),
	}
}

// PercentOf returns done as a whole percentage of total, clamped to 0-100.
// A zero or negative total maps to 0.
func PercentOf(done, total int) int {
	if total <= 0 {
		return 0
	}
	pct := done * 100 / total
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// ProgressSink receives progress events. Publish must be safe for concurrent
// use and must never block the pipeline for long; slow consumers drop.
type ProgressSink interface {
	Publish(ctx context.Context, event ProgressEvent)
}

// NopSink discards all events.
type NopSink struct{}

// Publish implements ProgressSink.
func (NopSink) Publish(context.Context, ProgressEvent) {}
