package domain

import "time"

// ExecutionStatus represents the status of a pipeline execution.
// Values include ExecutionStatusRunning, ExecutionStatusCompleted, and
// ExecutionStatusFailed.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// Trigger source constants for PipelineExecution.TriggeredBy.
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
	TriggerAPI       = "api"
)

// PipelineExecution represents a single pipeline run and its progress
// metadata. TotalJobs is fixed once the fetched batch is known; the other
// counters only ever grow while the run is in flight. CurrentStep carries the
// human-readable phase label shown on the dashboard.
type PipelineExecution struct {
	ID            string          `gorm:"type:text;primaryKey" json:"id"`
	SourceName    string          `gorm:"type:text;not null;index" json:"source_name"`
	Status        ExecutionStatus `gorm:"default:running" json:"status"`
	TriggeredBy   string          `gorm:"type:text;default:manual" json:"triggered_by"`
	CurrentStep   string          `gorm:"type:text" json:"current_step"`
	BatchSize     int             `gorm:"default:0" json:"batch_size"`
	TotalJobs     int             `gorm:"default:0" json:"total_jobs"`
	ProcessedJobs int             `gorm:"default:0" json:"processed_jobs"`
	NewJobs       int             `gorm:"default:0" json:"new_jobs"`
	DeletedJobs   int             `gorm:"default:0" json:"deleted_jobs"`
	FailedJobs    int             `gorm:"default:0" json:"failed_jobs"`
	StartedAt     *time.Time      `json:"started_at,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TableName returns the database table name for PipelineExecution.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (PipelineExecution) TableName() string {
	return "pipeline_executions"
}

// Finished reports whether the execution reached a terminal status.
func (e *PipelineExecution) Finished() bool {
	return e.Status == ExecutionStatusCompleted || e.Status == ExecutionStatusFailed
}
