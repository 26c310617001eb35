package domain

import "time"

// Activity log levels.
const (
	ActivityLevelInfo    = "info"
	ActivityLevelWarning = "warning"
	ActivityLevelError   = "error"
	ActivityLevelSuccess = "success"
)

// Pipeline step names recorded in the activity log.
const (
	StepInit      = "initialize"
	StepFetch     = "fetch"
	StepReconcile = "reconcile"
	StepDelete    = "delete"
	StepEnrich    = "enrich"
	StepPersist   = "persist"
	StepFinalize  = "finalize"
)

// ActivityEntry represents one append-only line in the pipeline activity log.
// Entries are scoped to the execution that produced them so a run's history
// can be replayed after the fact.
type ActivityEntry struct {
	ID          string    `gorm:"type:text;primaryKey" json:"id"`
	ExecutionID string    `gorm:"type:text;not null;index:idx_activity_entries_execution" json:"execution_id"`
	Level       string    `gorm:"type:text;not null;default:info" json:"level"`
	Step        string    `gorm:"type:text;not null" json:"step"`
	Message     string    `gorm:"type:text;not null" json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the database table name for ActivityEntry.
func (ActivityEntry) TableName() string {
	return "activity_entries"
}
