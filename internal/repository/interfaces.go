package repository

import (
	"context"
	"errors"

	"github.com/mmcgeh6/acjobs-engine/internal/domain"
)

// ErrNotFound is returned when a lookup matches no record, regardless of the
// backing store. Callers compare with errors.Is and never see driver errors.
var ErrNotFound = errors.New("record not found")

// JobRepository handles job posting persistence.
type JobRepository interface {
	// ListKeys returns the job keys of every stored posting.
	ListKeys(ctx context.Context) ([]string, error)

	// Upsert inserts the posting or, when its job key already exists,
	// refreshes the stored row. A duplicate key is never an error.
	Upsert(ctx context.Context, job *domain.JobPosting) error

	// DeleteByKey removes the posting with the given job key. Deleting a
	// key that is not stored is a no-op, not an error.
	DeleteByKey(ctx context.Context, key string) error

	// DeleteByKeys removes every posting whose job key is in keys and
	// returns the number of rows removed.
	DeleteByKeys(ctx context.Context, keys []string) (int64, error)

	// List returns stored postings ordered by creation time, newest first.
	List(ctx context.Context, limit, offset int) ([]domain.JobPosting, error)

	// GetByKey returns the posting with the given job key or ErrNotFound.
	GetByKey(ctx context.Context, key string) (*domain.JobPosting, error)

	// Count returns the number of stored postings.
	Count(ctx context.Context) (int64, error)
}

// ExecutionRepository handles pipeline execution records.
type ExecutionRepository interface {
	Create(ctx context.Context, exec *domain.PipelineExecution) error
	Update(ctx context.Context, exec *domain.PipelineExecution) error

	// GetLatest returns the most recently created execution or ErrNotFound.
	GetLatest(ctx context.Context) (*domain.PipelineExecution, error)

	// List returns recent executions, newest first.
	List(ctx context.Context, limit int) ([]domain.PipelineExecution, error)

	// FindActive returns an execution in a non-terminal status, or nil when
	// no run is active. Absence of an active run is not an error.
	FindActive(ctx context.Context) (*domain.PipelineExecution, error)
}

// ActivityRepository handles the append-only pipeline activity log.
type ActivityRepository interface {
	Append(ctx context.Context, entry *domain.ActivityEntry) error

	// List returns recent entries, newest first.
	List(ctx context.Context, limit int) ([]domain.ActivityEntry, error)

	// Purge removes every entry and returns the number removed.
	Purge(ctx context.Context) (int64, error)
}

// ZipRepository handles the city/state to postal-code lookup table.
type ZipRepository interface {
	// Lookup returns the postal code for a city/state pair, matched
	// case-insensitively, or ErrNotFound.
	Lookup(ctx context.Context, city, state string) (string, error)

	// SeedIfEmpty loads rows into the table when it holds no data yet.
	// Seeding an already populated table is a no-op, so the call is safe on
	// every startup.
	SeedIfEmpty(ctx context.Context, rows []domain.ZipCode) error
}
