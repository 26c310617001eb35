package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/mmcgeh6/acjobs-engine/internal/domain"
)

// GormExecutionRepository handles pipeline execution records on a SQL database.
type GormExecutionRepository struct {
	db *gorm.DB
}

// NewGormExecutionRepository creates a new GormExecutionRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *GormExecutionRepository: repository instance bound to db.
func NewGormExecutionRepository(db *gorm.DB) *GormExecutionRepository {
	return &GormExecutionRepository{db: db}
}

// Create inserts a new execution record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - exec: execution record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *GormExecutionRepository) Create(ctx context.Context, exec *domain.PipelineExecution) error {
	return r.db.WithContext(ctx).Create(exec).Error
}

// Update persists the current state of an execution record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - exec: execution record with updated fields.
// Returns:
//   - error: non-nil if the update fails.
func (r *GormExecutionRepository) Update(ctx context.Context, exec *domain.PipelineExecution) error {
	return r.db.WithContext(ctx).Save(exec).Error
}

// GetLatest retrieves the most recently created execution.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - *domain.PipelineExecution: latest execution if any exists.
//   - error: ErrNotFound when no execution has been recorded yet.
func (r *GormExecutionRepository) GetLatest(ctx context.Context) (*domain.PipelineExecution, error) {
	var exec domain.PipelineExecution
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		First(&exec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &exec, nil
}

// List retrieves recent executions, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of records to return.
// Returns:
//   - []domain.PipelineExecution: matching executions.
//   - error: non-nil if the query fails.
func (r *GormExecutionRepository) List(ctx context.Context, limit int) ([]domain.PipelineExecution, error) {
	var execs []domain.PipelineExecution
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&execs).Error; err != nil {
		return nil, err
	}
	return execs, nil
}

// FindActive retrieves an execution that has not reached a terminal status.
// No active run is a normal state, not an error.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - *domain.PipelineExecution: active execution or nil.
//   - error: non-nil if the query fails.
func (r *GormExecutionRepository) FindActive(ctx context.Context) (*domain.PipelineExecution, error) {
	var exec domain.PipelineExecution
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.ExecutionStatusRunning).
		Order("created_at DESC").
		First(&exec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &exec, nil
}
