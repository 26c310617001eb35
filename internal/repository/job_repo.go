package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mmcgeh6/acjobs-engine/internal/domain"
)

// GormJobRepository handles job posting persistence on a SQL database.
type GormJobRepository struct {
	db *gorm.DB
}

// NewGormJobRepository creates a new GormJobRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *GormJobRepository: repository instance bound to db.
func NewGormJobRepository(db *gorm.DB) *GormJobRepository {
	return &GormJobRepository{db: db}
}

// ListKeys returns the job keys of every stored posting.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - []string: stored job keys.
//   - error: non-nil if the query fails.
func (r *GormJobRepository) ListKeys(ctx context.Context) ([]string, error) {
	var keys []string
	if err := r.db.WithContext(ctx).
		Model(&domain.JobPosting{}).
		Pluck("job_key", &keys).Error; err != nil {
		return nil, fmt.Errorf("failed to list job keys: %w", err)
	}
	return keys, nil
}

// Upsert creates or refreshes a posting keyed by job_key. The stored row's
// ID and creation time survive a conflict; everything else is replaced.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - job: posting to create or update.
// Returns:
//   - error: non-nil if the upsert fails.
func (r *GormJobRepository) Upsert(ctx context.Context, job *domain.JobPosting) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "job_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "company_name", "url", "description",
			"raw_city", "raw_state", "raw_country",
			"city", "state", "country",
			"latitude", "longitude", "postal_code",
			"source_name", "updated_at",
		}),
	}).Create(job).Error
}

// DeleteByKey removes one posting by job key. A missing key is a no-op.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - key: job key to delete.
// Returns:
//   - error: non-nil if the delete fails.
func (r *GormJobRepository) DeleteByKey(ctx context.Context, key string) error {
	if err := r.db.WithContext(ctx).
		Where("job_key = ?", key).
		Delete(&domain.JobPosting{}).Error; err != nil {
		return fmt.Errorf("failed to delete posting %s: %w", key, err)
	}
	return nil
}

// DeleteByKeys removes postings by job key.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - keys: job keys to delete.
// Returns:
//   - int64: number of rows removed.
//   - error: non-nil if any delete fails.
func (r *GormJobRepository) DeleteByKeys(ctx context.Context, keys []string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	// Chunked to stay under SQLite's bound-parameter limit.
	const chunkSize = 500
	var deleted int64
	for start := 0; start < len(keys); start += chunkSize {
		end := start + chunkSize
		if end > len(keys) {
			end = len(keys)
		}
		res := r.db.WithContext(ctx).
			Where("job_key IN ?", keys[start:end]).
			Delete(&domain.JobPosting{})
		if res.Error != nil {
			return deleted, fmt.Errorf("failed to delete postings: %w", res.Error)
		}
		deleted += res.RowsAffected
	}
	return deleted, nil
}

// List retrieves postings with pagination, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of records to return.
//   - offset: number of records to skip.
// Returns:
//   - []domain.JobPosting: matching postings.
//   - error: non-nil if the query fails.
func (r *GormJobRepository) List(ctx context.Context, limit, offset int) ([]domain.JobPosting, error) {
	var jobs []domain.JobPosting
	if err := r.db.WithContext(ctx).
		Limit(limit).
		Offset(offset).
		Order("created_at DESC").
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// GetByKey retrieves a posting by its job key.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - key: upstream job key.
// Returns:
//   - *domain.JobPosting: posting if found.
//   - error: ErrNotFound when no posting matches; other errors pass through.
func (r *GormJobRepository) GetByKey(ctx context.Context, key string) (*domain.JobPosting, error) {
	var job domain.JobPosting
	if err := r.db.WithContext(ctx).First(&job, "job_key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

// Count returns the number of stored postings.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - int64: posting count.
//   - error: non-nil if the query fails.
func (r *GormJobRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.JobPosting{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
