package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mmcgeh6/acjobs-engine/internal/domain"
)

// GormActivityRepository handles activity log entries on a SQL database.
type GormActivityRepository struct {
	db *gorm.DB
}

// NewGormActivityRepository creates a new GormActivityRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *GormActivityRepository: repository instance bound to db.
func NewGormActivityRepository(db *gorm.DB) *GormActivityRepository {
	return &GormActivityRepository{db: db}
}

// Append inserts a new activity entry. An empty ID is assigned here so
// callers can construct entries without caring about identity.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - entry: activity entry to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *GormActivityRepository) Append(ctx context.Context, entry *domain.ActivityEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

// List retrieves recent activity entries, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of entries to return.
// Returns:
//   - []domain.ActivityEntry: matching entries.
//   - error: non-nil if the query fails.
func (r *GormActivityRepository) List(ctx context.Context, limit int) ([]domain.ActivityEntry, error) {
	var entries []domain.ActivityEntry
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// Purge removes every activity entry.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - int64: number of entries removed.
//   - error: non-nil if the delete fails.
func (r *GormActivityRepository) Purge(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("1 = 1").
		Delete(&domain.ActivityEntry{})
	return res.RowsAffected, res.Error
}
