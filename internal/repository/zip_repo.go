package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mmcgeh6/acjobs-engine/internal/domain"
)

// GormZipRepository handles the postal-code lookup table on a SQL database.
type GormZipRepository struct {
	db *gorm.DB
}

// NewGormZipRepository creates a new GormZipRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *GormZipRepository: repository instance bound to db.
func NewGormZipRepository(db *gorm.DB) *GormZipRepository {
	return &GormZipRepository{db: db}
}

// Lookup retrieves the postal code for a city/state pair, case-insensitively.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - city: city name.
//   - state: state code or name as stored.
// Returns:
//   - string: postal code if the pair is in the table.
//   - error: ErrNotFound when no row matches; other errors pass through.
func (r *GormZipRepository) Lookup(ctx context.Context, city, state string) (string, error) {
	var row domain.ZipCode
	if err := r.db.WithContext(ctx).
		Where("LOWER(city) = LOWER(?) AND LOWER(state) = LOWER(?)", city, state).
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return row.Zip, nil
}

// SeedIfEmpty loads rows into the table when it holds no data yet. Seeding an
// already populated table is a no-op, which makes the call idempotent across
// restarts.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - rows: seed rows; IDs are assigned here when empty.
// Returns:
//   - error: non-nil if the count or insert fails.
func (r *GormZipRepository) SeedIfEmpty(ctx context.Context, rows []domain.ZipCode) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.ZipCode{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count zip codes: %w", err)
	}
	if count > 0 || len(rows) == 0 {
		return nil
	}

	for i := range rows {
		if rows[i].ID == "" {
			rows[i].ID = uuid.New().String()
		}
	}
	if err := r.db.WithContext(ctx).CreateInBatches(rows, 100).Error; err != nil {
		return fmt.Errorf("failed to seed zip codes: %w", err)
	}
	return nil
}
