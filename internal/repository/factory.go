package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/mmcgeh6/acjobs-engine/internal/config"
	"github.com/mmcgeh6/acjobs-engine/internal/geodata"
)

// Stores bundles the four repositories behind their interfaces so the rest of
// the application never sees which backend is in play. DB is nil for the
// memory backend.
type Stores struct {
	Jobs       JobRepository
	Executions ExecutionRepository
	Activity   ActivityRepository
	Zips       ZipRepository
	DB         *gorm.DB
}

// NewStores creates the store bundle for the configured database driver and
// runs the idempotent zip-table seed.
// Parameters:
//   - ctx: context for the seed operations.
//   - cfg: database configuration; driver selects the backend.
// Returns:
//   - *Stores: initialized store bundle.
//   - error: non-nil if the backend cannot be initialized or seeded.
func NewStores(ctx context.Context, cfg *config.DatabaseConfig) (*Stores, error) {
	var stores *Stores

	switch cfg.Driver {
	case "memory":
		stores = NewMemoryStores()
	case "postgres", "sqlite":
		db, err := InitDB(cfg)
		if err != nil {
			return nil, err
		}
		stores = &Stores{
			Jobs:       NewGormJobRepository(db),
			Executions: NewGormExecutionRepository(db),
			Activity:   NewGormActivityRepository(db),
			Zips:       NewGormZipRepository(db),
			DB:         db,
		}
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}

	if err := stores.Zips.SeedIfEmpty(ctx, geodata.SeedRows()); err != nil {
		return nil, fmt.Errorf("failed to seed zip table: %w", err)
	}

	return stores, nil
}

// NewMemoryStores creates a store bundle backed entirely by process memory.
// Used by the memory driver and by tests.
func NewMemoryStores() *Stores {
	return &Stores{
		Jobs:       NewMemoryJobRepository(),
		Executions: NewMemoryExecutionRepository(),
		Activity:   NewMemoryActivityRepository(),
		Zips:       NewMemoryZipRepository(),
	}
}
