package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmcgeh6/acjobs-engine/internal/domain"
)

// The memory backend keeps every store in process-local maps. It backs the
// "memory" database driver and the service tests, and must match the SQL
// backend's observable behavior: upserts preserve row identity, lookups are
// case-insensitive where the SQL queries are, listing is newest first.

// MemoryJobRepository is the in-memory JobRepository implementation.
type MemoryJobRepository struct {
	mu    sync.RWMutex
	jobs  map[string]domain.JobPosting
	order []string // job keys in insertion order
}

// NewMemoryJobRepository creates an empty in-memory job store.
func NewMemoryJobRepository() *MemoryJobRepository {
	return &MemoryJobRepository{jobs: make(map[string]domain.JobPosting)}
}

// ListKeys returns the job keys of every stored posting.
func (r *MemoryJobRepository) ListKeys(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, len(r.order))
	copy(keys, r.order)
	return keys, nil
}

// Upsert creates or refreshes a posting keyed by JobKey. The stored row's ID
// and creation time survive a conflict, mirroring the SQL upsert.
func (r *MemoryJobRepository) Upsert(ctx context.Context, job *domain.JobPosting) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	stored := *job
	if existing, ok := r.jobs[job.JobKey]; ok {
		stored.ID = existing.ID
		stored.CreatedAt = existing.CreatedAt
	} else {
		if stored.ID == "" {
			stored.ID = uuid.New().String()
		}
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = now
		}
		r.order = append(r.order, job.JobKey)
	}
	stored.UpdatedAt = now
	r.jobs[job.JobKey] = stored
	return nil
}

// DeleteByKey removes one posting by job key. A missing key is a no-op.
func (r *MemoryJobRepository) DeleteByKey(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[key]; !ok {
		return nil
	}
	delete(r.jobs, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// DeleteByKeys removes postings by job key and reports how many existed.
func (r *MemoryJobRepository) DeleteByKeys(ctx context.Context, keys []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	remove := make(map[string]bool, len(keys))
	for _, key := range keys {
		if _, ok := r.jobs[key]; ok {
			delete(r.jobs, key)
			remove[key] = true
			deleted++
		}
	}
	if deleted > 0 {
		kept := r.order[:0]
		for _, key := range r.order {
			if !remove[key] {
				kept = append(kept, key)
			}
		}
		r.order = kept
	}
	return deleted, nil
}

// List returns stored postings, newest first.
func (r *MemoryJobRepository) List(ctx context.Context, limit, offset int) ([]domain.JobPosting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var jobs []domain.JobPosting
	for i := len(r.order) - 1 - offset; i >= 0 && len(jobs) < limit; i-- {
		jobs = append(jobs, r.jobs[r.order[i]])
	}
	return jobs, nil
}

// GetByKey returns the posting with the given job key or ErrNotFound.
func (r *MemoryJobRepository) GetByKey(ctx context.Context, key string) (*domain.JobPosting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &job, nil
}

// Count returns the number of stored postings.
func (r *MemoryJobRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.jobs)), nil
}

// MemoryExecutionRepository is the in-memory ExecutionRepository implementation.
type MemoryExecutionRepository struct {
	mu    sync.RWMutex
	execs map[string]domain.PipelineExecution
	order []string // execution IDs in creation order
}

// NewMemoryExecutionRepository creates an empty in-memory execution store.
func NewMemoryExecutionRepository() *MemoryExecutionRepository {
	return &MemoryExecutionRepository{execs: make(map[string]domain.PipelineExecution)}
}

// Create inserts a new execution record.
func (r *MemoryExecutionRepository) Create(ctx context.Context, exec *domain.PipelineExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if exec.ID == "" {
		exec.ID = uuid.New().String()
	}
	now := time.Now()
	if exec.CreatedAt.IsZero() {
		exec.CreatedAt = now
	}
	exec.UpdatedAt = now
	r.execs[exec.ID] = *exec
	r.order = append(r.order, exec.ID)
	return nil
}

// Update persists the current state of an execution record.
func (r *MemoryExecutionRepository) Update(ctx context.Context, exec *domain.PipelineExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	exec.UpdatedAt = time.Now()
	r.execs[exec.ID] = *exec
	return nil
}

// GetLatest returns the most recently created execution or ErrNotFound.
func (r *MemoryExecutionRepository) GetLatest(ctx context.Context) (*domain.PipelineExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.order) == 0 {
		return nil, ErrNotFound
	}
	exec := r.execs[r.order[len(r.order)-1]]
	return &exec, nil
}

// List returns recent executions, newest first.
func (r *MemoryExecutionRepository) List(ctx context.Context, limit int) ([]domain.PipelineExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var execs []domain.PipelineExecution
	for i := len(r.order) - 1; i >= 0 && len(execs) < limit; i-- {
		execs = append(execs, r.execs[r.order[i]])
	}
	return execs, nil
}

// FindActive returns an execution in a non-terminal status, or nil when no
// run is active.
func (r *MemoryExecutionRepository) FindActive(ctx context.Context) (*domain.PipelineExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.order) - 1; i >= 0; i-- {
		exec := r.execs[r.order[i]]
		if !exec.Finished() {
			return &exec, nil
		}
	}
	return nil, nil
}

// MemoryActivityRepository is the in-memory ActivityRepository implementation.
type MemoryActivityRepository struct {
	mu      sync.RWMutex
	entries []domain.ActivityEntry
}

// NewMemoryActivityRepository creates an empty in-memory activity log.
func NewMemoryActivityRepository() *MemoryActivityRepository {
	return &MemoryActivityRepository{}
}

// Append inserts a new activity entry.
func (r *MemoryActivityRepository) Append(ctx context.Context, entry *domain.ActivityEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	r.entries = append(r.entries, *entry)
	return nil
}

// List returns recent entries, newest first.
func (r *MemoryActivityRepository) List(ctx context.Context, limit int) ([]domain.ActivityEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var entries []domain.ActivityEntry
	for i := len(r.entries) - 1; i >= 0 && len(entries) < limit; i-- {
		entries = append(entries, r.entries[i])
	}
	return entries, nil
}

// Purge removes every entry and returns the number removed.
func (r *MemoryActivityRepository) Purge(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	purged := int64(len(r.entries))
	r.entries = nil
	return purged, nil
}

// MemoryZipRepository is the in-memory ZipRepository implementation.
type MemoryZipRepository struct {
	mu   sync.RWMutex
	zips map[string]string // "city|state" lowercased -> zip
}

// NewMemoryZipRepository creates an empty in-memory zip table.
func NewMemoryZipRepository() *MemoryZipRepository {
	return &MemoryZipRepository{zips: make(map[string]string)}
}

// Lookup returns the postal code for a city/state pair or ErrNotFound.
func (r *MemoryZipRepository) Lookup(ctx context.Context, city, state string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	zip, ok := r.zips[memoryZipKey(city, state)]
	if !ok {
		return "", ErrNotFound
	}
	return zip, nil
}

// SeedIfEmpty loads rows into the table when it holds no data yet.
func (r *MemoryZipRepository) SeedIfEmpty(ctx context.Context, rows []domain.ZipCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.zips) > 0 {
		return nil
	}
	for _, row := range rows {
		r.zips[memoryZipKey(row.City, row.State)] = row.Zip
	}
	return nil
}

func memoryZipKey(city, state string) string {
	return strings.ToLower(strings.TrimSpace(city)) + "|" + strings.ToLower(strings.TrimSpace(state))
}
