package repository

import (
	"context"

	"github.com/PurpleMyst/redditbg/internal/domain"
	"gorm.io/gorm"
)

// RunRepository handles acquisition run records.
type RunRepository struct {
	db *gorm.DB
}

// NewRunRepository creates a new RunRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *RunRepository: repository instance bound to db.
func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new run record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - run: run record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *RunRepository) Create(ctx context.Context, run *domain.FetchRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// Update updates an existing run record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - run: run record with updated fields.
// Returns:
//   - error: non-nil if the update fails.
func (r *RunRepository) Update(ctx context.Context, run *domain.FetchRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

// ListRecent retrieves the most recent run records.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of records to return.
// Returns:
//   - []domain.FetchRun: matching run records, newest first.
//   - error: non-nil if the query fails.
func (r *RunRepository) ListRecent(ctx context.Context, limit int) ([]domain.FetchRun, error) {
	var runs []domain.FetchRun
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
