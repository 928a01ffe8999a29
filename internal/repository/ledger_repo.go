package repository

import (
	"context"
	"fmt"

	"github.com/PurpleMyst/redditbg/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StoreLister is the slice of the image store the ledger needs for
// reconciliation: the identities of every image currently persisted.
type StoreLister interface {
	Identities(ctx context.Context) ([]string, error)
}

// LedgerRepository handles the durable reference ledgers. Every write commits
// its own transaction, so a fresh process start sees exactly the entries
// written before the previous one stopped.
type LedgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a new LedgerRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *LedgerRepository: repository instance bound to db.
func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Contains reports whether url is recorded under any of the given ledger names.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - url: reference identity to look up.
//   - names: ledger names to check.
// Returns:
//   - bool: true if the url appears under at least one name.
//   - error: non-nil if the lookup fails.
func (r *LedgerRepository) Contains(ctx context.Context, url string, names ...domain.LedgerName) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.LedgerEntry{}).
		Where("name IN ? AND url = ?", names, url).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check ledger: %w", err)
	}
	return count > 0, nil
}

// Insert records url under the given ledger name. Duplicate inserts are
// no-ops, not errors.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - name: ledger name to record under.
//   - url: reference identity to record.
// Returns:
//   - error: non-nil if the insert fails.
func (r *LedgerRepository) Insert(ctx context.Context, name domain.LedgerName, url string) error {
	entry := &domain.LedgerEntry{Name: name, URL: url}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}, {Name: "url"}},
		DoNothing: true,
	}).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

// InsertAll records every url under the given ledger name in one statement.
// Already-present urls are skipped.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - name: ledger name to record under.
//   - urls: reference identities to record.
// Returns:
//   - error: non-nil if the insert fails.
func (r *LedgerRepository) InsertAll(ctx context.Context, name domain.LedgerName, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	entries := make([]domain.LedgerEntry, 0, len(urls))
	for _, url := range urls {
		entries = append(entries, domain.LedgerEntry{Name: name, URL: url})
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}, {Name: "url"}},
		DoNothing: true,
	}).Create(&entries).Error; err != nil {
		return fmt.Errorf("failed to insert ledger entries: %w", err)
	}
	return nil
}

// ReconcileFromStore registers every image currently in the store as
// downloaded. Running it twice leaves the ledger in the same state as once,
// which makes it safe to call at the start of every run to recover from a
// crash that skipped persistence.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - store: image store to scan.
// Returns:
//   - error: non-nil if the scan or insert fails.
func (r *LedgerRepository) ReconcileFromStore(ctx context.Context, store StoreLister) error {
	urls, err := store.Identities(ctx)
	if err != nil {
		return fmt.Errorf("failed to list store identities: %w", err)
	}
	return r.InsertAll(ctx, domain.LedgerDownloaded, urls)
}

// Count returns the number of entries under the given ledger name.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - name: ledger name to count.
// Returns:
//   - int64: number of entries.
//   - error: non-nil if the query fails.
func (r *LedgerRepository) Count(ctx context.Context, name domain.LedgerName) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.LedgerEntry{}).
		Where("name = ?", name).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}
	return count, nil
}

// ListURLs returns every url recorded under the given ledger name.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - name: ledger name to list.
// Returns:
//   - []string: recorded urls.
//   - error: non-nil if the query fails.
func (r *LedgerRepository) ListURLs(ctx context.Context, name domain.LedgerName) ([]string, error) {
	var urls []string
	if err := r.db.WithContext(ctx).Model(&domain.LedgerEntry{}).
		Where("name = ?", name).
		Order("created_at ASC").
		Pluck("url", &urls).Error; err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	return urls, nil
}
