package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/PurpleMyst/redditbg/internal/archive"
	"github.com/PurpleMyst/redditbg/internal/logger"
	"github.com/PurpleMyst/redditbg/internal/picker"
	"github.com/PurpleMyst/redditbg/internal/store"
)

// ApplyService turns one stored image into the active wallpaper: pick a
// candidate, copy it to the stable current-wallpaper path, hand that path to
// the setter, then retire the original from the pool (archived first when an
// archive is configured).
type ApplyService struct {
	picker      *picker.Picker
	store       *store.Store
	setter      picker.Setter
	archive     *archive.Archive
	currentPath string
	logger      *logger.Logger
}

// NewApplyService creates an apply service.
// Parameters:
//   - p: wallpaper picker.
//   - st: image store the pool lives in.
//   - setter: wallpaper setter receiving the current path.
//   - arch: archive for retired wallpapers; nil disables archiving.
//   - currentPath: where the applied wallpaper is copied for the setter;
//     resolved to an absolute path since desktop APIs tend to require one.
//   - log: logger; nil uses the default logger.
// Returns:
//   - *ApplyService: initialized service.
func NewApplyService(
	p *picker.Picker,
	st *store.Store,
	setter picker.Setter,
	arch *archive.Archive,
	currentPath string,
	log *logger.Logger,
) *ApplyService {
	if log == nil {
		log = logger.GetDefault()
	}
	if abs, err := filepath.Abs(currentPath); err == nil {
		currentPath = abs
	}
	return &ApplyService{
		picker:      p,
		store:       st,
		setter:      setter,
		archive:     arch,
		currentPath: currentPath,
		logger:      log.WithField(logger.FieldComponent, "apply"),
	}
}

// log returns a logger from context if available, otherwise the service's own.
func (s *ApplyService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// Apply picks, sets and retires one wallpaper. A setter failure leaves the
// image in the pool; retire failures are logged only, since the wallpaper is
// already on screen by then.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - error: picker.ErrNoCandidates (wrapped) when the pool has nothing
//     usable, otherwise the first pick/copy/set failure.
func (s *ApplyService) Apply(ctx context.Context) error {
	entry, err := s.picker.Pick(ctx)
	if err != nil {
		return fmt.Errorf("failed to pick a wallpaper: %w", err)
	}

	data, err := os.ReadFile(entry.Path)
	if err != nil {
		return fmt.Errorf("failed to read picked image: %w", err)
	}

	// The setter gets a stable path that outlives the pool original.
	if err := s.writeCurrent(data); err != nil {
		return err
	}

	if err := s.setter.Set(ctx, s.currentPath); err != nil {
		return fmt.Errorf("failed to set wallpaper: %w", err)
	}

	s.retire(ctx, entry, data)

	s.log(ctx).WithField(logger.FieldURL, entry.URL).Info("Applied wallpaper")
	return nil
}

// writeCurrent replaces the current-wallpaper file atomically, the same
// temp-then-rename discipline the store uses.
func (s *ApplyService) writeCurrent(data []byte) error {
	dir := filepath.Dir(s.currentPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create wallpaper directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write wallpaper: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close wallpaper file: %w", err)
	}
	if err := os.Rename(tmpName, s.currentPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace wallpaper file: %w", err)
	}
	return nil
}

// retire archives (when configured) and removes the applied image from the
// pool. The store filename goes along as the object key so the identity stays
// recoverable.
func (s *ApplyService) retire(ctx context.Context, entry store.Entry, data []byte) {
	log := s.log(ctx).WithField(logger.FieldURL, entry.URL)

	if s.archive != nil {
		key := filepath.Base(entry.Path)
		if err := s.archive.Put(ctx, key, data); err != nil {
			log.WithError(err).Warn("Failed to archive retired wallpaper")
		}
	}

	if err := s.store.Remove(ctx, entry.URL); err != nil {
		log.WithError(err).Warn("Failed to remove applied wallpaper from the pool")
		return
	}
	log.Debug("Retired applied wallpaper")
}
