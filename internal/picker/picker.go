package picker

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strconv"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/PurpleMyst/redditbg/internal/domain"
	"github.com/PurpleMyst/redditbg/internal/logger"
	"github.com/PurpleMyst/redditbg/internal/store"
	"github.com/corona10/goimagehash"
)

// DefaultMaxDistance is the Hamming distance at or under which two
// fingerprints count as the same wallpaper.
const DefaultMaxDistance = 8

// ErrNoCandidates means every stored image was either undecodable or
// perceptually too close to an already-applied wallpaper.
var ErrNoCandidates = errors.New("no acceptable wallpaper in the store")

// Ledger is the slice of the dedup ledger the picker needs: the applied
// fingerprints and the ability to record a new one.
type Ledger interface {
	Insert(ctx context.Context, name domain.LedgerName, url string) error
	ListURLs(ctx context.Context, name domain.LedgerName) ([]string, error)
}

// Lister is the slice of the image store the picker needs.
type Lister interface {
	List(ctx context.Context) ([]store.Entry, error)
	Remove(ctx context.Context, url string) error
}

// Picker selects the next wallpaper from the store: the first image that
// decodes and whose difference-hash fingerprint is not near any previously
// applied wallpaper. Files that fail to decode are junk in the pool and are
// deleted on sight.
type Picker struct {
	store       Lister
	ledger      Ledger
	maxDistance int
	logger      *logger.Logger
}

// New creates a Picker.
// Parameters:
//   - st: image store to pick from.
//   - ledger: ledger holding applied fingerprints.
//   - maxDistance: Hamming distance threshold; values below zero use the default.
//   - log: logger; nil uses the default logger.
// Returns:
//   - *Picker: initialized picker.
func New(st Lister, ledger Ledger, maxDistance int, log *logger.Logger) *Picker {
	if maxDistance < 0 {
		maxDistance = DefaultMaxDistance
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &Picker{
		store:       st,
		ledger:      ledger,
		maxDistance: maxDistance,
		logger:      log.WithField(logger.FieldComponent, "picker"),
	}
}

// log returns a logger from context if available, otherwise the picker's own.
func (p *Picker) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return p.logger
}

// Pick returns the first stored image that is not perceptually near any
// previously applied wallpaper and records its fingerprint as applied. The
// file itself stays in the store; retiring it is the caller's move once the
// wallpaper is actually set.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - store.Entry: the selected image.
//   - error: ErrNoCandidates when nothing in the store qualifies, otherwise a
//     ledger or store failure.
func (p *Picker) Pick(ctx context.Context) (store.Entry, error) {
	applied, err := p.appliedHashes(ctx)
	if err != nil {
		return store.Entry{}, err
	}

	entries, err := p.store.List(ctx)
	if err != nil {
		return store.Entry{}, fmt.Errorf("failed to list store: %w", err)
	}

	for _, entry := range entries {
		log := p.log(ctx).WithField(logger.FieldURL, entry.URL)

		hash, err := hashFile(entry.Path)
		if err != nil {
			log.WithError(err).Warn("Deleting undecodable stored image")
			if rerr := p.store.Remove(ctx, entry.URL); rerr != nil {
				log.WithError(rerr).Warn("Failed to delete undecodable image")
			}
			continue
		}

		if near, distance := withinDistance(hash, applied, p.maxDistance); near {
			log.WithField("distance", distance).Debug("Skipping image near an applied wallpaper")
			continue
		}

		if err := p.ledger.Insert(ctx, domain.LedgerApplied, encodeHash(hash)); err != nil {
			return store.Entry{}, fmt.Errorf("failed to record applied fingerprint: %w", err)
		}
		log.Info("Picked wallpaper")
		return entry, nil
	}

	return store.Entry{}, ErrNoCandidates
}

// appliedHashes loads and decodes the applied ledger. Rows that fail to parse
// cannot veto a candidate and are skipped with a warning.
func (p *Picker) appliedHashes(ctx context.Context) ([]*goimagehash.ImageHash, error) {
	raw, err := p.ledger.ListURLs(ctx, domain.LedgerApplied)
	if err != nil {
		return nil, fmt.Errorf("failed to list applied fingerprints: %w", err)
	}

	hashes := make([]*goimagehash.ImageHash, 0, len(raw))
	for _, s := range raw {
		h, err := decodeHash(s)
		if err != nil {
			p.log(ctx).WithError(err).WithField("entry", s).Warn("Skipping unreadable applied fingerprint")
			continue
		}
		hashes = append(hashes, h)
	}
	return hashes, nil
}

// hashFile computes the difference-hash fingerprint of an image file.
func hashFile(path string) (*goimagehash.ImageHash, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	hash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint image: %w", err)
	}
	return hash, nil
}

// withinDistance reports whether candidate sits within maxDistance of any
// applied fingerprint, and at what distance.
func withinDistance(candidate *goimagehash.ImageHash, applied []*goimagehash.ImageHash, maxDistance int) (bool, int) {
	for _, h := range applied {
		d, err := candidate.Distance(h)
		if err != nil {
			// Mismatched hash kinds cannot veto a candidate.
			continue
		}
		if d <= maxDistance {
			return true, d
		}
	}
	return false, 0
}

// encodeHash renders a fingerprint as the hex string stored in the ledger.
func encodeHash(h *goimagehash.ImageHash) string {
	return strconv.FormatUint(h.GetHash(), 16)
}

// decodeHash parses a ledger row back into a fingerprint.
func decodeHash(s string) (*goimagehash.ImageHash, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored fingerprint: %w", err)
	}
	return goimagehash.NewImageHash(v, goimagehash.DHash), nil
}
