package store

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// storageExt is the extension every persisted image carries; the pipeline
// re-encodes accepted images to PNG before writing.
const storageExt = ".png"

// Entry is one persisted image: the reference identity it came from and the
// file that holds it.
type Entry struct {
	URL  string
	Path string
}

// Store is a directory of persisted wallpaper images. Filenames are the
// url-safe base64 encoding of the reference identity, which keeps them
// collision-resistant and lets the ledger be rebuilt from a directory scan.
type Store struct {
	dir string
}

// New creates the store directory if needed and returns an accessor for it.
// Parameters:
//   - dir: directory that holds the image pool.
// Returns:
//   - *Store: store accessor bound to dir.
//   - error: non-nil if the directory cannot be created.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store directory path.
func (s *Store) Dir() string {
	return s.dir
}

// fileName encodes a reference identity into its on-disk name.
func fileName(url string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(url)) + storageExt
}

// decodeName recovers the reference identity from an on-disk name.
func decodeName(name string) (string, bool) {
	if !strings.HasSuffix(name, storageExt) {
		return "", false
	}
	stem := strings.TrimSuffix(name, storageExt)
	buf, err := base64.RawURLEncoding.DecodeString(stem)
	if err != nil {
		return "", false
	}
	return string(buf), true
}

// List returns every persisted image with its decoded identity. Files whose
// names do not decode (leftover temp files, foreign files) are skipped.
// Parameters:
//   - ctx: context for cancellation (unused for local reads).
// Returns:
//   - []Entry: persisted images.
//   - error: non-nil if the directory cannot be read.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read store directory: %w", err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		url, ok := decodeName(de.Name())
		if !ok {
			continue
		}
		entries = append(entries, Entry{
			URL:  url,
			Path: filepath.Join(s.dir, de.Name()),
		})
	}
	return entries, nil
}

// Identities returns the decoded identity of every persisted image.
// Parameters:
//   - ctx: context for cancellation (unused for local reads).
// Returns:
//   - []string: reference identities.
//   - error: non-nil if the directory cannot be read.
func (s *Store) Identities(ctx context.Context) ([]string, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(entries))
	for _, e := range entries {
		urls = append(urls, e.URL)
	}
	return urls, nil
}

// Count returns the number of currently persisted images.
// Parameters:
//   - ctx: context for cancellation (unused for local reads).
// Returns:
//   - int: image count.
//   - error: non-nil if the directory cannot be read.
func (s *Store) Count(ctx context.Context) (int, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Write persists image bytes under the identity's name atomically: the data
// goes to a temp file in the same directory, is synced, and only then renamed
// into place. An interrupted write leaves a temp file behind but never a
// partially-written image under the final name.
// Parameters:
//   - ctx: context for cancellation (unused for local writes).
//   - url: reference identity the bytes belong to.
//   - data: encoded image bytes.
// Returns:
//   - string: final file path.
//   - error: non-nil if any step of the write fails.
func (s *Store) Write(ctx context.Context, url string, data []byte) (string, error) {
	tmp, err := os.CreateTemp(s.dir, "tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}

	dst := filepath.Join(s.dir, fileName(url))
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to persist image: %w", err)
	}
	return dst, nil
}

// Remove deletes the persisted image for the given identity.
// Parameters:
//   - ctx: context for cancellation (unused for local writes).
//   - url: reference identity to remove.
// Returns:
//   - error: non-nil if the delete fails.
func (s *Store) Remove(ctx context.Context, url string) error {
	if err := os.Remove(filepath.Join(s.dir, fileName(url))); err != nil {
		return fmt.Errorf("failed to remove image: %w", err)
	}
	return nil
}
