package store

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteThenListRoundtrip(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	ctx := context.Background()

	const url = "https://i.redd.it/some-image.png"
	data := []byte("not really a png, but bytes are bytes")

	path, err := s.Write(ctx, url, data)
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if filepath.Ext(path) != ".png" {
		t.Errorf("expected .png extension, got %q", path)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read back: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("persisted bytes differ from written bytes")
	}

	entries, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].URL != url {
		t.Errorf("identity roundtrip failed: got %q, want %q", entries[0].URL, url)
	}
	if entries[0].Path != path {
		t.Errorf("entry path %q does not match written path %q", entries[0].Path, path)
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if _, err := s.Write(context.Background(), "https://i.redd.it/a.png", []byte("data")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir failed: %v", err)
	}
	for _, de := range dirEntries {
		if strings.HasPrefix(de.Name(), "tmp-") {
			t.Errorf("temp file %q left behind after successful write", de.Name())
		}
	}
}

func TestListSkipsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	ctx := context.Background()

	if _, err := s.Write(ctx, "https://i.redd.it/keep.png", []byte("x")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	// A leftover temp file from an interrupted write and a file whose stem is
	// not valid base64 must both be invisible to the accessor.
	for _, name := range []string{"tmp-123456", "!!not-base64!!.png", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("junk"), 0644); err != nil {
			t.Fatalf("failed to plant %q: %v", name, err)
		}
	}

	entries, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}
}

func TestIdentitiesMatchListing(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	ctx := context.Background()

	urls := []string{
		"https://i.redd.it/one.png",
		"https://i.imgur.com/two.jpg",
	}
	for _, u := range urls {
		if _, err := s.Write(ctx, u, []byte(u)); err != nil {
			t.Fatalf("write %q failed: %v", u, err)
		}
	}

	ids, err := s.Identities(ctx)
	if err != nil {
		t.Fatalf("identities failed: %v", err)
	}
	if len(ids) != len(urls) {
		t.Fatalf("expected %d identities, got %d", len(urls), len(ids))
	}

	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	for _, u := range urls {
		if !seen[u] {
			t.Errorf("identity %q missing", u)
		}
	}
}

func TestRemove(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	ctx := context.Background()

	const url = "https://i.redd.it/gone.png"
	if _, err := s.Write(ctx, url, []byte("x")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := s.Remove(ctx, url); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected empty store after remove, got %d entries", count)
	}
}

func TestFileNameRoundtrip(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"plain", "https://i.redd.it/abc.png"},
		{"query string", "https://preview.redd.it/x.jpg?width=1080&format=pjpg&auto=webp&s=deadbeef"},
		{"unicode", "https://example.com/éè"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := decodeName(fileName(tt.url))
			if !ok {
				t.Fatalf("decodeName rejected its own encoding for %q", tt.url)
			}
			if got != tt.url {
				t.Errorf("roundtrip = %q, want %q", got, tt.url)
			}
		})
	}
}
