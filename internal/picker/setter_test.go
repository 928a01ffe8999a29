package picker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestBuildArgv(t *testing.T) {
	tests := []struct {
		name string
		argv []string
		path string
		want []string
	}{
		{
			name: "placeholder replaced in place",
			argv: []string{"feh", "--bg-fill", "{path}"},
			path: "/tmp/wall.png",
			want: []string{"feh", "--bg-fill", "/tmp/wall.png"},
		},
		{
			name: "placeholder inside a larger argument",
			argv: []string{"gsettings", "set", "org.gnome.desktop.background", "picture-uri", "file://{path}"},
			path: "/tmp/wall.png",
			want: []string{"gsettings", "set", "org.gnome.desktop.background", "picture-uri", "file:///tmp/wall.png"},
		},
		{
			name: "no placeholder appends the path",
			argv: []string{"swaybg", "-i"},
			path: "/tmp/wall.png",
			want: []string{"swaybg", "-i", "/tmp/wall.png"},
		},
		{
			name: "multiple placeholders all replaced",
			argv: []string{"setter", "{path}", "{path}"},
			path: "/tmp/wall.png",
			want: []string{"setter", "/tmp/wall.png", "/tmp/wall.png"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildArgv(tt.argv, tt.path)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("arg %d: expected %q, got %q", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestNewCommandSetterRejectsEmptyArgv(t *testing.T) {
	if _, err := NewCommandSetter(nil, nil); err == nil {
		t.Error("expected an error for an empty setter command")
	}
}

func TestCommandSetterRunsCommand(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "applied.txt")

	s, err := NewCommandSetter([]string{"cp", "{path}", marker}, nil)
	if err != nil {
		t.Fatalf("failed to create setter: %v", err)
	}

	wall := filepath.Join(t.TempDir(), "wall.png")
	if err := os.WriteFile(wall, []byte("image bytes"), 0644); err != nil {
		t.Fatalf("failed to write wallpaper file: %v", err)
	}

	if err := s.Set(context.Background(), wall); err != nil {
		t.Fatalf("expected the command to run, got %v", err)
	}
	data, err := os.ReadFile(marker)
	if err != nil {
		t.Fatalf("expected the command's effect: %v", err)
	}
	if string(data) != "image bytes" {
		t.Errorf("unexpected marker content %q", data)
	}
}

func TestCommandSetterReportsFailure(t *testing.T) {
	s, err := NewCommandSetter([]string{"cp", "{path}", "/nonexistent-dir/nowhere/applied.txt"}, nil)
	if err != nil {
		t.Fatalf("failed to create setter: %v", err)
	}
	if err := s.Set(context.Background(), filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("expected a failing command to surface an error")
	}
}

func TestNopSetter(t *testing.T) {
	if err := (NopSetter{}).Set(context.Background(), "/tmp/wall.png"); err != nil {
		t.Errorf("expected NopSetter to succeed, got %v", err)
	}
}
