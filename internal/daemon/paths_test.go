package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomo-sh/tomo/internal/config"
)

func TestResolvePaths_Relative(t *testing.T) {
	paths := config.PathsConfig{
		Socket: ".tomo/tomo.sock",
		PID:    ".tomo/tomo.pid",
		Log:    ".tomo/tomo.log",
		DB:     ".tomo/tasks.db",
	}

	resolved, err := ResolvePaths(paths, "/project")
	if err != nil {
		t.Fatalf("ResolvePaths: %v", err)
	}

	if resolved.Socket != "/project/.tomo/tomo.sock" {
		t.Errorf("unexpected socket path %q", resolved.Socket)
	}
	if resolved.DB != "/project/.tomo/tasks.db" {
		t.Errorf("unexpected db path %q", resolved.DB)
	}
}

func TestResolvePaths_AbsoluteUnchanged(t *testing.T) {
	paths := config.PathsConfig{
		Socket: "/var/run/tomo.sock",
		PID:    ".tomo/tomo.pid",
	}

	resolved, err := ResolvePaths(paths, "/project")
	if err != nil {
		t.Fatalf("ResolvePaths: %v", err)
	}

	if resolved.Socket != "/var/run/tomo.sock" {
		t.Errorf("absolute path was rewritten: %q", resolved.Socket)
	}
	if resolved.PID != "/project/.tomo/tomo.pid" {
		t.Errorf("relative path not resolved: %q", resolved.PID)
	}
}

func TestFindProjectRoot_MarkerFound(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".tomo"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	got := FindProjectRoot(nested)
	// Resolve symlinks for comparison (macOS tempdirs live under /var -> /private/var).
	want, _ := filepath.EvalSymlinks(root)
	gotResolved, _ := filepath.EvalSymlinks(got)
	if gotResolved != want {
		t.Errorf("expected project root %q, got %q", want, gotResolved)
	}
}

func TestFindProjectRoot_NoMarker(t *testing.T) {
	dir := t.TempDir()

	got := FindProjectRoot(dir)
	want, _ := filepath.Abs(dir)
	if got != want {
		t.Errorf("expected startDir %q when no marker, got %q", want, got)
	}
}

func TestInfo_WriteReadRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".tomo", "daemon.json")

	info := &Info{
		SocketPath: "/tmp/tomo.sock",
		PIDPath:    "/tmp/tomo.pid",
		LogPath:    "/tmp/tomo.log",
		StartTime:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		PID:        4242,
	}

	if err := WriteInfo(path, info); err != nil {
		t.Fatalf("WriteInfo: %v", err)
	}

	got, err := ReadInfo(path)
	if err != nil {
		t.Fatalf("ReadInfo: %v", err)
	}
	if got.SocketPath != info.SocketPath {
		t.Errorf("expected socket %q, got %q", info.SocketPath, got.SocketPath)
	}
	if got.PID != 4242 {
		t.Errorf("expected pid 4242, got %d", got.PID)
	}

	if err := RemoveInfo(path); err != nil {
		t.Fatalf("RemoveInfo: %v", err)
	}
	if _, err := ReadInfo(path); err == nil {
		t.Error("expected error reading removed info")
	}

	// Removing again must not fail.
	if err := RemoveInfo(path); err != nil {
		t.Errorf("RemoveInfo on missing file: %v", err)
	}
}

func TestFindInfo(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".tomo"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	info := &Info{SocketPath: "/tmp/x.sock", PID: 1}
	if err := WriteInfo(InfoPath(root), info); err != nil {
		t.Fatalf("WriteInfo: %v", err)
	}

	got, err := FindInfo(root)
	if err != nil {
		t.Fatalf("FindInfo: %v", err)
	}
	if got.SocketPath != "/tmp/x.sock" {
		t.Errorf("unexpected socket path %q", got.SocketPath)
	}
}

func TestFindInfo_NotFound(t *testing.T) {
	if _, err := FindInfo(t.TempDir()); err == nil {
		t.Error("expected error when daemon.json is absent")
	}
}
