package daemon

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPIDFile_WriteReadRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tomo.pid")
	p := NewPIDFile(path)

	if err := p.Write(); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if got := p.Read(); got != os.Getpid() {
		t.Errorf("expected pid %d, got %d", os.Getpid(), got)
	}
	if !p.IsRunning() {
		t.Error("expected IsRunning() true for own pid")
	}

	if err := p.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(path); err == nil {
		t.Error("pid file should be removed")
	}
}

func TestPIDFile_SecondWriterBlocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tomo.pid")

	first := NewPIDFile(path)
	if err := first.Write(); err != nil {
		t.Fatalf("first Write: %v", err)
	}
	defer func() { _ = first.Remove() }()

	second := NewPIDFile(path)
	if err := second.Write(); err == nil {
		_ = second.Remove()
		t.Error("expected second Write to fail while lock is held")
	}
}

func TestPIDFile_ReadMissing(t *testing.T) {
	p := NewPIDFile(filepath.Join(t.TempDir(), "missing.pid"))
	if got := p.Read(); got != 0 {
		t.Errorf("expected 0 for missing pid file, got %d", got)
	}
	if p.IsRunning() {
		t.Error("expected IsRunning() false for missing pid file")
	}
}

func TestPIDFile_ReadGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tomo.pid")
	if err := os.WriteFile(path, []byte("not-a-pid\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	p := NewPIDFile(path)
	if got := p.Read(); got != 0 {
		t.Errorf("expected 0 for garbage pid file, got %d", got)
	}
}

func TestIsProcessRunning(t *testing.T) {
	if !IsProcessRunning(os.Getpid()) {
		t.Error("expected own pid to be running")
	}
	if IsProcessRunning(0) {
		t.Error("expected pid 0 to report not running")
	}
	if IsProcessRunning(-5) {
		t.Error("expected negative pid to report not running")
	}
}

func TestPIDFile_CleanupStale(t *testing.T) {
	dir := t.TempDir()
	pidPath := filepath.Join(dir, "tomo.pid")
	sockPath := filepath.Join(dir, "tomo.sock")

	// Stale files from a dead process.
	if err := os.WriteFile(pidPath, []byte("999999999\n"), 0644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if err := os.WriteFile(sockPath, []byte{}, 0644); err != nil {
		t.Fatalf("write sock: %v", err)
	}

	p := NewPIDFile(pidPath)
	p.CleanupStale(sockPath)

	if _, err := os.Stat(pidPath); err == nil {
		t.Error("stale pid file should be removed")
	}
	if _, err := os.Stat(sockPath); err == nil {
		t.Error("stale socket file should be removed")
	}
}
