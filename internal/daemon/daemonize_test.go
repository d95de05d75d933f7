package daemon

import (
	"net"
	"os"
	"testing"
	"time"
)

func TestIsDaemonized_False(t *testing.T) {
	_ = os.Unsetenv(daemonEnvVar)

	if IsDaemonized() {
		t.Error("expected IsDaemonized() to return false")
	}
}

func TestIsDaemonized_True(t *testing.T) {
	t.Setenv(daemonEnvVar, "1")

	if !IsDaemonized() {
		t.Error("expected IsDaemonized() to return true")
	}
}

func TestIsDaemonized_WrongValue(t *testing.T) {
	t.Setenv(daemonEnvVar, "true")

	if IsDaemonized() {
		t.Error("expected IsDaemonized() to return false for non-1 value")
	}
}

func TestWaitForSocketReady_Success(t *testing.T) {
	sockPath := shortSocketPath(t)

	listener, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func() { _ = listener.Close() }()

	if err := waitForSocketReady(sockPath, time.Second); err != nil {
		t.Errorf("waitForSocketReady() error: %v", err)
	}
}

func TestWaitForSocketReady_Timeout(t *testing.T) {
	sockPath := shortSocketPath(t)

	if err := waitForSocketReady(sockPath, 200*time.Millisecond); err == nil {
		t.Error("expected timeout error for missing socket")
	}
}
