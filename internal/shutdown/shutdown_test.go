package shutdown

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"syscall"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunWithGracefulShutdown_RunnerCompletes(t *testing.T) {
	want := errors.New("listen failed")

	err := RunWithGracefulShutdown(
		context.Background(),
		discardLogger(),
		time.Second,
		func(ctx context.Context) error { return want },
		func(ctx context.Context) error { return nil },
	)
	if !errors.Is(err, want) {
		t.Errorf("expected runner error, got %v", err)
	}
}

func TestRunWithGracefulShutdown_SignalStops(t *testing.T) {
	stopped := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- RunWithGracefulShutdown(
			context.Background(),
			discardLogger(),
			time.Second,
			func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
			func(ctx context.Context) error {
				close(stopped)
				return nil
			},
		)
	}()

	// Give the goroutine time to install the signal handler.
	time.Sleep(50 * time.Millisecond)
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("send signal: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not complete")
	}

	select {
	case <-stopped:
	default:
		t.Error("stop function was not called")
	}
}
