// Package shutdown handles graceful termination of the timer daemon on
// SIGINT/SIGTERM.
package shutdown

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// RunWithGracefulShutdown runs the daemon's serve loop and tears it down
// cleanly on SIGINT/SIGTERM. The runner should block until its context is
// cancelled; the stop function releases resources the runner holds (socket,
// pid file) and is given up to timeout to finish.
func RunWithGracefulShutdown(
	ctx context.Context,
	logger *slog.Logger,
	timeout time.Duration,
	runner func(ctx context.Context) error,
	stop func(ctx context.Context) error,
) error {
	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()

	runDone := make(chan error, 1)
	go func() {
		runDone <- runner(runCtx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logger.Info("received signal, stopping timer daemon", "signal", sig.String())
		runCancel()

		stopCtx, stopCancel := context.WithTimeout(context.Background(), timeout)
		defer stopCancel()

		if err := stop(stopCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}

		select {
		case err := <-runDone:
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
		case <-stopCtx.Done():
			logger.Warn("shutdown timeout exceeded")
		}

		logger.Info("shutdown complete")
		return nil

	case err := <-runDone:
		// The serve loop ended on its own (listen error or clean stop).
		return err
	}
}
