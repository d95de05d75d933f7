// Package daemon runs the timer authority as a background process with
// external control via Unix socket RPC. The daemon owns the single
// TimerEngine; every front-end (CLI, TUI) is a client.
package daemon

import (
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/tomo-sh/tomo/internal/config"
	"github.com/tomo-sh/tomo/internal/timer"
)

// Daemon serves the timer engine over a Unix socket.
type Daemon struct {
	config    *config.Config
	engine    *timer.Engine
	sockPath  string
	startTime time.Time
	logger    *slog.Logger

	listener net.Listener
	running  bool
	mu       sync.RWMutex
}

// New creates a new Daemon serving the given engine.
func New(cfg *config.Config, engine *timer.Engine, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	return &Daemon{
		config:   cfg,
		engine:   engine,
		sockPath: cfg.Paths.Socket,
		logger:   logger,
	}
}

// Running returns whether the daemon is currently running.
func (d *Daemon) Running() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// Engine returns the underlying timer engine for testing.
func (d *Daemon) Engine() *timer.Engine {
	return d.engine
}

// StartTime returns when the daemon was started.
func (d *Daemon) StartTime() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.startTime
}

// SocketPath returns the Unix socket path.
func (d *Daemon) SocketPath() string {
	return d.sockPath
}
