package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/tomo-sh/tomo/internal/timer"
)

const (
	// DefaultClientTimeout is the default timeout for client operations.
	DefaultClientTimeout = 5 * time.Second
)

// ErrNotRunning indicates the timer daemon is unreachable. It covers both
// a missing socket and a refused connection, so callers can treat either as
// "authority unavailable".
var ErrNotRunning = errors.New("timer daemon not running")

// Client connects to the timer daemon via Unix socket. Every command
// returns the snapshot the daemon produced after applying it, so callers
// always hold the authority's view rather than a locally computed one.
type Client struct {
	sockPath string
	timeout  time.Duration
}

// NewClient creates a new daemon client.
func NewClient(sockPath string) *Client {
	return &Client{
		sockPath: sockPath,
		timeout:  DefaultClientTimeout,
	}
}

// SetTimeout sets the timeout for client operations.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// call sends a JSON-RPC request to the daemon and decodes the snapshot result.
func (c *Client) call(method string, params any) (*timer.Snapshot, error) {
	conn, err := net.DialTimeout("unix", c.sockPath, c.timeout)
	if err != nil {
		return nil, c.wrapConnError(err)
	}
	defer func() { _ = conn.Close() }()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	req := Request{Method: method, Params: params}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.Error != "" {
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}

	// Re-marshal and unmarshal to convert the result to a Snapshot
	data, err := json.Marshal(resp.Result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}

	var snap timer.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return &snap, nil
}

// wrapConnError converts connection errors to user-friendly messages.
func (c *Client) wrapConnError(err error) error {
	// Check for syscall errors that indicate specific conditions
	var sysErr syscall.Errno
	if errors.As(err, &sysErr) {
		switch sysErr {
		case syscall.ENOENT:
			return fmt.Errorf("%w (socket not found)", ErrNotRunning)
		case syscall.ECONNREFUSED:
			return fmt.Errorf("%w (connection refused)", ErrNotRunning)
		}
	}

	// Fallback check for os.IsNotExist
	if os.IsNotExist(err) {
		return fmt.Errorf("%w (socket not found)", ErrNotRunning)
	}

	if errors.Is(err, os.ErrDeadlineExceeded) {
		return errors.New("daemon request timed out")
	}

	return fmt.Errorf("connect to daemon: %w", err)
}

// Status returns the daemon's current snapshot without advancing the timer.
func (c *Client) Status() (*timer.Snapshot, error) {
	return c.call("status", nil)
}

// Tick advances the daemon's timer and returns the resulting snapshot.
// The snapshot carries a completed-step marker on the tick that crossed
// a step boundary.
func (c *Client) Tick() (*timer.Snapshot, error) {
	return c.call("tick", nil)
}

// Start starts the timer. step selects the schedule step (0-based);
// pass a negative value to keep the current position.
func (c *Client) Start(step int) (*timer.Snapshot, error) {
	params := StartParams{}
	if step >= 0 {
		params.Step = &step
	}
	return c.call("start", params)
}

// Pause pauses the running timer.
func (c *Client) Pause() (*timer.Snapshot, error) {
	return c.call("pause", nil)
}

// Resume resumes a paused timer.
func (c *Client) Resume() (*timer.Snapshot, error) {
	return c.call("resume", nil)
}

// Skip advances to the next schedule step.
func (c *Client) Skip() (*timer.Snapshot, error) {
	return c.call("skip", nil)
}

// Reset returns the timer to idle at the first step.
func (c *Client) Reset() (*timer.Snapshot, error) {
	return c.call("reset", nil)
}

// IsRunning checks if the daemon is running by attempting to connect.
func (c *Client) IsRunning() bool {
	conn, err := net.DialTimeout("unix", c.sockPath, time.Second)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
