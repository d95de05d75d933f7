// Package timersync keeps UI consumers eventually consistent with the timer
// daemon. A single SyncClient owns one poll loop per process; its lifetime is
// tied to the number of active subscriptions, so any number of concurrently
// mounted views share the same cadence of remote calls.
package timersync

import (
	"log/slog"
	"sync"
	"time"

	"github.com/tomo-sh/tomo/internal/notify"
	"github.com/tomo-sh/tomo/internal/timer"
)

// DefaultPollInterval matches the staleness bound the UI tolerates while
// the timer is running.
const DefaultPollInterval = 100 * time.Millisecond

// Authority is the remote timer daemon's command surface. Every call
// returns the authority's snapshot after the command took effect.
// *daemon.Client satisfies this interface.
type Authority interface {
	Status() (*timer.Snapshot, error)
	Tick() (*timer.Snapshot, error)
	Start(stepIndex int) (*timer.Snapshot, error)
	Pause() (*timer.Snapshot, error)
	Resume() (*timer.Snapshot, error)
	Skip() (*timer.Snapshot, error)
	Reset() (*timer.Snapshot, error)
}

// Options configures a SyncClient. Zero values select defaults.
type Options struct {
	// PollInterval is how often the loop ticks the authority while the
	// timer is running. Defaults to DefaultPollInterval.
	PollInterval time.Duration
	// Notifier receives step-boundary events. Defaults to a LogNotifier.
	Notifier notify.Notifier
	// Logger for poll failures and lifecycle events.
	Logger *slog.Logger
}

// SyncClient mirrors the daemon's timer snapshot and deduplicates polling
// across subscribers. The poll loop is created when the first subscriber
// observes a running timer and torn down when the last subscriber leaves or
// the timer stops running; subscription bookkeeping and loop start/stop
// happen under one mutex so interleaved subscribe/unsubscribe can never
// leave two loops running.
type SyncClient struct {
	authority    Authority
	notifier     notify.Notifier
	logger       *slog.Logger
	pollInterval time.Duration

	mu          sync.Mutex
	snapshot    timer.Snapshot
	hasSnapshot bool
	subs        map[*Subscription]struct{}
	stopPoll    chan struct{}
}

// New creates a SyncClient for the given authority.
func New(authority Authority, opts Options) *SyncClient {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.NewLogNotifier(opts.Logger)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &SyncClient{
		authority:    authority,
		notifier:     opts.Notifier,
		logger:       opts.Logger,
		pollInterval: opts.PollInterval,
		subs:         make(map[*Subscription]struct{}),
	}
}

// Subscription is a handle to the shared snapshot stream. Close it when the
// consumer unmounts; closing more than once is safe.
type Subscription struct {
	client  *SyncClient
	updates chan timer.Snapshot
}

// Updates delivers snapshots as they are applied. The channel holds only
// the latest snapshot; slow consumers see the newest state, not a backlog.
func (s *Subscription) Updates() <-chan timer.Snapshot {
	return s.updates
}

// Close unregisters the subscription. When the last subscription closes,
// the poll loop is torn down. Closing an already-closed subscription is a
// no-op, so the subscriber count can never go negative.
func (s *Subscription) Close() {
	c := s.client
	c.mu.Lock()
	delete(c.subs, s)
	c.reconcileLocked()
	c.mu.Unlock()
}

// Subscribe registers a consumer and returns its handle. The first
// subscriber triggers an immediate status fetch so the UI renders real
// state before the first poll lands.
func (c *SyncClient) Subscribe() *Subscription {
	c.mu.Lock()
	sub := &Subscription{client: c, updates: make(chan timer.Snapshot, 1)}
	c.subs[sub] = struct{}{}
	first := len(c.subs) == 1
	if c.hasSnapshot {
		sub.push(c.snapshot)
	}
	c.reconcileLocked()
	c.mu.Unlock()

	if first {
		c.refreshStatus()
	}
	return sub
}

// Start issues a start command. stepIndex selects the schedule step to
// begin at; pass -1 to keep the authority's current position.
func (c *SyncClient) Start(stepIndex int) error {
	return c.command(func() (*timer.Snapshot, error) { return c.authority.Start(stepIndex) })
}

// Pause issues a pause command.
func (c *SyncClient) Pause() error {
	return c.command(c.authority.Pause)
}

// Resume issues a resume command.
func (c *SyncClient) Resume() error {
	return c.command(c.authority.Resume)
}

// Skip issues a skip command, advancing to the next schedule step.
func (c *SyncClient) Skip() error {
	return c.command(c.authority.Skip)
}

// Reset issues a reset command, returning the timer to idle.
func (c *SyncClient) Reset() error {
	return c.command(c.authority.Reset)
}

// command issues one remote command followed by one status refetch. Command
// failures are returned to the caller; the refetch failing only delays
// convergence and is logged, not surfaced.
func (c *SyncClient) command(call func() (*timer.Snapshot, error)) error {
	snap, err := call()
	if err != nil {
		return err
	}
	c.apply(snap)
	c.refreshStatus()
	return nil
}

// Refresh fetches and applies the authority's current snapshot. One-shot
// callers use this to prime the cache before consulting derived reads.
func (c *SyncClient) Refresh() error {
	snap, err := c.authority.Status()
	if err != nil {
		return err
	}
	c.apply(snap)
	return nil
}

// refreshStatus is Refresh with the error demoted to a log line, for paths
// where a failed fetch only delays convergence.
func (c *SyncClient) refreshStatus() {
	if err := c.Refresh(); err != nil {
		c.logger.Warn("timer status fetch failed", "error", err)
	}
}

// apply adopts a snapshot unless it is older than the cached one. Responses
// can race (a command reply against a poll reply), so recency is judged by
// the authority's own observed_at timestamp with step index as tiebreak,
// never by receipt order. A snapshot carrying a completed-step marker is
// forwarded to the notifier; the authority attaches the marker to exactly
// one snapshot, so applying each response at most once is all the dedup
// needed.
func (c *SyncClient) apply(snap *timer.Snapshot) {
	if snap == nil {
		return
	}

	c.mu.Lock()
	if c.hasSnapshot && staleness(snap, &c.snapshot) {
		c.mu.Unlock()
		return
	}
	wasRunning := c.hasSnapshot && c.snapshot.State == timer.StateRunning
	c.snapshot = *snap
	c.hasSnapshot = true
	for sub := range c.subs {
		sub.push(c.snapshot)
	}
	c.reconcileLocked()
	stopped := wasRunning && (snap.State == timer.StatePaused || snap.State == timer.StateCompleted)
	c.mu.Unlock()

	if snap.Completed != nil {
		c.notifier.Notify(notify.FromCompleted(snap.Completed))
	}
	if stopped {
		// One trailing refetch to capture the exact terminal snapshot;
		// the poll loop is already gone at this point.
		c.refreshStatus()
	}
}

// staleness reports whether candidate is older than cached. observed_at is
// compared first because reset legitimately moves the step index backwards;
// equal timestamps fall back to step order.
func staleness(candidate, cached *timer.Snapshot) bool {
	if candidate.ObservedAt.Before(cached.ObservedAt) {
		return true
	}
	if candidate.ObservedAt.Equal(cached.ObservedAt) {
		return candidate.StepIndex < cached.StepIndex
	}
	return false
}

// reconcileLocked starts or stops the poll loop to match the desired state:
// a loop exists exactly when someone is subscribed and the timer is running.
// Caller holds c.mu, making the subscriber count change and the loop
// lifecycle change one atomic step.
func (c *SyncClient) reconcileLocked() {
	want := len(c.subs) > 0 && c.hasSnapshot && c.snapshot.State == timer.StateRunning
	switch {
	case want && c.stopPoll == nil:
		stop := make(chan struct{})
		c.stopPoll = stop
		go c.pollLoop(stop)
	case !want && c.stopPoll != nil:
		close(c.stopPoll)
		c.stopPoll = nil
	}
}

// pollLoop ticks the authority until stopped. Poll failures are logged and
// retried on the next tick; a transient error must not kill the loop, it
// just degrades to a stale display.
func (c *SyncClient) pollLoop(stop chan struct{}) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			snap, err := c.authority.Tick()
			if err != nil {
				c.logger.Debug("timer poll failed", "error", err)
				continue
			}
			c.apply(snap)
		}
	}
}

// Snapshot returns the latest cached snapshot. Before any fetch has
// succeeded it reports an idle timer.
func (c *SyncClient) Snapshot() timer.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasSnapshot {
		return timer.Snapshot{State: timer.StateIdle}
	}
	return c.snapshot
}

// RemainingMs returns the cached remaining time in milliseconds.
func (c *SyncClient) RemainingMs() int64 {
	return c.Snapshot().RemainingMs
}

// RemainingSeconds returns the remaining time in whole seconds, rounded up
// so the display never shows 0:00 while time is left.
func (c *SyncClient) RemainingSeconds() int {
	return ceilSeconds(c.Snapshot().RemainingMs)
}

// TotalSeconds returns the current step's total duration in whole seconds,
// rounded up.
func (c *SyncClient) TotalSeconds() int {
	return ceilSeconds(c.Snapshot().TotalMs)
}

// Progress returns completion of the current step in [0, 1]. A step with
// zero total reports zero progress.
func (c *SyncClient) Progress() float64 {
	snap := c.Snapshot()
	if snap.TotalMs <= 0 {
		return 0
	}
	return 1 - float64(snap.RemainingMs)/float64(snap.TotalMs)
}

// IsActive reports whether the timer is running.
func (c *SyncClient) IsActive() bool {
	return c.Snapshot().State == timer.StateRunning
}

// IsPaused reports whether the timer is paused.
func (c *SyncClient) IsPaused() bool {
	return c.Snapshot().State == timer.StatePaused
}

// IsIdle reports whether the timer is idle.
func (c *SyncClient) IsIdle() bool {
	return c.Snapshot().State == timer.StateIdle
}

// IsCompleted reports whether the schedule has finished.
func (c *SyncClient) IsCompleted() bool {
	return c.Snapshot().State == timer.StateCompleted
}

func ceilSeconds(ms int64) int {
	if ms <= 0 {
		return 0
	}
	return int((ms + 999) / 1000)
}

func (s *Subscription) push(snap timer.Snapshot) {
	// Latest wins: drop the undelivered snapshot rather than block.
	select {
	case s.updates <- snap:
		return
	default:
	}
	select {
	case <-s.updates:
	default:
	}
	select {
	case s.updates <- snap:
	default:
	}
}
