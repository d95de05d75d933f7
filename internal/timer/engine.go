// Package timer implements the schedule-driven timer engine that serves as
// the authority for remaining time. The engine has no internal goroutine;
// the daemon drives it by calling Tick periodically.
package timer

import (
	"fmt"
	"sync"
	"time"
)

// State is the engine's lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
)

// CompletedStep marks a step boundary crossed on the tick that produced
// the snapshot carrying it. It is attached to exactly one snapshot.
type CompletedStep struct {
	StepIndex int       `json:"step_index"`
	StepType  StepType  `json:"step_type"`
	Final     bool      `json:"final"`
	At        time.Time `json:"at"`
}

// Snapshot is an immutable point-in-time read of the engine. Consumers
// replace snapshots wholesale; fields are never updated individually.
type Snapshot struct {
	State               State          `json:"state"`
	StepIndex           int            `json:"step_index"`
	StepType            StepType       `json:"step_type"`
	StepLabel           string         `json:"step_label"`
	RemainingMs         int64          `json:"remaining_ms"`
	TotalMs             int64          `json:"total_ms"`
	ScheduleProgressPct float64        `json:"schedule_progress_pct"`
	ObservedAt          time.Time      `json:"observed_at"`
	Completed           *CompletedStep `json:"completed,omitempty"`
}

// Engine counts down through a schedule of focus and break steps.
type Engine struct {
	mu        sync.Mutex
	schedule  *Schedule
	state     State
	stepIndex int
	remaining time.Duration
	lastTick  time.Time

	now func() time.Time // injectable clock for tests
}

// NewEngine creates an idle engine for the given schedule.
// A nil schedule uses the default progressive schedule.
func NewEngine(schedule *Schedule) *Engine {
	if schedule == nil {
		schedule = DefaultSchedule()
	}
	return &Engine{
		schedule: schedule,
		state:    StateIdle,
		now:      time.Now,
	}
}

// Schedule returns the engine's schedule.
func (e *Engine) Schedule() *Schedule {
	return e.schedule
}

// Start begins counting down. stepIndex selects the step to start at;
// pass -1 to keep the current position. Starting a running engine without
// an explicit step is a no-op, so a racing start cannot move the step.
// Starting a paused engine resumes it.
func (e *Engine) Start(stepIndex int) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if stepIndex >= len(e.schedule.Steps) {
		return Snapshot{}, fmt.Errorf("step index %d out of bounds (schedule has %d steps)", stepIndex, len(e.schedule.Steps))
	}

	switch {
	case stepIndex >= 0:
		e.enterStepLocked(stepIndex)
	case e.state == StateRunning:
		// no-op; the authority is the serialization point
	case e.state == StatePaused:
		e.state = StateRunning
		e.lastTick = e.now()
	default:
		// idle or completed: start from the beginning
		e.enterStepLocked(0)
	}

	return e.snapshotLocked(nil), nil
}

// Pause freezes the countdown. A no-op unless running.
func (e *Engine) Pause() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateRunning {
		e.flushLocked(e.now())
		e.state = StatePaused
	}
	return e.snapshotLocked(nil)
}

// Resume continues a paused countdown. A no-op unless paused.
func (e *Engine) Resume() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StatePaused {
		e.state = StateRunning
		e.lastTick = e.now()
	}
	return e.snapshotLocked(nil)
}

// Skip advances to the next step, preserving the running/paused state.
// Skipping the last step completes the schedule. A no-op when idle or
// completed.
func (e *Engine) Skip() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateRunning || e.state == StatePaused {
		e.advanceLocked(e.state)
	}
	return e.snapshotLocked(nil)
}

// Reset returns the engine to idle at the first step.
func (e *Engine) Reset() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state = StateIdle
	e.stepIndex = 0
	e.remaining = 0
	e.lastTick = time.Time{}
	return e.snapshotLocked(nil)
}

// Tick flushes wall-clock elapsed time into the countdown. When the current
// step's time runs out, the engine advances to the next step (or completes)
// and the returned snapshot carries the step-completed marker. The marker is
// attached only to this snapshot; later snapshots do not repeat it.
func (e *Engine) Tick() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateRunning {
		return e.snapshotLocked(nil)
	}

	e.flushLocked(e.now())
	if e.remaining > 0 {
		return e.snapshotLocked(nil)
	}

	completed := &CompletedStep{
		StepIndex: e.stepIndex,
		StepType:  e.schedule.Steps[e.stepIndex].Type,
		Final:     e.stepIndex == len(e.schedule.Steps)-1,
		At:        e.now(),
	}
	e.advanceLocked(StateRunning)
	return e.snapshotLocked(completed)
}

// Status returns the current snapshot without advancing the countdown.
func (e *Engine) Status() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked(nil)
}

func (e *Engine) enterStepLocked(stepIndex int) {
	e.stepIndex = stepIndex
	e.remaining = e.schedule.Steps[stepIndex].Duration
	e.state = StateRunning
	e.lastTick = e.now()
}

func (e *Engine) advanceLocked(keep State) {
	next := e.stepIndex + 1
	if next >= len(e.schedule.Steps) {
		e.state = StateCompleted
		e.remaining = 0
		return
	}
	e.stepIndex = next
	e.remaining = e.schedule.Steps[next].Duration
	e.state = keep
	e.lastTick = e.now()
}

func (e *Engine) flushLocked(now time.Time) {
	if e.lastTick.IsZero() {
		e.lastTick = now
		return
	}
	e.remaining -= now.Sub(e.lastTick)
	if e.remaining < 0 {
		e.remaining = 0
	}
	e.lastTick = now
}

func (e *Engine) snapshotLocked(completed *CompletedStep) Snapshot {
	step := e.schedule.Steps[e.stepIndex]

	var totalMs int64
	if e.state != StateIdle {
		totalMs = step.Duration.Milliseconds()
	}
	remainingMs := e.remaining.Milliseconds()
	if remainingMs < 0 {
		remainingMs = 0
	}
	if remainingMs > totalMs {
		remainingMs = totalMs
	}

	return Snapshot{
		State:               e.state,
		StepIndex:           e.stepIndex,
		StepType:            step.Type,
		StepLabel:           step.Label,
		RemainingMs:         remainingMs,
		TotalMs:             totalMs,
		ScheduleProgressPct: e.scheduleProgressLocked(),
		ObservedAt:          e.now(),
		Completed:           completed,
	}
}

func (e *Engine) scheduleProgressLocked() float64 {
	switch e.state {
	case StateIdle:
		return 0
	case StateCompleted:
		return 100
	}

	total := e.schedule.TotalDuration()
	if total <= 0 {
		return 0
	}

	step := e.schedule.Steps[e.stepIndex]
	done := e.schedule.CumulativeDuration(e.stepIndex) + (step.Duration - e.remaining)
	pct := float64(done) / float64(total) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
