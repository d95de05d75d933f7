// Package task implements the task lifecycle state machine. Tasks move
// through READY, RUNNING, PAUSED, and DONE along a fixed transition table;
// at most one task is RUNNING at a time, enforced by the coordinator layer
// that drives this package.
package task

import (
	"fmt"
	"time"
)

// State is the lifecycle state of a task.
type State string

const (
	// StateReady means the task is eligible to start and has not been
	// started, or was returned to the queue.
	StateReady State = "ready"
	// StateRunning means the task is actively being worked on.
	StateRunning State = "running"
	// StatePaused means the task was interrupted and can be resumed.
	StatePaused State = "paused"
	// StateDone is terminal.
	StateDone State = "done"
)

// Valid reports whether s is a known task state.
func (s State) Valid() bool {
	switch s {
	case StateReady, StateRunning, StatePaused, StateDone:
		return true
	}
	return false
}

// Operation is a user-intended action on a task. Each operation maps to a
// single target state; the distinction between operations sharing a target
// (start, resume, and extend all target RUNNING) matters for bookkeeping.
type Operation string

const (
	OpStart    Operation = "start"
	OpResume   Operation = "resume"
	OpPause    Operation = "pause"
	OpComplete Operation = "complete"
	OpExtend   Operation = "extend"
)

// TargetState returns the task state this operation transitions to.
func (op Operation) TargetState() (State, error) {
	switch op {
	case OpStart, OpResume, OpExtend:
		return StateRunning, nil
	case OpPause:
		return StatePaused, nil
	case OpComplete:
		return StateDone, nil
	}
	return "", fmt.Errorf("unknown operation %q", op)
}

// Task is a user-defined unit of work. Timestamps are maintained by the
// Machine during transitions; callers should treat them as read-only.
type Task struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	State           State      `json:"state"`
	RequiredMinutes int        `json:"required_minutes"`
	ElapsedMinutes  int        `json:"elapsed_minutes"`
	Project         string     `json:"project,omitempty"`
	Tags            []string   `json:"tags,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	PausedAt        *time.Time `json:"paused_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// RemainingMinutes returns the estimated minutes left, clamped at zero.
func (t *Task) RemainingMinutes() int {
	remaining := t.RequiredMinutes - t.ElapsedMinutes
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	c := *t
	if t.Tags != nil {
		c.Tags = append([]string(nil), t.Tags...)
	}
	if t.StartedAt != nil {
		v := *t.StartedAt
		c.StartedAt = &v
	}
	if t.PausedAt != nil {
		v := *t.PausedAt
		c.PausedAt = &v
	}
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		c.CompletedAt = &v
	}
	return &c
}
