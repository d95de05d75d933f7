// Package coordinator is the single entry point for user-intended task
// operations. Each operation applies one task-state transition and issues
// the matching timer command; the two mutations are deliberately not
// transactional (see PartialFailure).
package coordinator

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/tomo-sh/tomo/internal/task"
)

// TimerClient is the subset of the sync client the coordinator drives.
// *timersync.SyncClient satisfies this interface.
type TimerClient interface {
	Start(stepIndex int) error
	Pause() error
	Resume() error
	Skip() error
	Reset() error
	IsActive() bool
	IsPaused() bool
}

// Store durably persists task records. The in-memory machine remains the
// source of truth for the session; the store mirrors it across restarts.
type Store interface {
	Put(t *task.Task) error
	Delete(id string) error
}

// PartialFailure reports that the task-state mutation succeeded but the
// paired timer command failed. The mutation is not rolled back; callers
// reconcile by re-querying both subsystems.
type PartialFailure struct {
	TaskID    string
	Operation task.Operation
	TaskState task.State
	Err       error
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("task %s moved to %s but timer command for %s failed: %v",
		e.TaskID, e.TaskState, e.Operation, e.Err)
}

func (e *PartialFailure) Unwrap() error {
	return e.Err
}

// ErrAnotherTaskRunning is returned when starting or resuming a task while
// a different task is RUNNING. The coordinator never auto-pauses; callers
// must pause the current task with an explicit Operate call first.
var ErrAnotherTaskRunning = errors.New("another task is already running")

// Coordinator composes the task machine with the timer client. A nil store
// disables persistence.
type Coordinator struct {
	tasks  *task.Machine
	timer  TimerClient
	store  Store
	logger *slog.Logger
}

// New creates a Coordinator.
func New(tasks *task.Machine, timer TimerClient, store Store, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		tasks:  tasks,
		timer:  timer,
		store:  store,
		logger: logger,
	}
}

// Operate performs op on the task: validates the transition, applies it,
// persists the new record, then issues the matching timer command.
//
// Validation failures (unknown task, edge not in the table, a different
// task already running) are returned before any mutation. A timer command
// failure after the task mutation is returned as *PartialFailure together
// with the updated task.
func (c *Coordinator) Operate(taskID string, op task.Operation) (*task.Task, error) {
	target, err := op.TargetState()
	if err != nil {
		return nil, err
	}

	t, err := c.tasks.Get(taskID)
	if err != nil {
		return nil, err
	}

	if !c.tasks.CanTransition(taskID, target) {
		return nil, fmt.Errorf("%w: cannot %s task %q in state %s",
			task.ErrInvalidTransition, op, t.Title, t.State)
	}

	if target == task.StateRunning {
		if err := c.ensureNoOtherRunning(taskID); err != nil {
			return nil, err
		}
	}

	updated, err := c.tasks.Transition(taskID, target, op)
	if err != nil {
		return nil, err
	}
	c.persist(updated)

	if err := c.timerCommand(op); err != nil {
		c.logger.Warn("timer command failed after task transition",
			"task_id", taskID,
			"operation", string(op),
			"task_state", string(updated.State),
			"error", err)
		return updated, &PartialFailure{
			TaskID:    taskID,
			Operation: op,
			TaskState: updated.State,
			Err:       err,
		}
	}

	return updated, nil
}

// Create registers a new task and persists it.
func (c *Coordinator) Create(template task.Task) (*task.Task, error) {
	t, err := c.tasks.Create(template)
	if err != nil {
		return nil, err
	}
	c.persist(t)
	return t, nil
}

// Delete removes a task from the registry and the store.
func (c *Coordinator) Delete(taskID string) error {
	if err := c.tasks.Delete(taskID); err != nil {
		return err
	}
	if c.store != nil {
		if err := c.store.Delete(taskID); err != nil {
			c.logger.Warn("task store delete failed", "task_id", taskID, "error", err)
		}
	}
	return nil
}

// Get returns a copy of the task.
func (c *Coordinator) Get(taskID string) (*task.Task, error) {
	return c.tasks.Get(taskID)
}

// List returns all tasks ordered by creation time.
func (c *Coordinator) List() []*task.Task {
	return c.tasks.List()
}

// TasksByState returns all tasks in the given state.
func (c *Coordinator) TasksByState(state task.State) []*task.Task {
	return c.tasks.TasksByState(state)
}

// ensureNoOtherRunning enforces the single-running-task invariant without
// auto-pausing anything.
func (c *Coordinator) ensureNoOtherRunning(taskID string) error {
	for _, running := range c.tasks.TasksByState(task.StateRunning) {
		if running.ID != taskID {
			return fmt.Errorf("%w: %q", ErrAnotherTaskRunning, running.Title)
		}
	}
	return nil
}

// persist mirrors the task into the store. Store failures degrade to a
// warning; the in-memory state is authoritative for the session and the
// next successful write catches up.
func (c *Coordinator) persist(t *task.Task) {
	if c.store == nil {
		return
	}
	if err := c.store.Put(t); err != nil {
		c.logger.Warn("task store write failed", "task_id", t.ID, "error", err)
	}
}

// timerCommand maps the operation to its timer command, consulting the
// current timer state so, for example, starting a task while the timer is
// already mid-step resumes rather than restarting the step.
func (c *Coordinator) timerCommand(op task.Operation) error {
	switch op {
	case task.OpStart:
		if c.timer.IsActive() {
			return c.timer.Resume()
		}
		return c.timer.Start(-1)
	case task.OpPause:
		if c.timer.IsActive() {
			return c.timer.Pause()
		}
		return nil
	case task.OpResume:
		if c.timer.IsPaused() {
			return c.timer.Resume()
		}
		return c.timer.Start(-1)
	case task.OpComplete:
		if c.timer.IsActive() || c.timer.IsPaused() {
			return c.timer.Skip()
		}
		return nil
	case task.OpExtend:
		if err := c.timer.Reset(); err != nil {
			return err
		}
		return c.timer.Start(-1)
	}
	return fmt.Errorf("unknown operation %q", op)
}
