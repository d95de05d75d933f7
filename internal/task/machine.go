package task

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a task id is unknown to the machine.
	ErrNotFound = errors.New("task not found")
	// ErrInvalidTransition is returned when the requested edge is not in
	// the transition table.
	ErrInvalidTransition = errors.New("invalid task transition")
)

// transitions is the complete set of allowed edges. RUNNING→RUNNING exists
// only for the extend operation, which resets elapsed accounting without a
// state change.
var transitions = map[State]map[State]bool{
	StateReady: {
		StateRunning: true,
	},
	StateRunning: {
		StatePaused:  true,
		StateDone:    true,
		StateRunning: true,
	},
	StatePaused: {
		StateRunning: true,
	},
	StateDone: {},
}

// Machine is an in-memory registry of tasks keyed by id. All mutation goes
// through Create, Transition, and Delete; query methods return clones so
// callers cannot bypass the transition table.
type Machine struct {
	mu    sync.Mutex
	tasks map[string]*Task

	now func() time.Time
}

// NewMachine creates an empty task machine.
func NewMachine() *Machine {
	return &Machine{
		tasks: make(map[string]*Task),
		now:   time.Now,
	}
}

// Create registers a new task in READY state. The template's Title is
// required; ID and CreatedAt are assigned, State is forced to READY, and
// elapsed accounting starts at zero.
func (m *Machine) Create(template Task) (*Task, error) {
	if template.Title == "" {
		return nil, fmt.Errorf("task title is required")
	}
	if template.RequiredMinutes < 0 {
		return nil, fmt.Errorf("required minutes must not be negative")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t := template.Clone()
	t.ID = uuid.NewString()
	t.State = StateReady
	t.ElapsedMinutes = 0
	t.CreatedAt = m.now()
	t.StartedAt = nil
	t.PausedAt = nil
	t.CompletedAt = nil

	m.tasks[t.ID] = t
	return t.Clone(), nil
}

// Restore inserts a previously persisted task as-is, preserving its id,
// state, and timestamps. Used to rebuild the in-memory registry from the
// store at startup.
func (m *Machine) Restore(t *Task) error {
	if t.ID == "" {
		return fmt.Errorf("task id is required")
	}
	if !t.State.Valid() {
		return fmt.Errorf("unknown task state %q", t.State)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.tasks[t.ID] = t.Clone()
	return nil
}

// Get returns a copy of the task, or ErrNotFound.
func (m *Machine) Get(id string) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return t.Clone(), nil
}

// Delete removes a task regardless of its state. Deletion is orthogonal to
// the transition table.
func (m *Machine) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.tasks, id)
	return nil
}

// CanTransition reports whether moving the task to target is an allowed
// edge. Pure check, no side effects; unknown ids return false.
func (m *Machine) CanTransition(id string, target State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return false
	}
	return transitions[t.State][target]
}

// Transition applies the edge to target if valid and updates the task's
// timestamps: PausedAt is set on PAUSED and cleared on RUNNING, CompletedAt
// is set on DONE. Elapsed minutes accumulate when a running segment ends;
// the extend operation instead resets elapsed accounting to zero.
//
// Returns ErrNotFound for unknown ids and ErrInvalidTransition for edges
// absent from the table; in both cases the task is untouched.
func (m *Machine) Transition(id string, target State, op Operation) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !transitions[t.State][target] {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.State, target)
	}

	now := m.now()

	// Close out the current running segment before changing state.
	if t.State == StateRunning && t.StartedAt != nil {
		t.ElapsedMinutes += int(now.Sub(*t.StartedAt) / time.Minute)
	}

	switch target {
	case StateRunning:
		t.PausedAt = nil
		started := now
		t.StartedAt = &started
		if op == OpExtend {
			t.ElapsedMinutes = 0
		}
	case StatePaused:
		paused := now
		t.PausedAt = &paused
		t.StartedAt = nil
	case StateDone:
		completed := now
		t.CompletedAt = &completed
		t.StartedAt = nil
	}

	t.State = target
	return t.Clone(), nil
}

// TasksByState returns copies of all tasks currently in the given state.
// No ordering is guaranteed beyond creation time.
func (m *Machine) TasksByState(state State) []*Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Task
	for _, t := range m.tasks {
		if t.State == state {
			out = append(out, t.Clone())
		}
	}
	sortByCreation(out)
	return out
}

// List returns copies of all tasks ordered by creation time.
func (m *Machine) List() []*Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t.Clone())
	}
	sortByCreation(out)
	return out
}

func sortByCreation(tasks []*Task) {
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
}
