package tui

import (
	"bytes"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"

	"github.com/tomo-sh/tomo/internal/task"
	"github.com/tomo-sh/tomo/internal/timer"
	"github.com/tomo-sh/tomo/internal/timersync"
)

// stubAuthority serves a fixed snapshot.
type stubAuthority struct {
	mu   sync.Mutex
	snap timer.Snapshot
}

func (s *stubAuthority) get() (*timer.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snap
	snap.ObservedAt = time.Now()
	return &snap, nil
}

func (s *stubAuthority) set(snap timer.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
}

func (s *stubAuthority) Status() (*timer.Snapshot, error) { return s.get() }
func (s *stubAuthority) Tick() (*timer.Snapshot, error)   { return s.get() }
func (s *stubAuthority) Start(stepIndex int) (*timer.Snapshot, error) {
	s.mu.Lock()
	s.snap.State = timer.StateRunning
	s.mu.Unlock()
	return s.get()
}
func (s *stubAuthority) Pause() (*timer.Snapshot, error) {
	s.mu.Lock()
	s.snap.State = timer.StatePaused
	s.mu.Unlock()
	return s.get()
}
func (s *stubAuthority) Resume() (*timer.Snapshot, error) { return s.Start(-1) }
func (s *stubAuthority) Skip() (*timer.Snapshot, error)   { return s.get() }
func (s *stubAuthority) Reset() (*timer.Snapshot, error) {
	s.mu.Lock()
	s.snap = timer.Snapshot{State: timer.StateIdle}
	s.mu.Unlock()
	return s.get()
}

// stubCoord drives a real machine and records operations.
type stubCoord struct {
	mu  sync.Mutex
	m   *task.Machine
	ops []string
}

func (s *stubCoord) Operate(id string, op task.Operation) (*task.Task, error) {
	s.mu.Lock()
	s.ops = append(s.ops, string(op))
	s.mu.Unlock()
	target, err := op.TargetState()
	if err != nil {
		return nil, err
	}
	return s.m.Transition(id, target, op)
}

func (s *stubCoord) List() []*task.Task { return s.m.List() }

func (s *stubCoord) Delete(id string) error { return s.m.Delete(id) }

func (s *stubCoord) recorded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ops...)
}

func testModel(t *testing.T, auth *stubAuthority) (Model, *stubCoord) {
	t.Helper()
	sc := timersync.New(auth, timersync.Options{PollInterval: 10 * time.Millisecond})
	coord := &stubCoord{m: task.NewMachine()}
	m := New(sc, coord, Options{MaxVisibleTasks: 8})
	return m, coord
}

func TestWatch_RendersTimerAndTasks(t *testing.T) {
	auth := &stubAuthority{snap: timer.Snapshot{State: timer.StateIdle}}
	m, coord := testModel(t, auth)
	if _, err := coord.m.Create(task.Task{Title: "write report", RequiredMinutes: 50}); err != nil {
		t.Fatalf("create task: %v", err)
	}

	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(100, 30))

	teatest.WaitFor(t, tm.Output(), func(bts []byte) bool {
		return bytes.Contains(bts, []byte("write report")) && bytes.Contains(bts, []byte("IDLE"))
	}, teatest.WithDuration(3*time.Second))

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	tm.WaitFinished(t, teatest.WithFinalTimeout(3*time.Second))
}

func TestWatch_StartKeyDrivesCoordinator(t *testing.T) {
	auth := &stubAuthority{snap: timer.Snapshot{State: timer.StateIdle}}
	m, coord := testModel(t, auth)
	if _, err := coord.m.Create(task.Task{Title: "deep work", RequiredMinutes: 25}); err != nil {
		t.Fatalf("create task: %v", err)
	}

	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(100, 30))

	teatest.WaitFor(t, tm.Output(), func(bts []byte) bool {
		return bytes.Contains(bts, []byte("deep work"))
	}, teatest.WithDuration(3*time.Second))

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})

	teatest.WaitFor(t, tm.Output(), func(bts []byte) bool {
		return bytes.Contains(bts, []byte("running"))
	}, teatest.WithDuration(3*time.Second))

	if ops := coord.recorded(); len(ops) == 0 || ops[0] != "start" {
		t.Errorf("expected a start operation, got %v", ops)
	}

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	tm.WaitFinished(t, teatest.WithFinalTimeout(3*time.Second))
}

func TestFormatRemaining(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{ms: 0, want: "00:00"},
		{ms: 1, want: "00:01"},
		{ms: 59_000, want: "00:59"},
		{ms: 60_000, want: "01:00"},
		{ms: 1_500_000, want: "25:00"},
		{ms: 1_499_001, want: "25:00"},
	}
	for _, tt := range tests {
		if got := formatRemaining(tt.ms); got != tt.want {
			t.Errorf("formatRemaining(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 40); got != "short" {
		t.Errorf("unexpected truncation: %q", got)
	}
	long := "a very long task title that exceeds the column width entirely"
	got := truncate(long, 20)
	if len(got) != 20 || got[17:] != "..." {
		t.Errorf("expected 20 chars ending in ellipsis, got %q", got)
	}
}

func TestVisibleTasks_FiltersDone(t *testing.T) {
	auth := &stubAuthority{snap: timer.Snapshot{State: timer.StateIdle}}
	m, _ := testModel(t, auth)

	all := []*task.Task{
		{ID: "1", Title: "a", State: task.StateReady},
		{ID: "2", Title: "b", State: task.StateDone},
		{ID: "3", Title: "c", State: task.StatePaused},
	}

	visible := m.visibleTasks(all)
	if len(visible) != 2 {
		t.Fatalf("expected 2 visible tasks, got %d", len(visible))
	}
	for _, v := range visible {
		if v.State == task.StateDone {
			t.Error("done task should be hidden by default")
		}
	}

	m.showDone = true
	if got := m.visibleTasks(all); len(got) != 3 {
		t.Errorf("expected 3 with showDone, got %d", len(got))
	}
}

func TestVisibleTasks_CapsAtMax(t *testing.T) {
	auth := &stubAuthority{snap: timer.Snapshot{State: timer.StateIdle}}
	m, _ := testModel(t, auth)
	m.maxVisible = 2

	all := []*task.Task{
		{ID: "1", State: task.StateReady},
		{ID: "2", State: task.StateReady},
		{ID: "3", State: task.StateReady},
	}
	if got := m.visibleTasks(all); len(got) != 2 {
		t.Errorf("expected 2 visible tasks, got %d", len(got))
	}
}

func TestUpdate_CursorClamped(t *testing.T) {
	auth := &stubAuthority{snap: timer.Snapshot{State: timer.StateIdle}}
	m, _ := testModel(t, auth)
	m.cursor = 5

	next, _ := m.Update(tasksMsg([]*task.Task{{ID: "1", State: task.StateReady}}))
	got := next.(Model)
	if got.cursor != 0 {
		t.Errorf("cursor should clamp to last row, got %d", got.cursor)
	}

	next, _ = got.Update(tasksMsg(nil))
	got = next.(Model)
	if got.cursor != 0 {
		t.Errorf("cursor should clamp to zero on empty list, got %d", got.cursor)
	}
}
