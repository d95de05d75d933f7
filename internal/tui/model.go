// Package tui implements the watch dashboard: a live timer readout over the
// task list, with keybindings that drive the operation coordinator.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tomo-sh/tomo/internal/task"
	"github.com/tomo-sh/tomo/internal/timer"
	"github.com/tomo-sh/tomo/internal/timersync"
)

// Operator is the coordinator surface the dashboard drives.
// *coordinator.Coordinator satisfies this interface.
type Operator interface {
	Operate(taskID string, op task.Operation) (*task.Task, error)
	List() []*task.Task
	Delete(taskID string) error
}

// Options configures the dashboard.
type Options struct {
	// MaxVisibleTasks caps task rows below the timer. Zero means 8.
	MaxVisibleTasks int
	// ShowCompleted includes DONE tasks in the list.
	ShowCompleted bool
}

type (
	snapshotMsg   timer.Snapshot
	tasksMsg      []*task.Task
	actionDoneMsg struct{ err error }
	refreshMsg    time.Time
)

// Model is the bubbletea model for the watch dashboard.
type Model struct {
	sync  *timersync.SyncClient
	sub   *timersync.Subscription
	coord Operator

	snapshot timer.Snapshot
	tasks    []*task.Task
	cursor   int

	bar        progress.Model
	width      int
	maxVisible int
	showDone   bool
	status     string
	quitting   bool
}

// New creates the dashboard model. The caller keeps ownership of the sync
// client; the model subscribes on construction and unsubscribes on quit.
func New(sync *timersync.SyncClient, coord Operator, opts Options) Model {
	if opts.MaxVisibleTasks <= 0 {
		opts.MaxVisibleTasks = 8
	}
	return Model{
		sync:       sync,
		sub:        sync.Subscribe(),
		coord:      coord,
		snapshot:   sync.Snapshot(),
		bar:        progress.New(progress.WithDefaultGradient()),
		maxVisible: opts.MaxVisibleTasks,
		showDone:   opts.ShowCompleted,
		width:      80,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitSnapshot(), m.loadTasks(), refreshTick())
}

// waitSnapshot blocks on the subscription until the next snapshot lands.
func (m Model) waitSnapshot() tea.Cmd {
	sub := m.sub
	return func() tea.Msg {
		return snapshotMsg(<-sub.Updates())
	}
}

func (m Model) loadTasks() tea.Cmd {
	coord := m.coord
	return func() tea.Msg {
		return tasksMsg(coord.List())
	}
}

// refreshTick re-reads the task list once a second so elapsed minutes and
// externally made changes show up without a keypress.
func refreshTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = msg.Width - 10
		if m.bar.Width > 60 {
			m.bar.Width = 60
		}
		return m, nil

	case snapshotMsg:
		m.snapshot = timer.Snapshot(msg)
		return m, m.waitSnapshot()

	case tasksMsg:
		m.tasks = m.visibleTasks([]*task.Task(msg))
		if m.cursor >= len(m.tasks) {
			m.cursor = len(m.tasks) - 1
		}
		if m.cursor < 0 {
			m.cursor = 0
		}
		return m, nil

	case refreshMsg:
		return m, tea.Batch(m.loadTasks(), refreshTick())

	case actionDoneMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
		} else {
			m.status = ""
		}
		return m, m.loadTasks()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		m.sub.Close()
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case "down", "j":
		if m.cursor < len(m.tasks)-1 {
			m.cursor++
		}
		return m, nil

	case "s":
		return m, m.operateSelected(task.OpStart)
	case "p":
		return m, m.operateSelected(task.OpPause)
	case "r":
		return m, m.operateSelected(task.OpResume)
	case "c":
		return m, m.operateSelected(task.OpComplete)
	case "e":
		return m, m.operateSelected(task.OpExtend)

	case "d":
		if t := m.selected(); t != nil {
			coord := m.coord
			id := t.ID
			return m, func() tea.Msg {
				return actionDoneMsg{err: coord.Delete(id)}
			}
		}
		return m, nil
	}
	return m, nil
}

func (m Model) operateSelected(op task.Operation) tea.Cmd {
	t := m.selected()
	if t == nil {
		return nil
	}
	coord := m.coord
	id := t.ID
	return func() tea.Msg {
		_, err := coord.Operate(id, op)
		return actionDoneMsg{err: err}
	}
}

func (m Model) selected() *task.Task {
	if m.cursor < 0 || m.cursor >= len(m.tasks) {
		return nil
	}
	return m.tasks[m.cursor]
}

func (m Model) visibleTasks(all []*task.Task) []*task.Task {
	var out []*task.Task
	for _, t := range all {
		if !m.showDone && t.State == task.StateDone {
			continue
		}
		out = append(out, t)
	}
	if len(out) > m.maxVisible {
		out = out[:m.maxVisible]
	}
	return out
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("tomo"))
	b.WriteString("\n\n")
	b.WriteString(m.timerView())
	b.WriteString("\n\n")
	b.WriteString(m.tasksView())
	b.WriteString("\n")

	if m.status != "" {
		b.WriteString(errorStyle.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("s start  p pause  r resume  c complete  e extend  d delete  q quit"))
	return b.String()
}

func (m Model) timerView() string {
	snap := m.snapshot

	var lines []string
	header := lipgloss.JoinHorizontal(lipgloss.Center,
		stateBadge(snap.State),
		"  ",
		stepLabelStyle.Render(stepTitle(snap)),
	)
	lines = append(lines, header)

	if snap.State == timer.StateRunning || snap.State == timer.StatePaused {
		lines = append(lines, remainingStyle.Render(formatRemaining(snap.RemainingMs)))
		lines = append(lines, m.bar.ViewAs(m.sync.Progress()))
		lines = append(lines, dimStyle.Render(fmt.Sprintf("schedule %.0f%%", snap.ScheduleProgressPct)))
	} else if snap.State == timer.StateCompleted {
		lines = append(lines, remainingStyle.Render("schedule complete"))
	}

	return timerBoxStyle.Render(strings.Join(lines, "\n"))
}

func (m Model) tasksView() string {
	if len(m.tasks) == 0 {
		return dimStyle.Render("no tasks (add one with: tomo task add)")
	}

	var rows []string
	for i, t := range m.tasks {
		row := fmt.Sprintf("%-9s %-40s %s",
			string(t.State),
			truncate(t.Title, 40),
			fmt.Sprintf("%d/%dm", t.ElapsedMinutes, t.RequiredMinutes))
		if i == m.cursor {
			row = selectedRowStyle.Render("> " + row)
		} else {
			row = "  " + row
		}
		rows = append(rows, row)
	}
	return strings.Join(rows, "\n")
}

func stateBadge(state timer.State) string {
	switch state {
	case timer.StateRunning:
		return runningBadge.Render("RUNNING")
	case timer.StatePaused:
		return pausedBadge.Render("PAUSED")
	case timer.StateCompleted:
		return doneBadge.Render("DONE")
	default:
		return idleBadge.Render("IDLE")
	}
}

func stepTitle(snap timer.Snapshot) string {
	if snap.State == timer.StateIdle {
		return "timer idle"
	}
	label := snap.StepLabel
	if label == "" {
		label = string(snap.StepType)
	}
	return fmt.Sprintf("step %d: %s", snap.StepIndex+1, label)
}

func formatRemaining(ms int64) string {
	secs := (ms + 999) / 1000
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
