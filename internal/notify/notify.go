// Package notify defines the notification events emitted when the timer
// crosses a step boundary, and the interface presentation layers implement
// to receive them.
package notify

import (
	"log/slog"

	"github.com/tomo-sh/tomo/internal/timer"
)

// Kind identifies the notification event type.
type Kind string

const (
	// KindStepCompleted fires when a single focus or break step finishes.
	KindStepCompleted Kind = "step_completed"
	// KindAllStepsCompleted fires when the final step of the schedule finishes.
	KindAllStepsCompleted Kind = "all_steps_completed"
)

// Event describes a step-boundary crossing.
type Event struct {
	Kind      Kind
	StepIndex int
	StepType  timer.StepType
}

// Notifier receives step-boundary events. Implementations present prompts
// to the user; how they do so is out of scope here.
type Notifier interface {
	Notify(event Event)
}

// Func adapts a function to the Notifier interface.
type Func func(Event)

// Notify implements Notifier.
func (f Func) Notify(event Event) {
	f(event)
}

// LogNotifier writes events to a structured logger. It is the default
// notifier when no presentation layer is attached.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(event Event) {
	n.logger.Info("timer notification",
		"kind", string(event.Kind),
		"step_index", event.StepIndex,
		"step_type", string(event.StepType))
}

// FromCompleted converts an engine completed-step marker to an Event.
func FromCompleted(c *timer.CompletedStep) Event {
	kind := KindStepCompleted
	if c.Final {
		kind = KindAllStepsCompleted
	}
	return Event{
		Kind:      kind,
		StepIndex: c.StepIndex,
		StepType:  c.StepType,
	}
}
