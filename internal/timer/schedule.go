package timer

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// StepType distinguishes focus intervals from breaks.
type StepType string

const (
	StepFocus StepType = "focus"
	StepBreak StepType = "break"
)

// Step is one interval within a schedule.
type Step struct {
	Type     StepType      `yaml:"type" json:"type"`
	Duration time.Duration `yaml:"duration" json:"duration"`
	Label    string        `yaml:"label" json:"label"`
}

// UnmarshalYAML decodes a step, accepting durations in time.ParseDuration
// form ("25m", "1h30m").
func (s *Step) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Type     StepType `yaml:"type"`
		Duration string   `yaml:"duration"`
		Label    string   `yaml:"label"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	d, err := time.ParseDuration(raw.Duration)
	if err != nil {
		return fmt.Errorf("step %q: invalid duration %q: %w", raw.Label, raw.Duration, err)
	}

	s.Type = raw.Type
	s.Duration = d
	s.Label = raw.Label
	return nil
}

// Schedule is an ordered list of focus and break steps.
type Schedule struct {
	Steps []Step `yaml:"steps" json:"steps"`
}

// NewSchedule validates and returns a schedule.
func NewSchedule(steps []Step) (*Schedule, error) {
	s := &Schedule{Steps: steps}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks that the schedule is non-empty and every step is usable.
func (s *Schedule) Validate() error {
	if len(s.Steps) == 0 {
		return fmt.Errorf("schedule must have at least one step")
	}
	for i, step := range s.Steps {
		if step.Duration <= 0 {
			return fmt.Errorf("step %d (%q): duration must be positive", i, step.Label)
		}
		if step.Type != StepFocus && step.Type != StepBreak {
			return fmt.Errorf("step %d (%q): unknown step type %q", i, step.Label, step.Type)
		}
	}
	return nil
}

// TotalDuration returns the summed duration of all steps.
func (s *Schedule) TotalDuration() time.Duration {
	var total time.Duration
	for _, step := range s.Steps {
		total += step.Duration
	}
	return total
}

// CumulativeDuration returns the summed duration of steps before stepIndex.
func (s *Schedule) CumulativeDuration(stepIndex int) time.Duration {
	var total time.Duration
	for i, step := range s.Steps {
		if i >= stepIndex {
			break
		}
		total += step.Duration
	}
	return total
}

// FocusCount returns the number of focus steps.
func (s *Schedule) FocusCount() int {
	n := 0
	for _, step := range s.Steps {
		if step.Type == StepFocus {
			n++
		}
	}
	return n
}

// DefaultSchedule returns the progressive schedule: focus intervals grow
// from 15 to 75 minutes with short breaks between and a long break at the end.
func DefaultSchedule() *Schedule {
	return &Schedule{Steps: []Step{
		{Type: StepFocus, Duration: 15 * time.Minute, Label: "Warm Up"},
		{Type: StepBreak, Duration: 5 * time.Minute, Label: "Short Break"},
		{Type: StepFocus, Duration: 30 * time.Minute, Label: "Deep Work I"},
		{Type: StepBreak, Duration: 5 * time.Minute, Label: "Short Break"},
		{Type: StepFocus, Duration: 45 * time.Minute, Label: "Deep Work II"},
		{Type: StepBreak, Duration: 5 * time.Minute, Label: "Short Break"},
		{Type: StepFocus, Duration: 60 * time.Minute, Label: "Flow State I"},
		{Type: StepBreak, Duration: 5 * time.Minute, Label: "Short Break"},
		{Type: StepFocus, Duration: 75 * time.Minute, Label: "Flow State II"},
		{Type: StepBreak, Duration: 30 * time.Minute, Label: "Long Break"},
	}}
}

// LoadSchedule reads a schedule from a YAML file. An empty path returns
// the default schedule.
func LoadSchedule(path string) (*Schedule, error) {
	if path == "" {
		return DefaultSchedule(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule file: %w", err)
	}

	var s Schedule
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse schedule file: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("schedule file %s: %w", path, err)
	}
	return &s, nil
}
