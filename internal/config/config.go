// Package config provides configuration types and defaults for tomo.
package config

import "time"

// Config holds all configuration for tomo.
type Config struct {
	Timer       TimerConfig       `yaml:"timer" mapstructure:"timer"`
	Paths       PathsConfig       `yaml:"paths" mapstructure:"paths"`
	LogRotation LogRotationConfig `yaml:"log_rotation" mapstructure:"log_rotation"`
	TUI         TUIConfig         `yaml:"tui" mapstructure:"tui"`
}

// TimerConfig holds timer authority and synchronization settings.
type TimerConfig struct {
	PollInterval  time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`   // sync client poll cadence while running
	ClientTimeout time.Duration `yaml:"client_timeout" mapstructure:"client_timeout"` // per-RPC timeout against the daemon
	ScheduleFile  string        `yaml:"schedule_file" mapstructure:"schedule_file"`   // YAML schedule (empty = built-in progressive schedule)
}

// PathsConfig holds file paths for the socket, pid file, log, and task database.
type PathsConfig struct {
	Socket string `yaml:"socket" mapstructure:"socket"`
	PID    string `yaml:"pid" mapstructure:"pid"`
	Log    string `yaml:"log" mapstructure:"log"`
	DB     string `yaml:"db" mapstructure:"db"`
}

// LogRotationConfig holds settings for log file rotation.
// Used for the daemon and TUI debug logs (lumberjack-based automatic rotation).
type LogRotationConfig struct {
	MaxSizeMB  int  `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool `yaml:"compress" mapstructure:"compress"`
}

// TUIConfig holds settings for the watch TUI.
type TUIConfig struct {
	MaxVisibleTasks int  `yaml:"max_visible_tasks" mapstructure:"max_visible_tasks"` // task rows shown below the timer
	ShowCompleted   bool `yaml:"show_completed" mapstructure:"show_completed"`       // include DONE tasks in the list
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Timer: TimerConfig{
			PollInterval:  100 * time.Millisecond,
			ClientTimeout: 5 * time.Second,
			ScheduleFile:  "",
		},
		Paths: PathsConfig{
			Socket: ".tomo/tomo.sock",
			PID:    ".tomo/tomo.pid",
			Log:    ".tomo/tomo.log",
			DB:     ".tomo/tasks.db",
		},
		LogRotation: LogRotationConfig{
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
		TUI: TUIConfig{
			MaxVisibleTasks: 8,
			ShowCompleted:   false,
		},
	}
}
