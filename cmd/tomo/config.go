package main

// Flag names for Viper binding
const (
	// Global flags
	FlagVerbose    = "verbose"
	FlagConfig     = "config"
	FlagLogFile    = "log-file"
	FlagSocketPath = "socket-path"

	// Daemon start flags
	FlagForeground = "foreground"
	FlagSchedule   = "schedule"

	// Timer start flags
	FlagStep = "step"

	// Task flags
	FlagMinutes = "minutes"
	FlagProject = "project"
	FlagTags    = "tags"
	FlagState   = "state"

	// Watch flags
	FlagShowCompleted = "show-completed"

	// Output format flags
	FlagJSON = "json"
)
