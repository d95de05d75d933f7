package main

import (
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tomo-sh/tomo/internal/config"
)

// FileLoggerResult contains the results of setting up file-backed logging.
type FileLoggerResult struct {
	Logger   *slog.Logger
	LogFile  io.WriteCloser
	FilePath string
}

// Close closes the log file if it was opened.
func (r *FileLoggerResult) Close() error {
	if r.LogFile != nil {
		return r.LogFile.Close()
	}
	return nil
}

// SetupFileLogger creates a logger that writes JSON lines to a rotating
// file instead of stderr. The daemon uses this after detaching from the
// terminal, and watch mode uses it so log output cannot corrupt the TUI.
func SetupFileLogger(path string, level slog.Leveler, rotationCfg config.LogRotationConfig) *FileLoggerResult {
	writer := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    rotationCfg.MaxSizeMB,
		MaxBackups: rotationCfg.MaxBackups,
		MaxAge:     rotationCfg.MaxAgeDays,
		Compress:   rotationCfg.Compress,
	}

	logger := slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: level}))

	return &FileLoggerResult{
		Logger:   logger,
		LogFile:  writer,
		FilePath: path,
	}
}

// SetupLoggerWithWriter creates a logger that writes to the given writer.
// Used in tests to capture output.
func SetupLoggerWithWriter(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
