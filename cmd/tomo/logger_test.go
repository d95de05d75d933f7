package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/tomo-sh/tomo/internal/config"
)

func TestSetupFileLogger_WritesToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "tomo.log")

	result := SetupFileLogger(logPath, slog.LevelInfo, config.Default().LogRotation)
	defer func() { _ = result.Close() }()

	result.Logger.Info("test message", "key", "value")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if entry["msg"] != "test message" {
		t.Errorf("expected msg 'test message', got %v", entry["msg"])
	}
	if entry["key"] != "value" {
		t.Errorf("expected key 'value', got %v", entry["key"])
	}
}

func TestSetupFileLogger_RespectsLevel(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "tomo.log")

	result := SetupFileLogger(logPath, slog.LevelInfo, config.Default().LogRotation)
	defer func() { _ = result.Close() }()

	result.Logger.Debug("should not appear")

	data, _ := os.ReadFile(logPath)
	if len(data) != 0 {
		t.Errorf("debug message logged at info level: %s", data)
	}
}

func TestSetupLoggerWithWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLoggerWithWriter(&buf, slog.LevelDebug)

	logger.Debug("captured")

	if !bytes.Contains(buf.Bytes(), []byte("captured")) {
		t.Errorf("expected captured output, got %s", buf.String())
	}
}
