package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

// chdir switches to dir for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoadConfig_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := LoadConfig(viper.New())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Timer.PollInterval != 100*time.Millisecond {
		t.Errorf("expected default poll interval, got %v", cfg.Timer.PollInterval)
	}
	if cfg.Paths.Socket != ".tomo/tomo.sock" {
		t.Errorf("expected default socket path, got %q", cfg.Paths.Socket)
	}
}

func TestLoadConfig_ProjectFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if err := os.MkdirAll(filepath.Join(dir, ProjectConfigDir), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	content := "timer:\n  poll_interval: 250ms\n  schedule_file: my-schedule.yaml\n"
	path := filepath.Join(dir, ProjectConfigDir, ProjectConfigFile)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(viper.New())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Timer.PollInterval != 250*time.Millisecond {
		t.Errorf("expected 250ms poll interval from project config, got %v", cfg.Timer.PollInterval)
	}
	if cfg.Timer.ScheduleFile != "my-schedule.yaml" {
		t.Errorf("expected schedule file from project config, got %q", cfg.Timer.ScheduleFile)
	}
	// Untouched sections keep defaults.
	if cfg.Paths.PID != ".tomo/tomo.pid" {
		t.Errorf("expected default pid path, got %q", cfg.Paths.PID)
	}
}

func TestLoadConfig_GlobalThenProjectPrecedence(t *testing.T) {
	projectDir := t.TempDir()
	globalDir := t.TempDir()
	chdir(t, projectDir)
	t.Setenv("XDG_CONFIG_HOME", globalDir)

	globalCfgDir := filepath.Join(globalDir, GlobalConfigDir)
	if err := os.MkdirAll(globalCfgDir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	global := "timer:\n  poll_interval: 1s\n  client_timeout: 30s\n"
	if err := os.WriteFile(filepath.Join(globalCfgDir, GlobalConfigFile), []byte(global), 0644); err != nil {
		t.Fatalf("write global config: %v", err)
	}

	if err := os.MkdirAll(filepath.Join(projectDir, ProjectConfigDir), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	project := "timer:\n  poll_interval: 50ms\n"
	if err := os.WriteFile(filepath.Join(projectDir, ProjectConfigDir, ProjectConfigFile), []byte(project), 0644); err != nil {
		t.Fatalf("write project config: %v", err)
	}

	cfg, err := LoadConfig(viper.New())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	// Project overrides global; global overrides defaults.
	if cfg.Timer.PollInterval != 50*time.Millisecond {
		t.Errorf("expected project poll interval, got %v", cfg.Timer.PollInterval)
	}
	if cfg.Timer.ClientTimeout != 30*time.Second {
		t.Errorf("expected global client timeout, got %v", cfg.Timer.ClientTimeout)
	}
}

func TestLoadConfig_ExplicitMissingFile(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	v := viper.New()
	v.Set("config", "/nonexistent/tomo-config.yaml")

	if _, err := LoadConfig(v); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestLoadConfig_ViperOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	v := viper.New()
	v.Set("paths.socket", "/tmp/custom.sock")

	cfg, err := LoadConfig(v)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Paths.Socket != "/tmp/custom.sock" {
		t.Errorf("expected flag override, got %q", cfg.Paths.Socket)
	}
}
