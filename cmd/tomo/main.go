package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/tomo-sh/tomo/internal/config"
	"github.com/tomo-sh/tomo/internal/coordinator"
	"github.com/tomo-sh/tomo/internal/daemon"
	"github.com/tomo-sh/tomo/internal/notify"
	"github.com/tomo-sh/tomo/internal/shutdown"
	"github.com/tomo-sh/tomo/internal/task"
	"github.com/tomo-sh/tomo/internal/taskstore"
	"github.com/tomo-sh/tomo/internal/timer"
	"github.com/tomo-sh/tomo/internal/timersync"
	"github.com/tomo-sh/tomo/internal/tui"
)

var version = "dev"

func main() {
	logLevel := &slog.LevelVar{}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	viper.SetEnvPrefix("TOMO")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:   "tomo",
		Short: "Schedule-driven focus timer with task coordination",
		Long: `tomo runs a progressive focus/break schedule in a background daemon and
keeps your task list in lock-step with it: starting a task starts the
timer, pausing a task pauses it, completing a task skips to the next
schedule step.`,
		SilenceUsage: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().Bool(FlagVerbose, false, "Enable verbose (debug) logging")
	rootCmd.PersistentFlags().String(FlagConfig, "", "Config file path (default: .tomo/config.yaml)")
	rootCmd.PersistentFlags().String(FlagLogFile, "", "Log file path")
	rootCmd.PersistentFlags().String(FlagSocketPath, "", "Unix socket path for the timer daemon")
	rootCmd.PersistentFlags().VisitAll(bindFlag)

	rootCmd.AddCommand(
		newVersionCmd(),
		newDaemonCmd(logger, logLevel),
		newTimerCmd(),
		newTaskCmd(logger),
		newWatchCmd(logLevel),
	)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func bindFlag(f *pflag.Flag) {
	_ = viper.BindPFlag(f.Name, f)
}

// loadConfig loads configuration, applies CLI flag overrides, and resolves
// all paths relative to the project root.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	cfg, err := config.LoadConfig(viper.GetViper())
	if err != nil {
		return nil, "", fmt.Errorf("load config: %w", err)
	}

	if cmd.Flags().Changed(FlagLogFile) {
		cfg.Paths.Log = viper.GetString(FlagLogFile)
	}
	if cmd.Flags().Changed(FlagSocketPath) {
		cfg.Paths.Socket = viper.GetString(FlagSocketPath)
	}

	projectRoot := daemon.FindProjectRoot("")
	cfg.Paths, err = daemon.ResolvePaths(cfg.Paths, projectRoot)
	if err != nil {
		return nil, "", fmt.Errorf("resolve paths: %w", err)
	}
	return cfg, projectRoot, nil
}

// timerClient builds a daemon client, preferring the socket recorded in
// daemon.json over the configured path so commands work from any directory
// under the project.
func timerClient(cfg *config.Config) *daemon.Client {
	sockPath := cfg.Paths.Socket
	if info, err := daemon.FindInfo(""); err == nil {
		sockPath = info.SocketPath
	}
	client := daemon.NewClient(sockPath)
	client.SetTimeout(cfg.Timer.ClientTimeout)
	return client
}

func newSyncClient(cfg *config.Config, logger *slog.Logger) *timersync.SyncClient {
	return timersync.New(timerClient(cfg), timersync.Options{
		PollInterval: cfg.Timer.PollInterval,
		Notifier:     notify.NewLogNotifier(logger),
		Logger:       logger,
	})
}

// openCoordinator opens the task store, rebuilds the in-memory registry,
// and wires the coordinator to the timer sync client. The returned cleanup
// closes the store.
func openCoordinator(cfg *config.Config, logger *slog.Logger) (*coordinator.Coordinator, *timersync.SyncClient, func(), error) {
	store, err := taskstore.Open(cfg.Paths.DB)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open task store: %w", err)
	}

	machine := task.NewMachine()
	stored, err := store.LoadAll()
	if err != nil {
		_ = store.Close()
		return nil, nil, nil, fmt.Errorf("load tasks: %w", err)
	}
	for _, t := range stored {
		if err := machine.Restore(t); err != nil {
			logger.Warn("skipping stored task", "task_id", t.ID, "error", err)
		}
	}

	sc := newSyncClient(cfg, logger)
	coord := coordinator.New(machine, sc, store, logger)
	return coord, sc, func() { _ = store.Close() }, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tomo %s\n", version)
		},
	}
}

func newDaemonCmd(logger *slog.Logger, logLevel *slog.LevelVar) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the timer daemon",
	}

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the timer daemon",
		Long: `Start the timer daemon that owns the authoritative countdown.

The daemon serves timer state over a Unix socket in .tomo/. All other
commands and the watch dashboard are clients of it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if viper.GetBool(FlagVerbose) {
				logLevel.Set(slog.LevelDebug)
			}

			cfg, projectRoot, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed(FlagSchedule) {
				cfg.Timer.ScheduleFile = viper.GetString(FlagSchedule)
			}

			if daemon.NewClient(cfg.Paths.Socket).IsRunning() {
				return fmt.Errorf("timer daemon already running (socket: %s)", cfg.Paths.Socket)
			}

			foreground := viper.GetBool(FlagForeground)
			if !foreground {
				shouldExit, _, err := daemon.Daemonize(cfg)
				if err != nil {
					return fmt.Errorf("daemonize: %w", err)
				}
				if shouldExit {
					return nil // parent exits after the child is up
				}
			}

			runLogger := logger
			if !foreground {
				// Detached from the terminal: log to the rotating file.
				fileLog := SetupFileLogger(cfg.Paths.Log, logLevel, cfg.LogRotation)
				defer func() { _ = fileLog.Close() }()
				runLogger = fileLog.Logger
				slog.SetDefault(runLogger)
			}

			pidFile := daemon.NewPIDFile(cfg.Paths.PID)
			pidFile.CleanupStale(cfg.Paths.Socket)
			if err := pidFile.Write(); err != nil {
				return err
			}
			defer func() { _ = pidFile.Remove() }()

			schedule, err := timer.LoadSchedule(cfg.Timer.ScheduleFile)
			if err != nil {
				return fmt.Errorf("load schedule: %w", err)
			}
			engine := timer.NewEngine(schedule)

			info := &daemon.Info{
				SocketPath: cfg.Paths.Socket,
				PIDPath:    cfg.Paths.PID,
				LogPath:    cfg.Paths.Log,
				StartTime:  time.Now(),
				PID:        os.Getpid(),
			}
			if err := daemon.WriteInfo(daemon.InfoPath(projectRoot), info); err != nil {
				runLogger.Warn("failed to write daemon info", "error", err)
			}
			defer func() { _ = daemon.RemoveInfo(daemon.InfoPath(projectRoot)) }()

			runLogger.Info("tomo daemon starting",
				"version", version,
				"socket", cfg.Paths.Socket,
				"schedule_steps", len(engine.Schedule().Steps),
			)

			d := daemon.New(cfg, engine, runLogger)
			return shutdown.RunWithGracefulShutdown(
				cmd.Context(),
				runLogger,
				10*time.Second,
				func(runCtx context.Context) error {
					return d.Start(runCtx)
				},
				func(shutdownCtx context.Context) error {
					return d.Stop()
				},
			)
		},
	}
	startCmd.Flags().Bool(FlagForeground, false, "Run in the foreground instead of daemonizing")
	startCmd.Flags().String(FlagSchedule, "", "YAML schedule file (default: built-in progressive schedule)")
	startCmd.Flags().VisitAll(bindFlag)

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the timer daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := daemon.FindInfo("")
			if err != nil {
				return fmt.Errorf("timer daemon not running: %w", err)
			}

			if !daemon.IsProcessRunning(info.PID) {
				fmt.Println("Daemon not running; cleaning up stale files")
				_ = daemon.RemoveInfo(daemon.InfoPath(daemon.FindProjectRoot("")))
				return nil
			}

			if err := syscall.Kill(info.PID, syscall.SIGTERM); err != nil {
				return fmt.Errorf("signal daemon (pid %d): %w", info.PID, err)
			}

			// Wait for the socket to disappear so "stop" means stopped.
			deadline := time.Now().Add(5 * time.Second)
			for time.Now().Before(deadline) {
				if !daemon.IsProcessRunning(info.PID) {
					fmt.Printf("Stopped timer daemon (pid %d)\n", info.PID)
					return nil
				}
				time.Sleep(100 * time.Millisecond)
			}
			return fmt.Errorf("daemon (pid %d) did not stop within 5s", info.PID)
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			client := timerClient(cfg)
			snap, err := client.Status()
			if err != nil {
				if errors.Is(err, daemon.ErrNotRunning) {
					fmt.Println("Daemon: not running")
					return nil
				}
				return err
			}

			fmt.Println("Daemon: running")
			if info, err := daemon.FindInfo(""); err == nil {
				fmt.Printf("PID: %d\n", info.PID)
				fmt.Printf("Uptime: %s\n", time.Since(info.StartTime).Round(time.Second))
			}
			printSnapshot(snap, false)
			return nil
		},
	}

	daemonCmd.AddCommand(startCmd, stopCmd, statusCmd)
	return daemonCmd
}

func newTimerCmd() *cobra.Command {
	timerCmd := &cobra.Command{
		Use:   "timer",
		Short: "Control the timer directly",
	}

	run := func(call func(*daemon.Client) (*timer.Snapshot, error)) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			snap, err := call(timerClient(cfg))
			if err != nil {
				return err
			}
			printSnapshot(snap, viper.GetBool(FlagJSON))
			return nil
		}
	}

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the timer",
		RunE: run(func(c *daemon.Client) (*timer.Snapshot, error) {
			return c.Start(viper.GetInt(FlagStep))
		}),
	}
	startCmd.Flags().Int(FlagStep, -1, "Schedule step to start at (0-based, -1 keeps position)")
	startCmd.Flags().VisitAll(bindFlag)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current timer snapshot",
		RunE:  run((*daemon.Client).Status),
	}
	statusCmd.Flags().Bool(FlagJSON, false, "Output snapshot as JSON")
	statusCmd.Flags().VisitAll(bindFlag)

	timerCmd.AddCommand(
		startCmd,
		&cobra.Command{Use: "pause", Short: "Pause the timer", RunE: run((*daemon.Client).Pause)},
		&cobra.Command{Use: "resume", Short: "Resume a paused timer", RunE: run((*daemon.Client).Resume)},
		&cobra.Command{Use: "skip", Short: "Skip to the next schedule step", RunE: run((*daemon.Client).Skip)},
		&cobra.Command{Use: "reset", Short: "Reset the timer to idle", RunE: run((*daemon.Client).Reset)},
		statusCmd,
	)
	return timerCmd
}

func newWatchCmd(logLevel *slog.LevelVar) *cobra.Command {
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Live dashboard for the timer and task list",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return fmt.Errorf("watch requires a terminal")
			}

			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed(FlagShowCompleted) {
				cfg.TUI.ShowCompleted = viper.GetBool(FlagShowCompleted)
			}

			// Log to file so output cannot corrupt the dashboard.
			fileLog := SetupFileLogger(cfg.Paths.Log, logLevel, cfg.LogRotation)
			defer func() { _ = fileLog.Close() }()
			slog.SetDefault(fileLog.Logger)

			coord, sc, cleanup, err := openCoordinator(cfg, fileLog.Logger)
			if err != nil {
				return err
			}
			defer cleanup()

			model := tui.New(sc, coord, tui.Options{
				MaxVisibleTasks: cfg.TUI.MaxVisibleTasks,
				ShowCompleted:   cfg.TUI.ShowCompleted,
			})

			p := tea.NewProgram(model, tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}
	watchCmd.Flags().Bool(FlagShowCompleted, false, "Include completed tasks in the list")
	watchCmd.Flags().VisitAll(bindFlag)
	return watchCmd
}

// printSnapshot prints a timer snapshot, as JSON when requested.
func printSnapshot(snap *timer.Snapshot, asJSON bool) {
	if asJSON {
		data, err := json.MarshalIndent(snap, "", "  ")
		if err == nil {
			fmt.Println(string(data))
		}
		return
	}

	fmt.Printf("Timer: %s\n", snap.State)
	if snap.State == timer.StateIdle {
		return
	}
	label := snap.StepLabel
	if label == "" {
		label = string(snap.StepType)
	}
	fmt.Printf("Step: %d (%s)\n", snap.StepIndex+1, label)
	if snap.State != timer.StateCompleted {
		fmt.Printf("Remaining: %s\n", formatMs(snap.RemainingMs))
	}
	fmt.Printf("Schedule: %.0f%%\n", snap.ScheduleProgressPct)
}

// formatMs renders milliseconds as MM:SS, rounding up to whole seconds.
func formatMs(ms int64) string {
	secs := (ms + 999) / 1000
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
