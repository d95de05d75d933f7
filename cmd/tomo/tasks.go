package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tomo-sh/tomo/internal/coordinator"
	"github.com/tomo-sh/tomo/internal/task"
)

func newTaskCmd(logger *slog.Logger) *cobra.Command {
	taskCmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks coordinated with the timer",
	}

	addCmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a new task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			coord, _, cleanup, err := openCoordinator(cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			created, err := coord.Create(task.Task{
				Title:           strings.Join(args, " "),
				RequiredMinutes: viper.GetInt(FlagMinutes),
				Project:         viper.GetString(FlagProject),
				Tags:            viper.GetStringSlice(FlagTags),
			})
			if err != nil {
				return err
			}

			fmt.Printf("Added task %s: %s (%dm)\n", shortID(created.ID), created.Title, created.RequiredMinutes)
			return nil
		},
	}
	addCmd.Flags().Int(FlagMinutes, 25, "Estimated minutes of work")
	addCmd.Flags().String(FlagProject, "", "Project the task belongs to")
	addCmd.Flags().StringSlice(FlagTags, nil, "Tags (comma-separated)")
	addCmd.Flags().VisitAll(bindFlag)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			coord, _, cleanup, err := openCoordinator(cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			tasks := coord.List()
			if stateFilter := viper.GetString(FlagState); stateFilter != "" {
				tasks = coord.TasksByState(task.State(stateFilter))
			}

			if viper.GetBool(FlagJSON) {
				data, err := json.MarshalIndent(tasks, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal tasks: %w", err)
				}
				fmt.Println(string(data))
				return nil
			}

			if len(tasks) == 0 {
				fmt.Println("No tasks")
				return nil
			}
			for _, t := range tasks {
				printTaskRow(t)
			}
			return nil
		},
	}
	listCmd.Flags().String(FlagState, "", "Filter by state (ready/running/paused/done)")
	listCmd.Flags().Bool(FlagJSON, false, "Output tasks as JSON")
	listCmd.Flags().VisitAll(bindFlag)

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			coord, _, cleanup, err := openCoordinator(cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			target, err := resolveTask(coord.List(), args[0])
			if err != nil {
				return err
			}
			if err := coord.Delete(target.ID); err != nil {
				return err
			}
			fmt.Printf("Deleted task %s: %s\n", shortID(target.ID), target.Title)
			return nil
		},
	}

	taskCmd.AddCommand(addCmd, listCmd, deleteCmd)
	for _, op := range []task.Operation{task.OpStart, task.OpPause, task.OpResume, task.OpComplete, task.OpExtend} {
		taskCmd.AddCommand(newOperateCmd(logger, op))
	}
	return taskCmd
}

// newOperateCmd builds one task lifecycle subcommand (start/pause/resume/
// complete/extend) around coordinator.Operate.
func newOperateCmd(logger *slog.Logger, op task.Operation) *cobra.Command {
	shorts := map[task.Operation]string{
		task.OpStart:    "Start working on a task (starts the timer)",
		task.OpPause:    "Pause a running task (pauses the timer)",
		task.OpResume:   "Resume a paused task (resumes the timer)",
		task.OpComplete: "Complete a running task (skips to the next step)",
		task.OpExtend:   "Extend a running task (restarts its time budget)",
	}

	return &cobra.Command{
		Use:   fmt.Sprintf("%s <id>", op),
		Short: shorts[op],
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			coord, sc, cleanup, err := openCoordinator(cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			target, err := resolveTask(coord.List(), args[0])
			if err != nil {
				return err
			}

			// Prime the cached timer snapshot so the coordinator picks
			// the right command for the current timer state. A failed
			// fetch leaves it idle, which Operate reports if the command
			// also fails.
			if err := sc.Refresh(); err != nil {
				logger.Debug("timer status unavailable", "error", err)
			}

			updated, err := coord.Operate(target.ID, op)

			var partial *coordinator.PartialFailure
			if errors.As(err, &partial) {
				printTaskRow(updated)
				return fmt.Errorf("task updated but timer command failed: %w\nstart the daemon with: tomo daemon start", partial.Err)
			}
			if err != nil {
				return err
			}

			printTaskRow(updated)
			return nil
		},
	}
}

// resolveTask finds a task by full id, unique id prefix, or exact title.
func resolveTask(tasks []*task.Task, ref string) (*task.Task, error) {
	var matches []*task.Task
	for _, t := range tasks {
		if t.ID == ref {
			return t, nil
		}
		if strings.HasPrefix(t.ID, ref) || t.Title == ref {
			matches = append(matches, t)
		}
	}

	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return nil, fmt.Errorf("%w: %s", task.ErrNotFound, ref)
	default:
		var ids []string
		for _, m := range matches {
			ids = append(ids, shortID(m.ID))
		}
		return nil, fmt.Errorf("ambiguous task reference %q matches %s", ref, strings.Join(ids, ", "))
	}
}

func printTaskRow(t *task.Task) {
	extra := ""
	if t.Project != "" {
		extra = "  [" + t.Project + "]"
	}
	fmt.Printf("%-9s %-8s %s (%d/%dm)%s\n",
		shortID(t.ID), t.State, t.Title, t.ElapsedMinutes, t.RequiredMinutes, extra)
}

// shortID returns the first 8 characters of a task id for display.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
