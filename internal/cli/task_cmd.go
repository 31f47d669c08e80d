package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/collabtask/internal/cli/formatter"
	"github.com/nhle/collabtask/internal/model"
	"github.com/nhle/collabtask/internal/store"
	"github.com/nhle/collabtask/internal/taskflow"
)

func newTasksCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "View and change a project's tasks",
	}

	cmd.AddCommand(
		newTasksListCmd(app),
		newTasksShowCmd(app),
		newTasksCreateCmd(app),
		newTasksMoveCmd(app),
		newTasksAssignCmd(app),
	)

	return cmd
}

// loadBoard fetches a project's tasks into a board that writes through to
// the local cache.
func loadBoard(ctx context.Context, app *App, orgID, projectID string) (*taskflow.Board, error) {
	if err := requireSession(app); err != nil {
		return nil, err
	}
	board := taskflow.NewBoard(app.Client, orgID, projectID, nil,
		taskflow.WithCache(app.Store),
		taskflow.WithLogger(app.logger()),
	)
	if err := board.Load(ctx); err != nil {
		return nil, err
	}
	return board, nil
}

func parseStatus(s string) (model.TaskStatus, error) {
	status := model.TaskStatus(strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	if !status.Valid() {
		names := make([]string, len(model.TaskStatuses))
		for i, st := range model.TaskStatuses {
			names[i] = string(st)
		}
		return "", fmt.Errorf("unknown status %q (want one of %s)", s, strings.Join(names, ", "))
	}
	return status, nil
}

func newTasksListCmd(app *App) *cobra.Command {
	var status, assignee, query string
	var limit int
	var offline bool

	cmd := &cobra.Command{
		Use:   "list <org-id> <project-id>",
		Short: "List a project's tasks",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			orgID, projectID := args[0], args[1]

			filter := store.TaskFilter{Limit: limit}
			if status != "" {
				st, err := parseStatus(status)
				if err != nil {
					return err
				}
				filter.Status = &st
			}
			if assignee != "" {
				filter.AssigneeID = &assignee
			}
			if query != "" {
				filter.Query = &query
			}

			if !offline {
				// Loading the board refreshes the cache the filter reads.
				if _, err := loadBoard(ctx, app, orgID, projectID); err != nil {
					return err
				}
			}

			tasks, err := app.Store.GetProjectTasks(ctx, projectID, filter)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.Tasks(tasks))
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Only tasks in this status (todo, in_progress, review, done)")
	cmd.Flags().StringVar(&assignee, "assignee", "", "Only tasks assigned to this user id")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Only tasks whose title or description contains this text")
	cmd.Flags().IntVar(&limit, "limit", 0, "Show at most this many tasks")
	cmd.Flags().BoolVar(&offline, "offline", false, "Read from the local cache without calling the server")

	return cmd
}

func newTasksShowCmd(app *App) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "show <org-id> <project-id> <task-id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)

			var task *model.Task
			var err error
			if offline {
				task, err = app.Store.GetTaskByID(ctx, args[2])
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("task %s is not cached; run without --offline", args[2])
				}
			} else {
				if err := requireSession(app); err != nil {
					return err
				}
				task, err = app.Client.GetTask(ctx, args[0], args[1], args[2])
			}
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), formatter.Task(*task))
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Read from the local cache without calling the server")

	return cmd
}

func newTasksCreateCmd(app *App) *cobra.Command {
	var title, description, status string
	var assignees []string

	cmd := &cobra.Command{
		Use:   "create <org-id> <project-id>",
		Short: "Create a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)

			if strings.TrimSpace(title) == "" {
				return errors.New("--title is required")
			}
			in := model.CreateTaskInput{
				Title:       strings.TrimSpace(title),
				Description: description,
				AssigneeIDs: assignees,
			}
			if status != "" {
				st, err := parseStatus(status)
				if err != nil {
					return err
				}
				in.Status = st
			}

			board, err := loadBoard(ctx, app, args[0], args[1])
			if err != nil {
				return err
			}
			task, err := board.Create(ctx, in)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), formatter.Success(fmt.Sprintf("Created %q (%s)", task.Title, task.ID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Task title")
	cmd.Flags().StringVar(&description, "description", "", "Task description")
	cmd.Flags().StringVar(&status, "status", "", "Initial status")
	cmd.Flags().StringSliceVar(&assignees, "assignee", nil, "Assignee user id (repeatable)")

	return cmd
}

func newTasksMoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "move <org-id> <project-id> <task-id> <status>",
		Short: "Change a task's status",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)

			status, err := parseStatus(args[3])
			if err != nil {
				return err
			}
			board, err := loadBoard(ctx, app, args[0], args[1])
			if err != nil {
				return err
			}

			outcome, err := board.MoveTask(ctx, args[2], status)
			if err != nil {
				return err
			}
			return printOutcome(cmd, board, args[2], outcome, "Moved to "+string(status))
		},
	}
}

func newTasksAssignCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "assign <org-id> <project-id> <task-id> [user-id...]",
		Short: "Replace a task's assignees (none clears them)",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)

			board, err := loadBoard(ctx, app, args[0], args[1])
			if err != nil {
				return err
			}

			outcome, err := board.Assign(ctx, args[2], args[3:])
			if err != nil {
				return err
			}
			return printOutcome(cmd, board, args[2], outcome, "Assignees updated")
		},
	}
}

// printOutcome reports how a board write ended and shows the task as the
// board now holds it.
func printOutcome(cmd *cobra.Command, board *taskflow.Board, taskID string, outcome taskflow.Outcome, applied string) error {
	out := cmd.OutOrStdout()

	switch outcome {
	case taskflow.OutcomeApplied:
		fmt.Fprintln(out, formatter.Success(applied))
	case taskflow.OutcomeUnchanged:
		fmt.Fprintln(out, formatter.Dim("Nothing to change."))
	case taskflow.OutcomeReconciled:
		fmt.Fprintln(out, formatter.Warn("Someone else changed this task first. Showing the latest version."))
	}

	if task, ok := board.Task(taskID); ok {
		fmt.Fprint(out, formatter.Task(task))
	}
	return nil
}
