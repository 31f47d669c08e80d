package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/collabtask/internal/api"
	"github.com/nhle/collabtask/internal/cli/formatter"
)

func newSearchCmd(app *App) *cobra.Command {
	var types []string

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search tasks, projects and organizations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(app); err != nil {
				return err
			}

			result, err := app.Client.Search(commandContext(cmd), strings.Join(args, " "), types...)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.SearchResult(*result))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&types, "type", nil, "Restrict to task, project or organization (repeatable)")

	return cmd
}

func newActivitiesCmd(app *App) *cobra.Command {
	var q api.ActivityQuery

	cmd := &cobra.Command{
		Use:   "activities <org-id>",
		Short: "Show an organization's recent activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(app); err != nil {
				return err
			}

			page, err := app.Client.ListActivities(commandContext(cmd), args[0], q)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprint(out, formatter.Activities(page.Activities, app.now()))
			if page.Pagination.TotalPages > 1 {
				fmt.Fprintln(out, formatter.Dim(fmt.Sprintf("page %d of %d", page.Pagination.Page, page.Pagination.TotalPages)))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&q.Page, "page", 1, "Page number")
	cmd.Flags().IntVar(&q.PageSize, "page-size", 20, "Entries per page")
	cmd.Flags().StringVar(&q.EntityType, "entity", "", "Only this entity type (task, project, ...)")
	cmd.Flags().StringVar(&q.ActionType, "action", "", "Only this action (created, updated, ...)")

	return cmd
}
