package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/collabtask/internal/cli/formatter"
)

func newCommentsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comments",
		Short: "Read and write project comments",
	}

	list := &cobra.Command{
		Use:   "list <org-id> <project-id>",
		Short: "Show a project's comments",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(app); err != nil {
				return err
			}
			comments, err := app.Client.ListComments(commandContext(cmd), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.Comments(comments, app.now()))
			return nil
		},
	}

	add := &cobra.Command{
		Use:   "add <org-id> <project-id> <text...>",
		Short: "Comment on a project",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(app); err != nil {
				return err
			}
			text := strings.Join(args[2:], " ")
			comment, err := app.Client.AddComment(commandContext(cmd), args[0], args[1], text)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.Success("Commented ("+comment.ID+")"))
			return nil
		},
	}

	edit := &cobra.Command{
		Use:   "edit <org-id> <project-id> <comment-id> <text...>",
		Short: "Replace the text of your comment",
		Args:  cobra.MinimumNArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(app); err != nil {
				return err
			}
			text := strings.Join(args[3:], " ")
			if _, err := app.Client.EditComment(commandContext(cmd), args[0], args[1], args[2], text); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.Success("Updated "+args[2]))
			return nil
		},
	}

	remove := &cobra.Command{
		Use:     "delete <org-id> <project-id> <comment-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a comment",
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(app); err != nil {
				return err
			}
			if err := app.Client.DeleteComment(commandContext(cmd), args[0], args[1], args[2]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.Success("Deleted "+args[2]))
			return nil
		},
	}

	cmd.AddCommand(list, add, edit, remove)
	return cmd
}
