package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/collabtask/internal/cli/formatter"
	"github.com/nhle/collabtask/internal/model"
	"github.com/nhle/collabtask/internal/notify"
)

func newNotificationsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notif", "n"},
		Short:   "Read and answer notifications",
	}

	cmd.AddCommand(
		newNotificationsListCmd(app),
		newNotificationsReadCmd(app),
		newNotificationsReadAllCmd(app),
		newNotificationsAnswerCmd(app, "accept", "Accept an organization invitation"),
		newNotificationsAnswerCmd(app, "reject", "Decline an organization invitation"),
	)

	return cmd
}

// syncedService returns a notification service warmed from the cache and,
// unless offline, refreshed from the server. Warming first keeps read
// state recorded by earlier runs.
func syncedService(ctx context.Context, app *App, pageSize int, offline bool) (*notify.Service, error) {
	if pageSize <= 0 {
		pageSize = app.Config.Poll.PageSize
	}
	svc := notify.NewService(app.Client, notify.NewReconciler(),
		notify.WithCache(app.Store),
		notify.WithPageSize(pageSize),
		notify.WithLogger(app.logger()),
	)
	if err := svc.Warm(ctx); err != nil {
		return nil, err
	}
	if offline {
		return svc, nil
	}

	if err := requireSession(app); err != nil {
		return nil, err
	}
	if err := svc.Refresh(ctx); err != nil {
		return nil, err
	}
	return svc, nil
}

func newNotificationsListCmd(app *App) *cobra.Command {
	var unread, offline bool
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent notifications, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)

			svc, err := syncedService(ctx, app, limit, offline)
			if err != nil {
				return err
			}
			snap := svc.Reconciler().Snapshot()

			items := snap.Items
			if unread {
				items = filterUnread(items)
			}

			out := cmd.OutOrStdout()
			fmt.Fprint(out, formatter.Notifications(items, app.now()))
			fmt.Fprintln(out, formatter.Dim(fmt.Sprintf("%d unread", snap.Unread)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&unread, "unread", false, "Only unread notifications")
	cmd.Flags().BoolVar(&offline, "offline", false, "Read from the local cache without calling the server")
	cmd.Flags().IntVar(&limit, "limit", 0, "How many notifications to fetch (default poll.page_size)")

	return cmd
}

func filterUnread(items []model.Notification) []model.Notification {
	out := make([]model.Notification, 0, len(items))
	for _, n := range items {
		if !n.Read {
			out = append(out, n)
		}
	}
	return out
}

func newNotificationsReadCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "read <notification-id>...",
		Short: "Mark notifications read",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)

			svc, err := syncedService(ctx, app, 0, false)
			if err != nil {
				return err
			}

			for _, id := range args {
				if err := svc.MarkRead(ctx, id); err != nil {
					// Read state is kept locally even when the server call fails.
					fmt.Fprintln(cmd.ErrOrStderr(), formatter.Warn(Describe(err)))
					continue
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), formatter.Success(fmt.Sprintf("%d unread", svc.Reconciler().Unread())))
			return nil
		},
	}
}

func newNotificationsReadAllCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)

			svc, err := syncedService(ctx, app, 0, false)
			if err != nil {
				return err
			}
			if err := svc.MarkAllRead(ctx); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), formatter.Success("All notifications read"))
			return nil
		},
	}
}

func newNotificationsAnswerCmd(app *App, verb, short string) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <notification-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)

			svc, err := syncedService(ctx, app, 0, false)
			if err != nil {
				return err
			}

			n, _ := svc.Reconciler().Get(args[0])
			answer := svc.AcceptInvite
			done := "Joined"
			if verb == "reject" {
				answer = svc.RejectInvite
				done = "Declined"
			}
			if err := answer(ctx, args[0]); err != nil {
				return err
			}

			if invite, ok := n.Metadata.(model.OrgInviteMetadata); ok && invite.OrgName != "" {
				done += " " + invite.OrgName
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.Success(done))
			return nil
		},
	}
}
