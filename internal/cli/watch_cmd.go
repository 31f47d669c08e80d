package cli

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	tui "github.com/nhle/collabtask/internal/app"
	"github.com/nhle/collabtask/internal/notify"
	appsync "github.com/nhle/collabtask/internal/sync"
	"github.com/nhle/collabtask/internal/taskflow"
)

func newWatchCmd(app *App) *cobra.Command {
	var orgID, projectID string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live notifications, and optionally a project board",
		Long: "Opens a live view fed by the push channel and periodic pulls. " +
			"Pass --org and --project to add that project's board as a second tab.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(app); err != nil {
				return err
			}
			if (orgID == "") != (projectID == "") {
				return errors.New("--org and --project must be given together")
			}
			return runWatch(commandContext(cmd), app, orgID, projectID)
		},
	}

	cmd.Flags().StringVar(&orgID, "org", "", "Organization of the board to show")
	cmd.Flags().StringVar(&projectID, "project", "", "Project whose board to show")

	return cmd
}

func runWatch(ctx context.Context, app *App, orgID, projectID string) error {
	cfg := app.Config
	logger := app.logger()
	reporter := tui.NewReporter()

	svc := notify.NewService(app.Client, notify.NewReconciler(),
		notify.WithCache(app.Store),
		notify.WithPageSize(cfg.Poll.PageSize),
		notify.WithLogger(logger.Named("notify")),
	)
	if err := svc.Warm(ctx); err != nil {
		logger.Warn("warming notifications from cache", zap.Error(err))
	}

	dialer := app.Dialer
	if dialer == nil {
		dialer = notify.WebSocketDialer{}
	}
	listener := notify.NewListener(notify.ListenerConfigFrom(cfg), dialer, app.Session, svc,
		notify.WithListenerLogger(logger.Named("push")))

	poller := appsync.New(
		appsync.WithLogger(logger.Named("sync")),
		appsync.WithTimeout(cfg.API.Timeout()),
	)
	poller.Register(appsync.Job{
		Name:     "notifications",
		Interval: seconds(cfg.Poll.NotificationsIntervalSec),
		Run:      svc.Refresh,
	})

	deps := tui.Deps{
		Service:  svc,
		Listener: listener,
		Poller:   poller,
		Reporter: reporter,
	}
	if cred, ok := app.Session.Credential(); ok {
		deps.User = cred.User.DisplayName()
	}

	if projectID != "" {
		board := taskflow.NewBoard(app.Client, orgID, projectID, reporter,
			taskflow.WithCache(app.Store),
			taskflow.WithLogger(logger.Named("board")),
		)
		poller.Register(appsync.Job{
			Name:     "board",
			Interval: seconds(cfg.Poll.BoardIntervalSec),
			Run:      board.Load,
		})
		deps.Board = board
		deps.BoardTitle = boardTitle(ctx, app, orgID, projectID)
	}

	runCtx, cancel := context.WithCancel(ctx)
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		if err := listener.Run(runCtx); err != nil {
			logger.Warn("push channel stopped", zap.Error(err))
		}
	}()
	defer func() {
		cancel()
		<-stopped
	}()

	run := app.RunProgram
	if run == nil {
		run = runProgram
	}
	return run(tui.New(deps))
}

func runProgram(m tea.Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

// boardTitle names the board after the cached project, falling back to
// its id.
func boardTitle(ctx context.Context, app *App, orgID, projectID string) string {
	projects, err := app.Store.GetProjects(ctx, orgID, true)
	if err != nil {
		return projectID
	}
	for _, p := range projects {
		if p.ID == projectID {
			return p.Name
		}
	}
	return projectID
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return time.Minute
	}
	return time.Duration(n) * time.Second
}
