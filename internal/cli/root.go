package cli

import (
	"context"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/collabtask/internal/api"
	"github.com/nhle/collabtask/internal/model"
	"github.com/nhle/collabtask/internal/notify"
	"github.com/nhle/collabtask/internal/session"
	"github.com/nhle/collabtask/internal/store"
)

// App holds everything the commands run against.
type App struct {
	Config  *model.AppConfig
	Session *session.Session
	Client  *api.Client
	Store   store.Store
	Logger  *zap.Logger

	// Dialer opens the push channel for watch.
	Dialer notify.Dialer

	// Prompt collects interactive input. Nil means flags are required.
	Prompt Prompter

	// RunProgram runs the live view. Tests replace it to avoid a TTY.
	RunProgram func(m tea.Model) error

	// Now is the clock used for relative times.
	Now func() time.Time

	IsInteractive func() bool
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *App) interactive() bool {
	if a.IsInteractive != nil {
		return a.IsInteractive()
	}
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}

func (a *App) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}

// NewRootCmd creates the top-level "collabtask" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "collabtask",
		Short:         "Terminal client for CollabTask",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newSignupCmd(app),
		newLoginCmd(app),
		newLogoutCmd(app),
		newWhoamiCmd(app),
		newPasswordCmd(app),
		newProfileCmd(app),
		newOrgsCmd(app),
		newMembersCmd(app),
		newProjectsCmd(app),
		newCommentsCmd(app),
		newMeetingsCmd(app),
		newTasksCmd(app),
		newNotificationsCmd(app),
		newSearchCmd(app),
		newActivitiesCmd(app),
		newWatchCmd(app),
	)

	return root
}

// requireSession fails fast when no one is signed in.
func requireSession(app *App) error {
	if !app.Session.Present() {
		return errNotLoggedIn
	}
	return nil
}

// commandContext is the context a command's API calls run under.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
