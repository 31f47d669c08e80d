package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/collabtask/internal/api"
	"github.com/nhle/collabtask/internal/cli/formatter"
	"github.com/nhle/collabtask/internal/session"
)

func newLoginCmd(app *App) *cobra.Command {
	var email, password, otp string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email, password and an emailed code",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)

			if email == "" || password == "" {
				if app.Prompt == nil || !app.interactive() {
					return errors.New("--email and --password are required when not running in a terminal")
				}
				if err := app.Prompt.Credentials(&email, &password); err != nil {
					return err
				}
			}
			email = strings.TrimSpace(email)

			challenge, err := app.Client.LoginInitiate(ctx, email, password)
			if err != nil {
				return fmt.Errorf("login: %s", api.UserMessage(err))
			}

			if otp == "" {
				if app.Prompt == nil || !app.interactive() {
					return errors.New("--otp is required when not running in a terminal")
				}
				if err := app.Prompt.OTP(email, &otp); err != nil {
					return err
				}
			}

			cred, err := app.Client.VerifyOTP(ctx, *challenge, strings.TrimSpace(otp))
			if err != nil {
				return fmt.Errorf("verify code: %s", api.UserMessage(err))
			}

			app.logger().Info("signed in")
			fmt.Fprintln(cmd.OutOrStdout(), formatter.Success("Signed in as "+cred.User.DisplayName()))
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	cmd.Flags().StringVar(&otp, "otp", "", "Verification code from the login email")

	return cmd
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !app.Session.Present() {
				fmt.Fprintln(cmd.OutOrStdout(), formatter.Dim("Not signed in."))
				return nil
			}

			if err := app.Client.Logout(commandContext(cmd)); err != nil {
				// The local credential is gone either way.
				app.logger().Warn("server logout failed")
				fmt.Fprintln(cmd.ErrOrStderr(), formatter.Warn("Server logout failed: "+api.UserMessage(err)))
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.Success("Signed out"))
			return nil
		},
	}
}

func newWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cred, ok := app.Session.Credential()
			if !ok {
				return errNotLoggedIn
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", formatter.Bold(cred.User.DisplayName()), formatter.Dim("<"+cred.User.Email+">"))
			fmt.Fprintf(out, "  id:     %s\n", cred.User.ID)

			if exp, ok := session.Expiry(cred.AccessToken); ok {
				left := exp.Sub(app.now()).Round(time.Second)
				if left > 0 {
					fmt.Fprintf(out, "  token:  expires in %s\n", left)
				} else {
					fmt.Fprintf(out, "  token:  %s\n", formatter.Dim("expired, refreshes on next call"))
				}
			}
			return nil
		},
	}
}
