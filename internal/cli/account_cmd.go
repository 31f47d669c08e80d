package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/collabtask/internal/api"
	"github.com/nhle/collabtask/internal/cli/formatter"
)

func newSignupCmd(app *App) *cobra.Command {
	var in api.SignupInput

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create a CollabTask account",
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Email = strings.TrimSpace(in.Email)
			if err := validateEmail(in.Email); err != nil {
				return err
			}

			user, err := app.Client.Signup(commandContext(cmd), in)
			if err != nil {
				return err
			}

			app.logger().Info("account created")
			fmt.Fprintln(cmd.OutOrStdout(), formatter.Success("Account created for "+user.Email))
			fmt.Fprintln(cmd.OutOrStdout(), formatter.Dim("Run `collabtask login` to sign in."))
			return nil
		},
	}

	cmd.Flags().StringVar(&in.FirstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&in.LastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&in.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&in.Password, "password", "", "Account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newPasswordCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Manage your password",
	}

	var email, otp, newPassword string

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Reset a forgotten password",
		Long: "Without --otp, emails a reset code. With --otp and --new-password,\n" +
			"sets the new password.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			out := cmd.OutOrStdout()
			email = strings.TrimSpace(email)

			if otp == "" {
				if err := app.Client.ForgotPasswordInitiate(ctx, email); err != nil {
					return err
				}
				fmt.Fprintln(out, formatter.Success("Reset code sent to "+email))
				fmt.Fprintln(out, formatter.Dim("Run again with --otp and --new-password."))
				return nil
			}

			if newPassword == "" {
				return errors.New("--new-password is required with --otp")
			}
			if err := app.Client.ForgotPasswordVerify(ctx, email, strings.TrimSpace(otp), newPassword); err != nil {
				return err
			}
			fmt.Fprintln(out, formatter.Success("Password updated"))
			return nil
		},
	}

	reset.Flags().StringVar(&email, "email", "", "Account email")
	reset.Flags().StringVar(&otp, "otp", "", "Reset code from the email")
	reset.Flags().StringVar(&newPassword, "new-password", "", "New password")
	_ = reset.MarkFlagRequired("email")

	cmd.AddCommand(reset)
	return cmd
}

func newProfileCmd(app *App) *cobra.Command {
	var first, last string

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Change your display name",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(app); err != nil {
				return err
			}
			cred, _ := app.Session.Credential()
			if !cmd.Flags().Changed("first-name") {
				first = cred.User.FirstName
			}
			if !cmd.Flags().Changed("last-name") {
				last = cred.User.LastName
			}

			user, err := app.Client.UpdateMe(commandContext(cmd), first, last)
			if err != nil {
				return err
			}
			if err := app.Session.SetUser(*user); err != nil {
				app.logger().Warn("caching profile failed")
			}

			fmt.Fprintln(cmd.OutOrStdout(), formatter.Success("Profile updated: "+user.DisplayName()))
			return nil
		},
	}

	cmd.Flags().StringVar(&first, "first-name", "", "New first name")
	cmd.Flags().StringVar(&last, "last-name", "", "New last name")
	cmd.MarkFlagsOneRequired("first-name", "last-name")

	return cmd
}
