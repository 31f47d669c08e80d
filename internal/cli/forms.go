package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/collabtask/internal/cli/formatter"
)

// Prompter collects the interactive parts of login.
type Prompter interface {
	Credentials(email, password *string) error
	OTP(email string, otp *string) error
}

// FormPrompter prompts with huh forms on the terminal.
type FormPrompter struct{}

func (FormPrompter) Credentials(email, password *string) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Placeholder("you@example.com").
				Value(email).
				Validate(validateEmail),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(password).
				Validate(validateRequired("Password")),
		),
	).WithTheme(collabtaskHuhTheme()).WithShowHelp(false).Run()
}

func (FormPrompter) OTP(email string, otp *string) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Verification code").
				Description(fmt.Sprintf("Sent to %s", email)).
				Placeholder("123456").
				Value(otp).
				Validate(validateRequired("Code")),
		),
	).WithTheme(collabtaskHuhTheme()).WithShowHelp(false).Run()
}

func collabtaskHuhTheme() *huh.Theme {
	t := huh.ThemeBase()

	t.Focused.Title = lipgloss.NewStyle().Foreground(formatter.ColorPurple).Bold(true)
	t.Focused.TextInput.Cursor = lipgloss.NewStyle().Foreground(formatter.ColorPurple)
	t.Focused.TextInput.Prompt = lipgloss.NewStyle().Foreground(formatter.ColorPurple)
	t.Focused.TextInput.Text = lipgloss.NewStyle().Foreground(formatter.ColorFg)
	t.Focused.TextInput.Placeholder = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Focused.Description = lipgloss.NewStyle().Foreground(formatter.ColorDim)

	t.Blurred.Title = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Blurred.TextInput.Prompt = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Blurred.TextInput.Text = lipgloss.NewStyle().Foreground(formatter.ColorDim)

	return t
}

func validateRequired(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func validateEmail(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("Email is required")
	}
	at := strings.Index(s, "@")
	if at <= 0 || at == len(s)-1 {
		return errors.New("Enter a valid email address")
	}
	return nil
}
