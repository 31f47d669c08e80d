package formatter

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/collabtask/internal/model"
)

var (
	ColorGreen  = lipgloss.Color("#10B981")
	ColorYellow = lipgloss.Color("#F59E0B")
	ColorRed    = lipgloss.Color("#EF4444")
	ColorBlue   = lipgloss.Color("#3B82F6")
	ColorPurple = lipgloss.Color("#7C3AED")
	ColorDim    = lipgloss.Color("#6B7280")
	ColorFg     = lipgloss.Color("#F9FAFB")
)

var (
	StyleGreen  = lipgloss.NewStyle().Foreground(ColorGreen)
	StyleYellow = lipgloss.NewStyle().Foreground(ColorYellow)
	StyleRed    = lipgloss.NewStyle().Foreground(ColorRed)
	StyleBlue   = lipgloss.NewStyle().Foreground(ColorBlue)
	StylePurple = lipgloss.NewStyle().Foreground(ColorPurple)
	StyleDim    = lipgloss.NewStyle().Foreground(ColorDim)
	StyleHeader = lipgloss.NewStyle().Foreground(ColorPurple).Bold(true)
	StyleBold   = lipgloss.NewStyle().Foreground(ColorFg).Bold(true)
)

// StatusColor returns the style for a task status.
func StatusColor(s model.TaskStatus) lipgloss.Style {
	switch s {
	case model.StatusDone:
		return StyleGreen
	case model.StatusReview:
		return StylePurple
	case model.StatusInProgress:
		return StyleYellow
	default:
		return StyleBlue
	}
}

// Header renders a section header with an underline.
func Header(text string) string {
	upper := strings.ToUpper(text)
	line := strings.Repeat("─", len(upper))
	return fmt.Sprintf("%s\n%s", StyleHeader.Render(upper), StyleDim.Render(line))
}

// Dim renders text in the muted color.
func Dim(text string) string {
	return StyleDim.Render(text)
}

// Bold renders text in bold.
func Bold(text string) string {
	return StyleBold.Render(text)
}

// Success renders a confirmation line.
func Success(text string) string {
	return StyleGreen.Render("✓ " + text)
}

// Warn renders a non-fatal notice.
func Warn(text string) string {
	return StyleYellow.Render("! " + text)
}
