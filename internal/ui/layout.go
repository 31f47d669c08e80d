package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/collabtask/internal/theme"
)

// Layout manages the terminal frame: a header, a tab row, the content area,
// and a status bar.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	TabsHeight      int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		TabsHeight:      1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height left for the active view.
func (l Layout) ContentHeight() int {
	h := l.Height - l.HeaderHeight - l.TabsHeight - l.StatusBarHeight
	if h < 0 {
		return 0
	}
	return h
}

// RenderHeader renders the title on the left and status on the right,
// filling the gap with the header background.
func (l Layout) RenderHeader(title, status string) string {
	left := theme.HeaderStyle.Render(title)
	right := theme.HeaderStyle.Render(status)
	return lipgloss.JoinHorizontal(lipgloss.Top,
		left,
		l.fill(theme.HeaderStyle, l.Width-lipgloss.Width(left)-lipgloss.Width(right)),
		right,
	)
}

// RenderTabs renders the view switcher with active highlighted.
func (l Layout) RenderTabs(labels []string, active int) string {
	parts := make([]string, 0, len(labels))
	for i, label := range labels {
		if i == active {
			parts = append(parts, theme.SelectedItemStyle.Render(label))
			continue
		}
		parts = append(parts, theme.ListItemStyle.Render(theme.DimmedStyle.Render(label)))
	}
	return strings.Join(parts, " ")
}

// RenderStatusBar renders the bottom status bar.
func (l Layout) RenderStatusBar(hints string) string {
	rendered := theme.StatusBarStyle.Render(hints)
	return lipgloss.JoinHorizontal(lipgloss.Top,
		rendered,
		l.fill(theme.StatusBarStyle, l.Width-lipgloss.Width(rendered)),
	)
}

// RenderWithFrame stacks header, tabs, content and status bar.
func (l Layout) RenderWithFrame(header, tabs, content, statusBar string) string {
	content = lipgloss.NewStyle().Height(l.ContentHeight()).Render(content)
	return lipgloss.JoinVertical(lipgloss.Left, header, tabs, content, statusBar)
}

func (l Layout) fill(style lipgloss.Style, width int) string {
	if width <= 0 {
		return ""
	}
	return lipgloss.NewStyle().
		Width(width).
		Background(style.GetBackground()).
		Render("")
}
