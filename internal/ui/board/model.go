// Package board renders a project's tasks as status columns.
package board

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/collabtask/internal/keys"
	"github.com/nhle/collabtask/internal/model"
	"github.com/nhle/collabtask/internal/theme"
)

// TasksMsg carries the board's current task list into the view.
type TasksMsg []model.Task

// MoveMsg asks the root model to move a task to another column.
type MoveMsg struct {
	TaskID string
	To     model.TaskStatus
}

// Model is the board view.
type Model struct {
	keys    *keys.KeyMap
	title   string
	columns map[model.TaskStatus][]model.Task
	col     int
	row     int
	width   int
	height  int
}

// New creates an empty board titled title.
func New(keys *keys.KeyMap, title string, width, height int) Model {
	return Model{
		keys:    keys,
		title:   title,
		columns: map[model.TaskStatus][]model.Task{},
		width:   width,
		height:  height,
	}
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// Selected returns the task under the cursor.
func (m Model) Selected() (model.Task, bool) {
	tasks := m.columns[model.TaskStatuses[m.col]]
	if m.row < 0 || m.row >= len(tasks) {
		return model.Task{}, false
	}
	return tasks[m.row], true
}

// Update handles task lists and board keys.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case TasksMsg:
		m.apply(msg)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.MoveLeft):
			return m, m.move(-1)
		case key.Matches(msg, m.keys.MoveRight):
			return m, m.move(1)
		case key.Matches(msg, m.keys.Left):
			if m.col > 0 {
				m.col--
				m.clampRow()
			}
		case key.Matches(msg, m.keys.Right):
			if m.col < len(model.TaskStatuses)-1 {
				m.col++
				m.clampRow()
			}
		case key.Matches(msg, m.keys.Down):
			if m.row < len(m.columns[model.TaskStatuses[m.col]])-1 {
				m.row++
			}
		case key.Matches(msg, m.keys.Up):
			if m.row > 0 {
				m.row--
			}
		}
	}
	return m, nil
}

// move asks for the selected task to shift by delta columns. The cursor
// follows it.
func (m *Model) move(delta int) tea.Cmd {
	task, ok := m.Selected()
	target := m.col + delta
	if !ok || target < 0 || target >= len(model.TaskStatuses) {
		return nil
	}
	to := model.TaskStatuses[target]
	return func() tea.Msg { return MoveMsg{TaskID: task.ID, To: to} }
}

// apply swaps in tasks and keeps the cursor on the same task when it is
// still on the board.
func (m *Model) apply(tasks []model.Task) {
	selected, hadSelection := m.Selected()

	cols := make(map[model.TaskStatus][]model.Task, len(model.TaskStatuses))
	for _, t := range tasks {
		cols[t.Status] = append(cols[t.Status], t)
	}
	m.columns = cols

	if hadSelection {
		for ci, status := range model.TaskStatuses {
			for ri, t := range cols[status] {
				if t.ID == selected.ID {
					m.col, m.row = ci, ri
					return
				}
			}
		}
	}
	m.clampRow()
}

func (m *Model) clampRow() {
	n := len(m.columns[model.TaskStatuses[m.col]])
	if m.row >= n {
		m.row = max(n-1, 0)
	}
}

// View renders the columns side by side.
func (m Model) View() string {
	colWidth := max(m.width/len(model.TaskStatuses)-2, 12)

	rendered := make([]string, 0, len(model.TaskStatuses))
	for ci, status := range model.TaskStatuses {
		tasks := m.columns[status]
		lines := []string{
			theme.StatusStyle(status).Render(fmt.Sprintf("%s (%d)", StatusLabel(status), len(tasks))),
		}
		for ri, t := range tasks {
			line := truncate(t.Title, colWidth-2)
			if len(t.AssigneeNames) > 0 {
				line += "\n" + theme.DimmedStyle.Render(truncate(strings.Join(t.AssigneeNames, ", "), colWidth-2))
			}
			if ci == m.col && ri == m.row {
				lines = append(lines, theme.SelectedItemStyle.Render(line))
			} else {
				lines = append(lines, theme.ListItemStyle.Render(line))
			}
		}

		style := theme.ColumnStyle
		if ci == m.col {
			style = theme.FocusedColumnStyle
		}
		rendered = append(rendered, style.Width(colWidth).Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))
	}

	header := theme.HelpStyle.Render(m.title)
	return lipgloss.JoinVertical(lipgloss.Left, header, lipgloss.JoinHorizontal(lipgloss.Top, rendered...))
}

// StatusLabel is the column heading for a status.
func StatusLabel(s model.TaskStatus) string {
	switch s {
	case model.StatusTodo:
		return "To do"
	case model.StatusInProgress:
		return "In progress"
	case model.StatusReview:
		return "Review"
	case model.StatusDone:
		return "Done"
	default:
		return string(s)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 1 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
