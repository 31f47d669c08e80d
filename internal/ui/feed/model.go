// Package feed renders the reconciled notification list.
package feed

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/collabtask/internal/keys"
	"github.com/nhle/collabtask/internal/model"
	"github.com/nhle/collabtask/internal/notify"
	"github.com/nhle/collabtask/internal/theme"
)

// SnapshotMsg carries a new reconciler snapshot into the view.
type SnapshotMsg notify.Snapshot

// MarkReadMsg asks the root model to mark one notification read.
type MarkReadMsg struct{ ID string }

// MarkAllReadMsg asks the root model to mark everything read.
type MarkAllReadMsg struct{}

// AnswerInviteMsg asks the root model to accept or reject an invitation.
type AnswerInviteMsg struct {
	ID     string
	Accept bool
}

// Model is the notification feed view.
type Model struct {
	keys   *keys.KeyMap
	items  []model.Notification
	unread int
	cursor int
	offset int
	width  int
	height int
	now    func() time.Time
}

// New creates an empty feed.
func New(keys *keys.KeyMap, width, height int) Model {
	return Model{keys: keys, width: width, height: height, now: time.Now}
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.scroll()
}

// Unread returns the unread count of the last snapshot.
func (m Model) Unread() int {
	return m.unread
}

// Selected returns the notification under the cursor.
func (m Model) Selected() (model.Notification, bool) {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return model.Notification{}, false
	}
	return m.items[m.cursor], true
}

// Update handles snapshots and feed keys.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case SnapshotMsg:
		m.apply(notify.Snapshot(msg))
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.items)-1 {
				m.cursor++
				m.scroll()
			}
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
				m.scroll()
			}
		case key.Matches(msg, m.keys.MarkRead):
			if n, ok := m.Selected(); ok && !n.Read {
				return m, emit(MarkReadMsg{ID: n.ID})
			}
		case key.Matches(msg, m.keys.MarkAllRead):
			if m.unread > 0 {
				return m, emit(MarkAllReadMsg{})
			}
		case key.Matches(msg, m.keys.Accept), key.Matches(msg, m.keys.Reject):
			if n, ok := m.Selected(); ok && n.Type == model.NotificationOrgInvite {
				return m, emit(AnswerInviteMsg{ID: n.ID, Accept: key.Matches(msg, m.keys.Accept)})
			}
		}
	}
	return m, nil
}

// apply swaps in a snapshot and keeps the cursor on the same id when it
// is still listed.
func (m *Model) apply(snap notify.Snapshot) {
	var selected string
	if n, ok := m.Selected(); ok {
		selected = n.ID
	}

	m.items = snap.Items
	m.unread = snap.Unread
	m.cursor = 0
	for i, n := range m.items {
		if n.ID == selected {
			m.cursor = i
			break
		}
	}
	if m.cursor >= len(m.items) {
		m.cursor = max(len(m.items)-1, 0)
	}
	m.scroll()
}

// rowHeight is the number of lines one entry takes.
const rowHeight = 2

func (m *Model) scroll() {
	visible := m.visibleRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}
}

func (m Model) visibleRows() int {
	return max(m.height/rowHeight, 1)
}

// View renders the feed.
func (m Model) View() string {
	if len(m.items) == 0 {
		return theme.HelpStyle.Render("  No notifications yet.")
	}

	end := min(m.offset+m.visibleRows(), len(m.items))
	rows := make([]string, 0, end-m.offset)
	for i := m.offset; i < end; i++ {
		rows = append(rows, m.renderRow(m.items[i], i == m.cursor))
	}
	return strings.Join(rows, "\n")
}

func (m Model) renderRow(n model.Notification, selected bool) string {
	dot := theme.SuccessStyle.Render("●")
	text := lipgloss.NewStyle()
	if n.Read {
		dot = theme.DimmedStyle.Render("○")
		text = theme.DimmedStyle
	}

	label := theme.NotificationStyle(n.Type).Render(Label(n.Type))
	title := text.Bold(!n.Read).Render(n.Title)
	when := theme.DimmedStyle.Render(Age(n.CreatedAt, m.now()))

	first := fmt.Sprintf("%s %s %s  %s", dot, label, title, when)
	second := "    " + text.Render(Summary(n))
	if n.Type == model.NotificationOrgInvite {
		second += theme.HelpStyle.Render("  [a] accept  [x] reject")
	}

	row := lipgloss.JoinVertical(lipgloss.Left, first, second)
	if selected {
		return theme.SelectedItemStyle.Width(max(m.width-2, 0)).Render(row)
	}
	return theme.ListItemStyle.Render(row)
}

// Label is the short tag shown for a notification type.
func Label(t model.NotificationType) string {
	switch t {
	case model.NotificationOrgInvite:
		return "invite"
	case model.NotificationMeeting:
		return "meeting"
	case model.NotificationChat:
		return "chat"
	default:
		return string(t)
	}
}

// Summary is the one-line body of a notification, enriched from its
// metadata when the message is empty.
func Summary(n model.Notification) string {
	if n.Message != "" {
		return n.Message
	}
	switch meta := n.Metadata.(type) {
	case model.OrgInviteMetadata:
		return fmt.Sprintf("%s invited you to %s", meta.InviterName, meta.OrgName)
	case model.MeetingMetadata:
		return fmt.Sprintf("%s at %s", meta.Title, meta.StartTime)
	case model.ChatMetadata:
		return fmt.Sprintf("%s in %s: %s", meta.SenderName, meta.ProjectName, meta.MessagePreview)
	default:
		return ""
	}
}

// Age formats how long ago t was, coarsely.
func Age(t *time.Time, now time.Time) string {
	if t == nil {
		return ""
	}
	d := now.Sub(*t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func emit(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}
