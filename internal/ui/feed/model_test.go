package feed

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/collabtask/internal/keys"
	"github.com/nhle/collabtask/internal/model"
	"github.com/nhle/collabtask/internal/notify"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func snapshot(items ...model.Notification) SnapshotMsg {
	unread := 0
	for _, n := range items {
		if !n.Read {
			unread++
		}
	}
	return SnapshotMsg(notify.Snapshot{Items: items, Unread: unread})
}

func TestFeed_CursorFollowsSelectedID(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 20)
	m, _ = m.Update(snapshot(
		model.Notification{ID: "b", Type: model.NotificationChat},
		model.Notification{ID: "a", Type: model.NotificationChat},
	))
	m, _ = m.Update(runes("j"))

	sel, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "a", sel.ID)

	// A push lands on top; the cursor stays on "a".
	m, _ = m.Update(snapshot(
		model.Notification{ID: "c", Type: model.NotificationChat},
		model.Notification{ID: "b", Type: model.NotificationChat},
		model.Notification{ID: "a", Type: model.NotificationChat},
	))
	sel, _ = m.Selected()
	assert.Equal(t, "a", sel.ID)
	assert.Equal(t, 3, m.Unread())

	// "a" disappears; the cursor is clamped.
	m, _ = m.Update(snapshot(model.Notification{ID: "c", Type: model.NotificationChat}))
	sel, _ = m.Selected()
	assert.Equal(t, "c", sel.ID)
}

func TestFeed_KeysEmitActions(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 20)
	m, _ = m.Update(snapshot(
		model.Notification{ID: "inv", Type: model.NotificationOrgInvite, Metadata: model.OrgInviteMetadata{OrgID: "o1"}},
		model.Notification{ID: "old", Type: model.NotificationChat, Read: true},
	))

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, MarkReadMsg{ID: "inv"}, cmd())

	_, cmd = m.Update(runes("M"))
	require.NotNil(t, cmd)
	assert.Equal(t, MarkAllReadMsg{}, cmd())

	_, cmd = m.Update(runes("a"))
	require.NotNil(t, cmd)
	assert.Equal(t, AnswerInviteMsg{ID: "inv", Accept: true}, cmd())

	_, cmd = m.Update(runes("x"))
	require.NotNil(t, cmd)
	assert.Equal(t, AnswerInviteMsg{ID: "inv", Accept: false}, cmd())

	// Read chats cannot be re-marked or answered.
	m, _ = m.Update(runes("j"))
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	_, cmd = m.Update(runes("a"))
	assert.Nil(t, cmd)
}

func TestFeed_View(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 20)
	assert.Contains(t, m.View(), "No notifications yet")

	m, _ = m.Update(snapshot(model.Notification{
		ID:       "inv",
		Type:     model.NotificationOrgInvite,
		Title:    "Organization invitation",
		Metadata: model.OrgInviteMetadata{OrgName: "Acme", InviterName: "Ada"},
	}))
	view := m.View()
	assert.Contains(t, view, "Organization invitation")
	assert.Contains(t, view, "Ada invited you to Acme")
	assert.Contains(t, view, "accept")
}

func TestAge(t *testing.T) {
	now := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		t := now.Add(-d)
		return &t
	}

	assert.Equal(t, "", Age(nil, now))
	assert.Equal(t, "just now", Age(at(10*time.Second), now))
	assert.Equal(t, "5m ago", Age(at(5*time.Minute), now))
	assert.Equal(t, "3h ago", Age(at(3*time.Hour), now))
	assert.Equal(t, "2d ago", Age(at(49*time.Hour), now))
}
