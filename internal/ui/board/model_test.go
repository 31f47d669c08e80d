package board

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/collabtask/internal/keys"
	"github.com/nhle/collabtask/internal/model"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func tasks() TasksMsg {
	return TasksMsg{
		{ID: "t1", Title: "Write docs", Status: model.StatusTodo},
		{ID: "t2", Title: "Fix login", Status: model.StatusTodo},
		{ID: "t3", Title: "Ship it", Status: model.StatusReview, AssigneeNames: []string{"Ada"}},
	}
}

func TestBoard_NavigateAndMove(t *testing.T) {
	m := New(keys.DefaultKeyMap(), "Acme / Website", 120, 30)
	m, _ = m.Update(tasks())

	m, _ = m.Update(runes("j"))
	sel, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "t2", sel.ID)

	_, cmd := m.Update(runes("L"))
	require.NotNil(t, cmd)
	assert.Equal(t, MoveMsg{TaskID: "t2", To: model.StatusInProgress}, cmd())

	// Nothing left of the first column.
	_, cmd = m.Update(runes("H"))
	assert.Nil(t, cmd)

	// The in-progress column is empty.
	m, _ = m.Update(runes("l"))
	_, ok = m.Selected()
	assert.False(t, ok)

	m, _ = m.Update(runes("l"))
	sel, ok = m.Selected()
	require.True(t, ok)
	assert.Equal(t, "t3", sel.ID)
}

func TestBoard_CursorFollowsMovedTask(t *testing.T) {
	m := New(keys.DefaultKeyMap(), "", 120, 30)
	m, _ = m.Update(tasks())
	m, _ = m.Update(runes("j"))

	moved := tasks()
	moved[1].Status = model.StatusDone
	m, _ = m.Update(moved)

	sel, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "t2", sel.ID)
	assert.Equal(t, model.StatusDone, sel.Status)
}

func TestBoard_View(t *testing.T) {
	m := New(keys.DefaultKeyMap(), "Acme / Website", 120, 30)
	m, _ = m.Update(tasks())

	view := m.View()
	assert.Contains(t, view, "Acme / Website")
	assert.Contains(t, view, "To do (2)")
	assert.Contains(t, view, "Review (1)")
	assert.Contains(t, view, "Ada")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
