package keys

import (
	"testing"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func TestDefaultKeyMap_NoFeedCollisions(t *testing.T) {
	k := DefaultKeyMap()
	feed := []key.Binding{
		k.Up, k.Down, k.SwitchView, k.Quit, k.Help, k.Refresh,
		k.Reconnect, k.MarkRead, k.MarkAllRead, k.Accept, k.Reject,
	}

	seen := map[string]string{}
	for _, b := range feed {
		for _, name := range b.Keys() {
			prev, dup := seen[name]
			assert.False(t, dup, "%q bound to both %q and %q", name, prev, b.Help().Desc)
			seen[name] = b.Help().Desc
		}
	}
}

func TestDefaultKeyMap_Matches(t *testing.T) {
	k := DefaultKeyMap()
	shiftL := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'L'}}
	l := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'l'}}

	assert.True(t, key.Matches(shiftL, k.MoveRight))
	assert.False(t, key.Matches(shiftL, k.Right))
	assert.True(t, key.Matches(l, k.Right))
	assert.True(t, key.Matches(tea.KeyMsg{Type: tea.KeyEnter}, k.MarkRead))
}
