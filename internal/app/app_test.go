package app

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/collabtask/internal/api"
	"github.com/nhle/collabtask/internal/model"
	"github.com/nhle/collabtask/internal/notify"
	appsync "github.com/nhle/collabtask/internal/sync"
	"github.com/nhle/collabtask/internal/taskflow"
	"github.com/nhle/collabtask/internal/ui/board"
	"github.com/nhle/collabtask/internal/ui/feed"
	"github.com/nhle/collabtask/tests/testutil"
)

type fixture struct {
	backend *testutil.FakeBackend
	client  *api.Client
	service *notify.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	fb := testutil.NewFakeBackend(t)
	sess := testutil.NewSession(t, fb.Credential())
	client := api.NewClient(api.ConfigFrom(testutil.APIConfig(fb.URL())), sess, nil)
	return fixture{
		backend: fb,
		client:  client,
		service: notify.NewService(client, notify.NewReconciler()),
	}
}

func sized(m tea.Model) Model {
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	return next.(Model)
}

func TestModel_MarkReadRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.backend.AddNotification(model.Notification{ID: "n1", Type: model.NotificationChat, Title: "Hello"})
	require.NoError(t, f.service.Refresh(context.Background()))

	m := sized(New(Deps{Service: f.service, User: "Ada Lovelace"}))
	view := m.View()
	assert.Contains(t, view, "Ada Lovelace [1 new]")
	assert.Contains(t, view, "Hello")

	next, cmd := m.Update(feed.MarkReadMsg{ID: "n1"})
	require.NotNil(t, cmd)
	msg := cmd()
	assert.Equal(t, actionMsg{}, msg)

	server, _ := f.backend.Notification("n1")
	assert.True(t, server.Read)

	// The reconciler publishes the change to the view.
	snap := m.waitSnapshot()()
	next, _ = next.Update(snap)
	assert.NotContains(t, next.View(), "[1 new]")
}

func TestModel_FailuresReachTheStatusBar(t *testing.T) {
	f := newFixture(t)
	poller := appsync.New()
	m := sized(New(Deps{Service: f.service, Poller: poller}))

	next, _ := m.Update(appsync.SyncResultMsg{Job: "notifications", Error: errors.New("boom")})
	assert.Contains(t, next.View(), "notifications: boom")

	next, _ = next.Update(appsync.SyncResultMsg{Job: "notifications"})
	assert.NotContains(t, next.View(), "boom")

	next, _ = next.Update(appsync.SyncResultMsg{
		Job:            "notifications",
		Error:          &api.SessionExpiredError{},
		SessionExpired: true,
	})
	assert.Contains(t, next.View(), "collabtask login")

	next, _ = next.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.NotContains(t, next.View(), "collabtask login")
}

func TestModel_BoardTabAndMove(t *testing.T) {
	f := newFixture(t)
	f.backend.SeedTask("p1", model.Task{ID: "t1", Title: "Write docs"})

	reporter := NewReporter()
	b := taskflow.NewBoard(f.client, "o1", "p1", reporter)
	require.NoError(t, b.Load(context.Background()))

	m := sized(New(Deps{Service: f.service, Board: b, BoardTitle: "Acme / Website", Reporter: reporter}))
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Contains(t, next.View(), "To do (1)")

	_, cmd := next.Update(board.MoveMsg{TaskID: "t1", To: model.StatusDone})
	require.NotNil(t, cmd)
	cmd()

	server, _ := f.backend.Task("p1", "t1")
	assert.Equal(t, model.StatusDone, server.Status)
	assert.Equal(t, 2, server.Version)

	// Board changes arrive through the OnChange bridge.
	select {
	case tasks := <-m.tasks:
		next, _ = next.Update(tasks)
	case <-time.After(time.Second):
		t.Fatal("no board update")
	}
	assert.Contains(t, next.View(), "Done (1)")

	reporter.ReportError("Task not found")
	next, _ = next.Update(m.waitReport()())
	assert.Contains(t, next.View(), "Task not found")
}

func TestModel_QuitStopsPoller(t *testing.T) {
	f := newFixture(t)
	poller := appsync.New()
	poller.Register(appsync.Job{Name: "noop", Interval: time.Hour, Run: func(context.Context) error { return nil }})

	m := sized(New(Deps{Service: f.service, Poller: poller}))
	m.Init()

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestSyncSummary(t *testing.T) {
	assert.Equal(t, "off", syncSummary(nil))
	assert.Equal(t, "idle", syncSummary([]appsync.SyncStatus{{Job: "a"}}))
	assert.Equal(t, "syncing (1)", syncSummary([]appsync.SyncStatus{{Job: "a", State: appsync.SyncRunning}}))
	assert.Equal(t, "stale: a, b", syncSummary([]appsync.SyncStatus{
		{Job: "a", State: appsync.SyncError},
		{Job: "b", State: appsync.SyncPaused},
	}))
}

func TestModel_StateBridgeKeepsNewest(t *testing.T) {
	f := newFixture(t)
	m := New(Deps{Service: f.service})

	// A reconnect burst nobody has read yet.
	for i := 0; i < 10; i++ {
		offerLatest(m.states, notify.StateConnecting)
		offerLatest(m.states, notify.StateDisconnected)
	}
	offerLatest(m.states, notify.StateConnected)

	assert.Equal(t, connStateMsg(notify.StateConnected), m.waitState()())
	assert.Empty(t, m.states)
}
