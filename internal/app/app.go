package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/collabtask/internal/api"
	"github.com/nhle/collabtask/internal/keys"
	"github.com/nhle/collabtask/internal/model"
	"github.com/nhle/collabtask/internal/notify"
	appsync "github.com/nhle/collabtask/internal/sync"
	"github.com/nhle/collabtask/internal/taskflow"
	"github.com/nhle/collabtask/internal/ui"
	"github.com/nhle/collabtask/internal/ui/board"
	"github.com/nhle/collabtask/internal/ui/feed"
	helpview "github.com/nhle/collabtask/internal/ui/help"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewFeed ViewState = iota
	ViewBoard
	ViewHelp
)

// Deps are the running services the live view drives. Listener, Poller
// and Board are optional.
type Deps struct {
	Service    *notify.Service
	Listener   *notify.Listener
	Poller     *appsync.Poller
	Board      *taskflow.Board
	BoardTitle string
	Reporter   *Reporter
	User       string
}

// Reporter collects user-facing failures from background work for the
// status bar. It implements taskflow.Reporter.
type Reporter struct {
	ch chan string
}

// NewReporter creates a Reporter.
func NewReporter() *Reporter {
	return &Reporter{ch: make(chan string, 8)}
}

// ReportError queues message for display, dropping it if the view is
// backed up.
func (r *Reporter) ReportError(message string) {
	select {
	case r.ch <- message:
	default:
	}
}

type (
	connStateMsg notify.State
	reportMsg    string
	actionMsg    struct {
		notice string
		err    error
	}
)

// Model is the root Bubble Tea model for the live view.
type Model struct {
	deps         Deps
	keys         *keys.KeyMap
	layout       ui.Layout
	currentView  ViewState
	previousView ViewState
	feed         feed.Model
	board        board.Model
	helpView     helpview.Model
	conn         notify.State
	notice       string
	failure      string
	ready        bool

	snapshots   <-chan notify.Snapshot
	unsubscribe func()
	states      chan notify.State
	tasks       chan []model.Task
}

// New wires the live view to deps.
func New(deps Deps) Model {
	k := keys.DefaultKeyMap()
	if deps.Reporter == nil {
		deps.Reporter = NewReporter()
	}

	snapshots, unsubscribe := deps.Service.Reconciler().Subscribe()
	m := Model{
		deps:        deps,
		keys:        k,
		currentView: ViewFeed,
		feed:        feed.New(k, 80, 24),
		board:       board.New(k, deps.BoardTitle, 80, 24),
		helpView:    helpview.New(k, 80, 24),
		snapshots:   snapshots,
		unsubscribe: unsubscribe,
		states:      make(chan notify.State, 1),
		tasks:       make(chan []model.Task, 1),
	}

	// Seed with whatever is already reconciled (a warm cache, say).
	m.feed, _ = m.feed.Update(feed.SnapshotMsg(deps.Service.Reconciler().Snapshot()))

	if deps.Listener != nil {
		m.conn = deps.Listener.State()
		states := m.states
		deps.Listener.OnStateChange(func(s notify.State) { offerLatest(states, s) })
	}
	if deps.Board != nil {
		m.board, _ = m.board.Update(board.TasksMsg(deps.Board.Tasks()))
		tasks := m.tasks
		deps.Board.OnChange(func(list []model.Task) { offerLatest(tasks, list) })
	}
	return m
}

// Init starts the background listeners and the poller.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.waitSnapshot(), m.waitState(), m.waitReport()}
	if m.deps.Board != nil {
		cmds = append(cmds, m.waitTasks())
	}
	if m.deps.Poller != nil {
		cmds = append(cmds, m.deps.Poller.Start())
	}
	return tea.Batch(cmds...)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.feed.SetSize(w, h)
		m.board.SetSize(w, h)
		m.helpView.SetSize(w, h)
		return m, nil

	case notify.Snapshot:
		m.feed, _ = m.feed.Update(feed.SnapshotMsg(msg))
		return m, m.waitSnapshot()

	case connStateMsg:
		m.conn = notify.State(msg)
		return m, m.waitState()

	case []model.Task:
		m.board, _ = m.board.Update(board.TasksMsg(msg))
		return m, m.waitTasks()

	case reportMsg:
		m.failure = string(msg)
		return m, m.waitReport()

	case appsync.SyncResultMsg:
		switch {
		case msg.SessionExpired:
			m.failure = "Your session has expired. Run `collabtask login` to sign in again."
		case msg.Error != nil:
			m.failure = fmt.Sprintf("%s: %s", msg.Job, api.UserMessage(msg.Error))
		default:
			if strings.HasPrefix(m.failure, msg.Job+":") {
				m.failure = ""
			}
		}
		return m, m.deps.Poller.WaitForNextResult()

	case actionMsg:
		if msg.err != nil {
			m.failure = api.UserMessage(msg.err)
			m.notice = ""
		} else {
			m.failure = ""
			m.notice = msg.notice
		}
		return m, nil

	case feed.MarkReadMsg:
		return m, m.action("", func(ctx context.Context) error {
			return m.deps.Service.MarkRead(ctx, msg.ID)
		})

	case feed.MarkAllReadMsg:
		return m, m.action("All notifications marked read", m.deps.Service.MarkAllRead)

	case feed.AnswerInviteMsg:
		if msg.Accept {
			return m, m.action("Invitation accepted", func(ctx context.Context) error {
				return m.deps.Service.AcceptInvite(ctx, msg.ID)
			})
		}
		return m, m.action("Invitation declined", func(ctx context.Context) error {
			return m.deps.Service.RejectInvite(ctx, msg.ID)
		})

	case board.MoveMsg:
		b := m.deps.Board
		if b == nil {
			return m, nil
		}
		// Failures reach the status bar through the reporter.
		return m, func() tea.Msg {
			_, _ = b.MoveTask(context.Background(), msg.TaskID, msg.To)
			return nil
		}

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.shutdown()
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, nil

		case key.Matches(msg, m.keys.Back):
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
			}
			m.failure, m.notice = "", ""
			return m, nil

		case key.Matches(msg, m.keys.SwitchView):
			if m.deps.Board == nil || m.currentView == ViewHelp {
				return m, nil
			}
			if m.currentView == ViewFeed {
				m.currentView = ViewBoard
			} else {
				m.currentView = ViewFeed
			}
			return m, nil

		case key.Matches(msg, m.keys.Refresh):
			if m.deps.Poller != nil {
				m.deps.Poller.Resume()
				m.deps.Poller.RefreshAll()
			}
			return m, nil

		case key.Matches(msg, m.keys.Reconnect):
			if m.deps.Listener != nil {
				m.deps.Listener.Connect()
			}
			return m, nil
		}
	}

	return m.updateActiveView(msg)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewFeed:
		m.feed, cmd = m.feed.Update(msg)
	case ViewBoard:
		m.board, cmd = m.board.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	title := "CollabTask"
	if m.deps.User != "" {
		title += " · " + m.deps.User
	}
	if n := m.feed.Unread(); n > 0 {
		title = fmt.Sprintf("%s [%d new]", title, n)
	}

	header := m.layout.RenderHeader(title, m.statusLine())
	tabs := m.layout.RenderTabs(m.tabLabels(), m.activeTab())
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, tabs, m.renderContent(), statusBar)
}

func (m Model) renderContent() string {
	switch m.currentView {
	case ViewBoard:
		return m.board.View()
	case ViewHelp:
		return m.helpView.View()
	default:
		return m.feed.View()
	}
}

func (m Model) tabLabels() []string {
	labels := []string{fmt.Sprintf("Notifications (%d)", m.feed.Unread())}
	if m.deps.Board != nil {
		labels = append(labels, "Board")
	}
	return labels
}

func (m Model) activeTab() int {
	view := m.currentView
	if view == ViewHelp {
		view = m.previousView
	}
	if view == ViewBoard {
		return 1
	}
	return 0
}

// statusLine summarizes the push channel and background sync.
func (m Model) statusLine() string {
	parts := []string{}
	if m.deps.Listener != nil {
		parts = append(parts, "push: "+m.conn.String())
	}
	if m.deps.Poller != nil {
		parts = append(parts, "sync: "+syncSummary(m.deps.Poller.GetStatuses()))
	}
	return strings.Join(parts, " · ")
}

// syncSummary returns a short string describing the combined sync state.
func syncSummary(statuses []appsync.SyncStatus) string {
	if len(statuses) == 0 {
		return "off"
	}

	running := 0
	var failing []string
	for _, s := range statuses {
		switch s.State {
		case appsync.SyncRunning:
			running++
		case appsync.SyncError, appsync.SyncPaused:
			failing = append(failing, s.Job)
		}
	}

	if running > 0 {
		return fmt.Sprintf("syncing (%d)", running)
	}
	if len(failing) > 0 {
		return "stale: " + strings.Join(failing, ", ")
	}
	return "idle"
}

// keyHints returns the status bar text: a failure or notice when one is
// pending, otherwise the shortcuts for the active view.
func (m Model) keyHints() string {
	if m.failure != "" {
		return "⚠ " + m.failure + " | esc dismiss"
	}
	if m.notice != "" {
		return m.notice
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewBoard:
		return "h/l column | j/k task | H/L move | tab feed | r refresh | ? help | q quit"
	default:
		hints := "j/k move | enter read | M read all | a/x invite | r refresh | c reconnect | ? help | q quit"
		if m.deps.Board != nil {
			hints = "tab board | " + hints
		}
		return hints
	}
}

func (m Model) action(notice string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return actionMsg{notice: notice, err: fn(context.Background())}
	}
}

func (m Model) shutdown() {
	if m.deps.Poller != nil {
		m.deps.Poller.Stop()
	}
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// offerLatest replaces whatever is buffered in ch with v. ch must have a
// buffer of one and a single sender.
func offerLatest[T any](ch chan T, v T) {
	select {
	case <-ch:
	default:
	}
	ch <- v
}

func (m Model) waitSnapshot() tea.Cmd {
	ch := m.snapshots
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return nil
		}
		return snap
	}
}

func (m Model) waitState() tea.Cmd {
	ch := m.states
	return func() tea.Msg { return connStateMsg(<-ch) }
}

func (m Model) waitTasks() tea.Cmd {
	ch := m.tasks
	return func() tea.Msg { return <-ch }
}

func (m Model) waitReport() tea.Cmd {
	ch := m.deps.Reporter.ch
	return func() tea.Msg { return reportMsg(<-ch) }
}
