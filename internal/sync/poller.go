package sync

import (
	"context"
	"sort"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/collabtask/internal/api"
)

// SyncState represents the current state of a job.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
	// SyncPaused means the last run found the session expired. Ticks are
	// skipped until Resume.
	SyncPaused
)

func (s SyncState) String() string {
	switch s {
	case SyncIdle:
		return "idle"
	case SyncRunning:
		return "running"
	case SyncError:
		return "error"
	case SyncPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Job is a unit of background work run on an interval and on demand.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// SyncStatus holds the state of a single job.
type SyncStatus struct {
	Job      string
	State    SyncState
	LastSync time.Time
	Error    error
}

// SyncResultMsg is a tea.Msg sent when a job run completes.
type SyncResultMsg struct {
	Job            string
	Error          error
	SessionExpired bool
}

// defaultInterval applies to jobs registered without one.
const defaultInterval = 60 * time.Second

// defaultTimeout bounds a single run.
const defaultTimeout = 30 * time.Second

type jobEntry struct {
	job     Job
	trigger chan struct{}
}

// Poller runs registered jobs in the background.
type Poller struct {
	jobs     []*jobEntry
	statuses map[string]*SyncStatus
	resultCh chan SyncResultMsg
	timeout  time.Duration
	logger   *zap.Logger

	mu      gosync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      gosync.WaitGroup
}

// Option configures a Poller.
type Option func(*Poller)

// WithLogger sets the poller's logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Poller) { p.logger = l }
}

// WithTimeout bounds every job run.
func WithTimeout(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// New creates a new Poller.
func New(opts ...Option) *Poller {
	p := &Poller{
		statuses: make(map[string]*SyncStatus),
		resultCh: make(chan SyncResultMsg, 16),
		timeout:  defaultTimeout,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Register adds a job. Jobs registered after Start are not run.
func (p *Poller) Register(job Job) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if job.Interval <= 0 {
		job.Interval = defaultInterval
	}
	p.jobs = append(p.jobs, &jobEntry{job: job, trigger: make(chan struct{}, 1)})
	p.statuses[job.Name] = &SyncStatus{Job: job.Name, State: SyncIdle}
}

// Start launches one goroutine per job, each running immediately and
// then on its interval. The returned command delivers the first result.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	jobs := append([]*jobEntry(nil), p.jobs...)
	p.mu.Unlock()

	for _, entry := range jobs {
		p.wg.Add(1)
		go p.loop(ctx, entry)
	}

	return p.waitForResult()
}

// Stop halts all jobs and waits for in-flight runs to return.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()
}

// RefreshAll triggers an immediate run of every job, paused ones included.
func (p *Poller) RefreshAll() tea.Cmd {
	p.mu.Lock()
	jobs := append([]*jobEntry(nil), p.jobs...)
	p.mu.Unlock()

	for _, entry := range jobs {
		p.trigger(entry)
	}
	return nil
}

// Refresh triggers an immediate run of the named job.
func (p *Poller) Refresh(name string) tea.Cmd {
	p.mu.Lock()
	var target *jobEntry
	for _, entry := range p.jobs {
		if entry.job.Name == name {
			target = entry
			break
		}
	}
	p.mu.Unlock()

	if target != nil {
		p.trigger(target)
	}
	return nil
}

// Resume lets paused jobs run on their intervals again, typically after a
// fresh login.
func (p *Poller) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, s := range p.statuses {
		if s.State == SyncPaused {
			s.State = SyncIdle
			s.Error = nil
		}
	}
}

// GetStatuses returns the status of every job ordered by name.
func (p *Poller) GetStatuses() []SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	statuses := make([]SyncStatus, 0, len(p.statuses))
	for _, s := range p.statuses {
		statuses = append(statuses, *s)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Job < statuses[j].Job })
	return statuses
}

func (p *Poller) trigger(entry *jobEntry) {
	select {
	case entry.trigger <- struct{}{}:
	default:
		// A run is already pending.
	}
}

func (p *Poller) loop(ctx context.Context, entry *jobEntry) {
	defer p.wg.Done()

	ticker := time.NewTicker(entry.job.Interval)
	defer ticker.Stop()

	p.run(ctx, entry)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.paused(entry.job.Name) {
				continue
			}
			p.run(ctx, entry)
		case <-entry.trigger:
			p.run(ctx, entry)
		}
	}
}

func (p *Poller) paused(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statuses[name].State == SyncPaused
}

// run performs one job run and reports its result.
func (p *Poller) run(ctx context.Context, entry *jobEntry) {
	name := entry.job.Name
	p.setStatus(name, SyncRunning, nil)

	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := entry.job.Run(runCtx)
	if ctx.Err() != nil {
		// Stopped mid-run; nobody is listening.
		p.setStatus(name, SyncIdle, nil)
		return
	}

	switch {
	case err == nil:
		p.setStatus(name, SyncIdle, nil)
		p.sendResult(SyncResultMsg{Job: name})
	case api.IsSessionExpired(err):
		p.logger.Warn("session expired during background sync", zap.String("job", name))
		p.setStatus(name, SyncPaused, err)
		p.sendResult(SyncResultMsg{Job: name, Error: err, SessionExpired: true})
	default:
		p.logger.Warn("background sync failed", zap.String("job", name), zap.Error(err))
		p.setStatus(name, SyncError, err)
		p.sendResult(SyncResultMsg{Job: name, Error: err})
	}
}

// setStatus updates the status of a job.
func (p *Poller) setStatus(name string, state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status, ok := p.statuses[name]
	if !ok {
		return
	}

	status.State = state
	status.Error = err
	if state == SyncIdle && err == nil {
		status.LastSync = time.Now()
	}
}

// sendResult sends a SyncResultMsg on the result channel without blocking.
func (p *Poller) sendResult(msg SyncResultMsg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}

func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		return <-p.resultCh
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next sync result.
// This should be called after processing a SyncResultMsg to continue
// listening for future results.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}

// Results exposes the result stream to callers outside Bubble Tea.
func (p *Poller) Results() <-chan SyncResultMsg {
	return p.resultCh
}
