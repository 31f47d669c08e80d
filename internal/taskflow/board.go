package taskflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/nhle/collabtask/internal/api"
	"github.com/nhle/collabtask/internal/model"
)

// boardPageSize is the page size used to load a project's tasks. Boards
// are loaded in one page.
const boardPageSize = 100

// ErrTaskNotFound is returned for a task id that is not on the board.
var ErrTaskNotFound = errors.New("task not found on board")

// TaskAPI is the subset of the REST client the board writes through.
type TaskAPI interface {
	ListTasks(ctx context.Context, orgID, projectID string, q api.TaskQuery) (*model.TaskPage, error)
	CreateTask(ctx context.Context, orgID, projectID string, in model.CreateTaskInput) (*model.Task, error)
	UpdateTask(ctx context.Context, orgID, projectID, taskID string, in model.UpdateTaskInput) (*model.Task, error)
	ChangeTaskStatus(ctx context.Context, orgID, projectID, taskID string, in model.StatusChange) (*model.Task, error)
	AssignTask(ctx context.Context, orgID, projectID, taskID string, in model.Assignment) (*model.Task, error)
	DeleteTask(ctx context.Context, orgID, projectID, taskID string) error
}

// Reporter shows a failure message to the user.
type Reporter interface {
	ReportError(message string)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(message string)

func (f ReporterFunc) ReportError(message string) { f(message) }

// Cache receives every canonical task list the board loads.
type Cache interface {
	ReplaceProjectTasks(ctx context.Context, projectID string, tasks []model.Task) error
}

// Outcome describes how a write ended.
type Outcome int

const (
	// OutcomeApplied means the server accepted the write.
	OutcomeApplied Outcome = iota

	// OutcomeReconciled means the write lost a version race and the board
	// now shows the server's state instead.
	OutcomeReconciled

	// OutcomeUnchanged means there was nothing to write.
	OutcomeUnchanged

	// OutcomeFailed means the write was rejected and rolled back.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeReconciled:
		return "reconciled"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Board holds one project's tasks in server order and performs
// version-stamped writes against them.
type Board struct {
	api       TaskAPI
	orgID     string
	projectID string
	reporter  Reporter
	cache     Cache
	logger    *zap.Logger

	mu       sync.Mutex
	tasks    []model.Task
	onChange []func([]model.Task)
}

// Option configures a Board.
type Option func(*Board)

// WithCache writes every loaded task list through to c.
func WithCache(c Cache) Option {
	return func(b *Board) { b.cache = c }
}

// WithLogger sets the board's logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Board) { b.logger = l }
}

// NewBoard creates an empty board for one project. Call Load to fill it.
func NewBoard(client TaskAPI, orgID, projectID string, reporter Reporter, opts ...Option) *Board {
	b := &Board{
		api:       client,
		orgID:     orgID,
		projectID: projectID,
		reporter:  reporter,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With(zap.String("project_id", projectID))
	return b
}

// OnChange registers fn to receive the task list after every change.
func (b *Board) OnChange(fn func([]model.Task)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = append(b.onChange, fn)
}

// Load replaces the board with the server's current task list.
func (b *Board) Load(ctx context.Context) error {
	page, err := b.api.ListTasks(ctx, b.orgID, b.projectID, api.TaskQuery{PageSize: boardPageSize})
	if err != nil {
		return fmt.Errorf("loading tasks of project %s: %w", b.projectID, err)
	}

	b.mu.Lock()
	b.tasks = append([]model.Task(nil), page.Items...)
	b.mu.Unlock()
	b.changed()

	if b.cache != nil {
		if err := b.cache.ReplaceProjectTasks(ctx, b.projectID, page.Items); err != nil {
			b.logger.Warn("caching tasks", zap.Error(err))
		}
	}
	return nil
}

// Tasks returns a copy of the board in server order.
func (b *Board) Tasks() []model.Task {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.Task(nil), b.tasks...)
}

// Task returns the cached copy of one task.
func (b *Board) Task(taskID string) (model.Task, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i := b.indexOf(taskID); i >= 0 {
		return b.tasks[i], true
	}
	return model.Task{}, false
}

// Columns groups the board by status, keeping server order inside each
// column.
func (b *Board) Columns() map[model.TaskStatus][]model.Task {
	cols := make(map[model.TaskStatus][]model.Task, len(model.TaskStatuses))
	for _, t := range b.Tasks() {
		cols[t.Status] = append(cols[t.Status], t)
	}
	return cols
}

// MoveTask changes a task's status with the version the board last saw.
// The move shows immediately. A lost version race is absorbed by one
// silent reload; any other failure is reported and rolled back.
func (b *Board) MoveTask(ctx context.Context, taskID string, status model.TaskStatus) (Outcome, error) {
	if !status.Valid() {
		return OutcomeFailed, fmt.Errorf("unknown status %q", status)
	}

	return b.write(ctx, taskID,
		func(t *model.Task) bool {
			if t.Status == status {
				return false
			}
			t.Status = status
			return true
		},
		func(version int) (*model.Task, error) {
			return b.api.ChangeTaskStatus(ctx, b.orgID, b.projectID, taskID,
				model.StatusChange{Status: status, Version: version})
		},
	)
}

// Assign replaces a task's assignees.
func (b *Board) Assign(ctx context.Context, taskID string, assigneeIDs []string) (Outcome, error) {
	ids := append([]string{}, assigneeIDs...)

	return b.write(ctx, taskID,
		func(t *model.Task) bool {
			t.AssigneeIDs = ids
			t.AssigneeNames = nil
			return true
		},
		func(version int) (*model.Task, error) {
			return b.api.AssignTask(ctx, b.orgID, b.projectID, taskID,
				model.Assignment{AssigneeIDs: ids, Version: version})
		},
	)
}

// Update edits a task's fields. in.Version is ignored; the board's cached
// version is sent.
func (b *Board) Update(ctx context.Context, taskID string, in model.UpdateTaskInput) (Outcome, error) {
	if in.Status != nil && !in.Status.Valid() {
		return OutcomeFailed, fmt.Errorf("unknown status %q", *in.Status)
	}

	return b.write(ctx, taskID,
		func(t *model.Task) bool {
			if in.Title != nil {
				t.Title = *in.Title
			}
			if in.Description != nil {
				t.Description = *in.Description
			}
			if in.Status != nil {
				t.Status = *in.Status
			}
			if in.AssigneeIDs != nil {
				t.AssigneeIDs = in.AssigneeIDs
			}
			return true
		},
		func(version int) (*model.Task, error) {
			req := in
			req.Version = version
			return b.api.UpdateTask(ctx, b.orgID, b.projectID, taskID, req)
		},
	)
}

// Create adds a task and reloads the board.
func (b *Board) Create(ctx context.Context, in model.CreateTaskInput) (*model.Task, error) {
	task, err := b.api.CreateTask(ctx, b.orgID, b.projectID, in)
	if err != nil {
		b.report(err)
		return nil, err
	}
	b.reload(ctx)
	return task, nil
}

// Delete removes a task and reloads the board.
func (b *Board) Delete(ctx context.Context, taskID string) error {
	if err := b.api.DeleteTask(ctx, b.orgID, b.projectID, taskID); err != nil {
		b.report(err)
		return err
	}
	b.reload(ctx)
	return nil
}

// write runs one version-stamped write. apply mutates the cached record
// optimistically and reports whether anything changed; send issues the
// request carrying the version observed before apply.
func (b *Board) write(
	ctx context.Context,
	taskID string,
	apply func(*model.Task) bool,
	send func(version int) (*model.Task, error),
) (Outcome, error) {
	b.mu.Lock()
	i := b.indexOf(taskID)
	if i < 0 {
		b.mu.Unlock()
		return OutcomeFailed, fmt.Errorf("%s: %w", taskID, ErrTaskNotFound)
	}
	prev := b.tasks[i]
	next := prev
	next.AssigneeIDs = append([]string(nil), prev.AssigneeIDs...)
	if !apply(&next) {
		b.mu.Unlock()
		return OutcomeUnchanged, nil
	}
	b.tasks[i] = next
	b.mu.Unlock()
	b.changed()

	updated, err := send(prev.Version)
	switch {
	case err == nil:
		b.replace(*updated)
		b.reload(ctx)
		return OutcomeApplied, nil

	case api.IsConflict(err):
		b.logger.Info("task changed elsewhere, reloading",
			zap.String("task_id", taskID),
			zap.Int("version", prev.Version),
		)
		if loadErr := b.Load(ctx); loadErr != nil {
			b.logger.Warn("reload after conflict failed", zap.Error(loadErr))
			b.rollback(prev)
		}
		return OutcomeReconciled, nil

	default:
		b.rollback(prev)
		b.report(err)
		return OutcomeFailed, err
	}
}

// replace swaps in the server's record wholesale.
func (b *Board) replace(task model.Task) {
	b.mu.Lock()
	if i := b.indexOf(task.ID); i >= 0 {
		b.tasks[i] = task
	}
	b.mu.Unlock()
	b.changed()
}

func (b *Board) rollback(prev model.Task) {
	b.replace(prev)
}

// reload refreshes the board after an accepted write. The write already
// succeeded, so a failed reload is only logged.
func (b *Board) reload(ctx context.Context) {
	if err := b.Load(ctx); err != nil {
		b.logger.Warn("reload after write failed", zap.Error(err))
	}
}

func (b *Board) report(err error) {
	if b.reporter != nil {
		b.reporter.ReportError(api.UserMessage(err))
	}
}

func (b *Board) changed() {
	b.mu.Lock()
	hooks := append([]func([]model.Task){}, b.onChange...)
	snapshot := append([]model.Task(nil), b.tasks...)
	b.mu.Unlock()

	for _, fn := range hooks {
		fn(snapshot)
	}
}

// indexOf must be called with mu held.
func (b *Board) indexOf(taskID string) int {
	for i := range b.tasks {
		if b.tasks[i].ID == taskID {
			return i
		}
	}
	return -1
}
