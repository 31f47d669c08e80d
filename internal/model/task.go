package model

import "time"

// TaskStatus is the board column a task sits in.
type TaskStatus string

// Task statuses accepted by the backend. Any status may move to any other;
// the only write guard is the version check.
const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusReview     TaskStatus = "review"
	StatusDone       TaskStatus = "done"
)

// TaskStatuses lists every status in board order.
var TaskStatuses = []TaskStatus{
	StatusTodo,
	StatusInProgress,
	StatusReview,
	StatusDone,
}

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	for _, known := range TaskStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Task is a unit of work inside a project.
type Task struct {
	// ID is the server-assigned identifier.
	ID string `json:"id"`

	// Title is the one-line summary.
	Title string `json:"title"`

	// Description is the optional long-form body.
	Description string `json:"description,omitempty"`

	// Status is the board column.
	Status TaskStatus `json:"status"`

	// AssigneeIDs holds the user IDs assigned to the task.
	AssigneeIDs []string `json:"assignee_ids,omitempty"`

	// AssigneeNames mirrors AssigneeIDs with display names.
	AssigneeNames []string `json:"assignee_names,omitempty"`

	// ProjectID is the owning project.
	ProjectID string `json:"project_id"`

	// OrgID is the organization of the owning project.
	OrgID string `json:"org_id,omitempty"`

	// Version increments by exactly one on every accepted write. A write
	// must carry the version it last observed.
	Version int `json:"version"`

	CreatedByID   string `json:"created_by_id,omitempty"`
	CreatedByName string `json:"created_by_name,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TaskPage is one page of a project's task list.
type TaskPage struct {
	Items      []Task `json:"items"`
	Total      int    `json:"total"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	TotalPages int    `json:"total_pages"`
}

// CreateTaskInput is the body of a task create call.
type CreateTaskInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status,omitempty"`
	AssigneeIDs []string   `json:"assignee_ids,omitempty"`
}

// UpdateTaskInput is the body of a task update call. Nil fields are left
// unchanged by the server.
type UpdateTaskInput struct {
	Title       *string     `json:"title,omitempty"`
	Description *string     `json:"description,omitempty"`
	Status      *TaskStatus `json:"status,omitempty"`
	AssigneeIDs []string    `json:"assignee_ids,omitempty"`
	Version     int         `json:"version"`
}

// StatusChange is the body of PUT .../tasks/{id}/status.
type StatusChange struct {
	Status  TaskStatus `json:"status"`
	Version int        `json:"version"`
}

// Assignment is the body of PUT .../tasks/{id}/assign.
type Assignment struct {
	AssigneeIDs []string `json:"assignee_ids"`
	Version     int      `json:"version"`
}
