package api

import (
	"context"
	"net/url"
	"strconv"

	"github.com/nhle/collabtask/internal/model"
)

// TaskQuery filters a task listing. Zero fields are omitted.
type TaskQuery struct {
	Page       int
	PageSize   int
	Status     model.TaskStatus
	AssigneeID string
	SortBy     string
	SortOrder  string
}

func (q TaskQuery) values() url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(q.PageSize))
	}
	if q.Status != "" {
		v.Set("status", string(q.Status))
	}
	if q.AssigneeID != "" {
		v.Set("assignee_id", q.AssigneeID)
	}
	if q.SortBy != "" {
		v.Set("sort_by", q.SortBy)
	}
	if q.SortOrder != "" {
		v.Set("sort_order", q.SortOrder)
	}
	return v
}

func tasksPath(orgID, projectID string) string {
	return projectPath(orgID, projectID) + "/tasks"
}

func taskPath(orgID, projectID, taskID string) string {
	return tasksPath(orgID, projectID) + "/" + escape(taskID)
}

// ListTasks returns one page of a project's tasks.
func (c *Client) ListTasks(ctx context.Context, orgID, projectID string, q TaskQuery) (*model.TaskPage, error) {
	var page model.TaskPage
	if err := c.Get(ctx, tasksPath(orgID, projectID), &page, WithQuery(q.values())); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetTask returns one task.
func (c *Client) GetTask(ctx context.Context, orgID, projectID, taskID string) (*model.Task, error) {
	var task model.Task
	if err := c.Get(ctx, taskPath(orgID, projectID, taskID), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CreateTask creates a task at version 1.
func (c *Client) CreateTask(ctx context.Context, orgID, projectID string, in model.CreateTaskInput) (*model.Task, error) {
	var task model.Task
	if err := c.Post(ctx, tasksPath(orgID, projectID), in, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTask edits a task. in.Version must be the version last observed;
// a stale version yields a *ConflictError.
func (c *Client) UpdateTask(ctx context.Context, orgID, projectID, taskID string, in model.UpdateTaskInput) (*model.Task, error) {
	var task model.Task
	if err := c.Put(ctx, taskPath(orgID, projectID, taskID), in, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// ChangeTaskStatus moves a task to another column.
func (c *Client) ChangeTaskStatus(ctx context.Context, orgID, projectID, taskID string, in model.StatusChange) (*model.Task, error) {
	var task model.Task
	if err := c.Put(ctx, taskPath(orgID, projectID, taskID)+"/status", in, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// AssignTask replaces a task's assignees.
func (c *Client) AssignTask(ctx context.Context, orgID, projectID, taskID string, in model.Assignment) (*model.Task, error) {
	var task model.Task
	if err := c.Put(ctx, taskPath(orgID, projectID, taskID)+"/assign", in, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// DeleteTask deletes a task.
func (c *Client) DeleteTask(ctx context.Context, orgID, projectID, taskID string) error {
	return c.Delete(ctx, taskPath(orgID, projectID, taskID), nil)
}
