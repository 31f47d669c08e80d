package store

import (
	"context"

	"github.com/nhle/collabtask/internal/model"
)

// TaskFilter narrows a cached task listing.
type TaskFilter struct {
	Status     *model.TaskStatus
	AssigneeID *string
	Query      *string
	Limit      int
}

// Store is the local cache of server state. It is never authoritative:
// every write replaces rows with what the server last returned, except
// notification read state, which only moves forward.
type Store interface {
	// === Notifications ===

	UpsertNotifications(ctx context.Context, items []model.Notification) error
	ListNotifications(ctx context.Context, limit int) ([]model.Notification, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, id string) error

	// === Tasks ===

	ReplaceProjectTasks(ctx context.Context, projectID string, tasks []model.Task) error
	GetProjectTasks(ctx context.Context, projectID string, filter TaskFilter) ([]model.Task, error)
	GetTaskByID(ctx context.Context, id string) (*model.Task, error)

	// === Organizations and projects ===

	ReplaceOrganizations(ctx context.Context, orgs []model.Organization) error
	GetOrganizations(ctx context.Context) ([]model.Organization, error)
	ReplaceProjects(ctx context.Context, orgID string, projects []model.Project) error
	GetProjects(ctx context.Context, orgID string, includeArchived bool) ([]model.Project, error)
}

var _ Store = (*SQLiteStore)(nil)
