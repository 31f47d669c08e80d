package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nhle/collabtask/internal/model"
)

// ErrNotFound is returned when a cached record does not exist.
var ErrNotFound = errors.New("not found in cache")

const taskColumns = `
	id, project_id, org_id, title, description, status, version,
	assignee_ids, assignee_names, created_by_id, created_by_name,
	created_at, updated_at`

type taskRow struct {
	ID            string    `db:"id"`
	ProjectID     string    `db:"project_id"`
	OrgID         string    `db:"org_id"`
	Title         string    `db:"title"`
	Description   string    `db:"description"`
	Status        string    `db:"status"`
	Version       int       `db:"version"`
	AssigneeIDs   string    `db:"assignee_ids"`
	AssigneeNames string    `db:"assignee_names"`
	CreatedByID   string    `db:"created_by_id"`
	CreatedByName string    `db:"created_by_name"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r taskRow) toModel() (model.Task, error) {
	t := model.Task{
		ID:            r.ID,
		ProjectID:     r.ProjectID,
		OrgID:         r.OrgID,
		Title:         r.Title,
		Description:   r.Description,
		Status:        model.TaskStatus(r.Status),
		Version:       r.Version,
		CreatedByID:   r.CreatedByID,
		CreatedByName: r.CreatedByName,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(r.AssigneeIDs), &t.AssigneeIDs); err != nil {
		return model.Task{}, fmt.Errorf("unmarshaling assignee_ids of task %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.AssigneeNames), &t.AssigneeNames); err != nil {
		return model.Task{}, fmt.Errorf("unmarshaling assignee_names of task %s: %w", r.ID, err)
	}
	if len(t.AssigneeIDs) == 0 {
		t.AssigneeIDs = nil
	}
	if len(t.AssigneeNames) == 0 {
		t.AssigneeNames = nil
	}
	return t, nil
}

// ReplaceProjectTasks makes tasks the complete cached list for projectID
// in one transaction.
func (s *SQLiteStore) ReplaceProjectTasks(ctx context.Context, projectID string, tasks []model.Task) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tasks WHERE project_id = ?", projectID); err != nil {
		return fmt.Errorf("clearing tasks of project %s: %w", projectID, err)
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT OR REPLACE INTO tasks (`+taskColumns+`, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, t := range tasks {
		ids, err := json.Marshal(nonNil(t.AssigneeIDs))
		if err != nil {
			return fmt.Errorf("marshaling assignee_ids of task %s: %w", t.ID, err)
		}
		names, err := json.Marshal(nonNil(t.AssigneeNames))
		if err != nil {
			return fmt.Errorf("marshaling assignee_names of task %s: %w", t.ID, err)
		}

		_, err = stmt.ExecContext(ctx,
			t.ID, projectID, t.OrgID, t.Title, t.Description, string(t.Status), t.Version,
			string(ids), string(names), t.CreatedByID, t.CreatedByName,
			t.CreatedAt.UTC(), t.UpdatedAt.UTC(), now,
		)
		if err != nil {
			return fmt.Errorf("inserting task %s: %w", t.ID, err)
		}
	}

	return tx.Commit()
}

// GetProjectTasks returns the cached tasks of projectID, most recently
// updated first.
func (s *SQLiteStore) GetProjectTasks(
	ctx context.Context,
	projectID string,
	filter TaskFilter,
) ([]model.Task, error) {
	conditions := []string{"project_id = ?"}
	args := []interface{}{projectID}

	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.AssigneeID != nil {
		conditions = append(conditions, "EXISTS (SELECT 1 FROM json_each(assignee_ids) WHERE value = ?)")
		args = append(args, *filter.AssigneeID)
	}
	if filter.Query != nil && *filter.Query != "" {
		conditions = append(conditions, "(title LIKE ? OR description LIKE ?)")
		q := "%" + *filter.Query + "%"
		args = append(args, q, q)
	}

	query := "SELECT " + taskColumns + " FROM tasks WHERE " +
		strings.Join(conditions, " AND ") + " ORDER BY updated_at DESC, id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	var rows []taskRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}

	tasks := make([]model.Task, 0, len(rows))
	for _, r := range rows {
		t, err := r.toModel()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// GetTaskByID retrieves a single cached task.
func (s *SQLiteStore) GetTaskByID(ctx context.Context, id string) (*model.Task, error) {
	var r taskRow
	err := s.db.GetContext(ctx, &r, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting task %s: %w", id, err)
	}

	t, err := r.toModel()
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
