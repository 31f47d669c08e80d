package api

import (
	"context"

	"github.com/nhle/collabtask/internal/model"
)

func projectPath(orgID, projectID string) string {
	return orgPath(orgID) + "/projects/" + escape(projectID)
}

// ListProjects returns an organization's active projects.
func (c *Client) ListProjects(ctx context.Context, orgID string) ([]model.Project, error) {
	var projects []model.Project
	if err := c.Get(ctx, orgPath(orgID)+"/projects", &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// ListArchivedProjects returns an organization's archived projects.
func (c *Client) ListArchivedProjects(ctx context.Context, orgID string) ([]model.Project, error) {
	var projects []model.Project
	if err := c.Get(ctx, orgPath(orgID)+"/projects/archived", &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// GetProject returns one project.
func (c *Client) GetProject(ctx context.Context, orgID, projectID string) (*model.Project, error) {
	var project model.Project
	if err := c.Get(ctx, projectPath(orgID, projectID), &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// CreateProject creates a project.
func (c *Client) CreateProject(ctx context.Context, orgID string, in model.ProjectInput) (*model.Project, error) {
	var project model.Project
	if err := c.Post(ctx, orgPath(orgID)+"/projects", in, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// UpdateProject edits a project.
func (c *Client) UpdateProject(ctx context.Context, orgID, projectID string, in model.ProjectInput) (*model.Project, error) {
	var project model.Project
	if err := c.Put(ctx, projectPath(orgID, projectID), in, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// DeleteProject archives a project.
func (c *Client) DeleteProject(ctx context.Context, orgID, projectID string) error {
	return c.Delete(ctx, projectPath(orgID, projectID), nil)
}

// RestoreProject brings an archived project back.
func (c *Client) RestoreProject(ctx context.Context, orgID, projectID string) (*model.Project, error) {
	var project model.Project
	if err := c.Post(ctx, projectPath(orgID, projectID)+"/restore", nil, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// ProjectAnalytics returns task counts for a project.
func (c *Client) ProjectAnalytics(ctx context.Context, orgID, projectID string) (*model.ProjectAnalytics, error) {
	var out model.ProjectAnalytics
	if err := c.Get(ctx, projectPath(orgID, projectID)+"/analytics", &out); err != nil {
		return nil, err
	}
	return &out, nil
}
