package model

import "time"

// Project groups tasks inside an organization. Archived projects can be
// restored.
type Project struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Description  string        `json:"description,omitempty"`
	Organization *Organization `json:"organization,omitempty"`
	CreatedBy    *User         `json:"createdBy,omitempty"`
	Archived     bool          `json:"is_archieved"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// ProjectInput is the body of project create and update calls.
type ProjectInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Archived    *bool  `json:"is_archieved,omitempty"`
}

// ProjectAnalytics summarizes task counts for one project.
type ProjectAnalytics struct {
	TotalTasks     int                `json:"total_tasks"`
	CompletedTasks int                `json:"completed_tasks"`
	StatusCounts   map[TaskStatus]int `json:"status_counts,omitempty"`
}
