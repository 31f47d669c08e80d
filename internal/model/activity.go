package model

import "time"

// Comment is a note left on a project.
type Comment struct {
	ID        string     `json:"id"`
	Content   string     `json:"content"`
	CreatedAt *time.Time `json:"createdAt"`
	User      User       `json:"user"`
}

// Meeting is a scheduled call inside an organization.
type Meeting struct {
	ID             string    `json:"id"`
	OrgID          string    `json:"org_id"`
	OrgName        string    `json:"org_name,omitempty"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	GoogleMeetLink string    `json:"google_meet_link"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	CreatedBy      User      `json:"created_by"`
	ParticipantIDs []string  `json:"participant_ids"`
}

// MeetingInput is the body of a meeting create call.
type MeetingInput struct {
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	GoogleMeetLink string    `json:"google_meet_link"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	ParticipantIDs []string  `json:"participant_ids"`
}

// Activity is one entry of an organization's audit feed.
type Activity struct {
	ID          string         `json:"id"`
	EntityType  string         `json:"entity_type"`
	EntityID    string         `json:"entity_id"`
	Action      string         `json:"action"`
	Metadata    map[string]any `json:"metadata"`
	UserID      string         `json:"user_id"`
	UserName    string         `json:"user_name"`
	EntityName  string         `json:"entity_name"`
	ProjectName string         `json:"project_name,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// ActivityPage is the payload of GET /organizations/{id}/activities.
type ActivityPage struct {
	Activities []Activity `json:"activities"`
	Pagination Pagination `json:"pagination"`
}

// SearchResult groups the hits of GET /search.
type SearchResult struct {
	Tasks []struct {
		ID          string     `json:"id"`
		Title       string     `json:"title"`
		Status      TaskStatus `json:"status"`
		ProjectID   string     `json:"project_id"`
		ProjectName string     `json:"project_name,omitempty"`
		OrgID       string     `json:"org_id,omitempty"`
		OrgName     string     `json:"org_name,omitempty"`
	} `json:"tasks"`
	Projects []struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
		OrgID       string `json:"org_id"`
		OrgName     string `json:"org_name,omitempty"`
	} `json:"projects"`
	Organizations []struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
	} `json:"organizations"`
}
