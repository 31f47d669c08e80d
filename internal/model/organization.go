package model

import "time"

// Organization is the top-level tenant that owns projects and members.
type Organization struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Address     string    `json:"address,omitempty"`
	Website     string    `json:"website,omitempty"`
	Description string    `json:"description,omitempty"`
	Role        string    `json:"role,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Member roles.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
	RoleOwner  = "owner"
)

// OrganizationMember is a user's membership in an organization.
type OrganizationMember struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

// OrganizationInput is the body of organization create and update calls.
type OrganizationInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Address     string `json:"address,omitempty"`
	Website     string `json:"website,omitempty"`
	LogoURL     string `json:"logoUrl,omitempty"`
}

// InviteMemberInput is the body of POST /organizations/{id}/members.
type InviteMemberInput struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// OrganizationAnalytics summarizes an organization.
type OrganizationAnalytics struct {
	TotalProjects  int `json:"total_projects"`
	TotalMembers   int `json:"total_members"`
	TotalTasks     int `json:"total_tasks"`
	ActiveTasks    int `json:"active_tasks"`
	CompletedTasks int `json:"completed_tasks"`
}
