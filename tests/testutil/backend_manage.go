package testutil

import (
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/collabtask/internal/model"
)

// manageRoutes registers account, organization, member, project, comment
// and meeting management.
func (fb *FakeBackend) manageRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/signup", fb.handleSignup)
	mux.HandleFunc("POST /auth/forgot-password/initiate", fb.handleForgotInitiate)
	mux.HandleFunc("POST /auth/forgot-password/verify", fb.handleForgotVerify)
	mux.HandleFunc("PUT /users/me", fb.protected(fb.handleUpdateMe))

	org := "/organizations/{org}"
	mux.HandleFunc("POST /organizations", fb.protected(fb.handleCreateOrg))
	mux.HandleFunc("GET "+org, fb.protected(fb.handleGetOrg))
	mux.HandleFunc("PUT "+org, fb.protected(fb.handleUpdateOrg))
	mux.HandleFunc("DELETE "+org, fb.protected(fb.handleDeleteOrg))
	mux.HandleFunc("DELETE "+org+"/leave", fb.protected(fb.handleLeaveOrg))
	mux.HandleFunc("GET "+org+"/analytics", fb.protected(fb.handleOrgAnalytics))

	mux.HandleFunc("GET "+org+"/members", fb.protected(fb.handleListMembers))
	mux.HandleFunc("POST "+org+"/members", fb.protected(fb.handleInviteMember))
	mux.HandleFunc("DELETE "+org+"/members/{user}", fb.protected(fb.handleRemoveMember))
	mux.HandleFunc("PUT "+org+"/members/{user}/role", fb.protected(fb.handleMemberRole))

	project := org + "/projects/{project}"
	mux.HandleFunc("POST "+org+"/projects", fb.protected(fb.handleCreateProject))
	mux.HandleFunc("GET "+project, fb.protected(fb.handleGetProject))
	mux.HandleFunc("PUT "+project, fb.protected(fb.handleUpdateProject))
	mux.HandleFunc("DELETE "+project, fb.protected(fb.handleArchiveProject))
	mux.HandleFunc("POST "+project+"/restore", fb.protected(fb.handleRestoreProject))
	mux.HandleFunc("GET "+project+"/analytics", fb.protected(fb.handleProjectAnalytics))

	mux.HandleFunc("GET "+project+"/comments", fb.protected(fb.handleListComments))
	mux.HandleFunc("POST "+project+"/comments", fb.protected(fb.handleAddComment))
	mux.HandleFunc("PUT "+project+"/comments/{comment}", fb.protected(fb.handleEditComment))
	mux.HandleFunc("DELETE "+project+"/comments/{comment}", fb.protected(fb.handleDeleteComment))

	mux.HandleFunc("POST /meetings/organizations/{org}", fb.protected(fb.handleCreateMeeting))
	mux.HandleFunc("GET /meetings/my", fb.protected(fb.handleMyMeetings))
}

// AddMember registers a member of orgID.
func (fb *FakeBackend) AddMember(orgID string, m model.OrganizationMember) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.members[orgID] = append(fb.members[orgID], m)
}

// Members returns the server's member list for orgID.
func (fb *FakeBackend) Members(orgID string) []model.OrganizationMember {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]model.OrganizationMember(nil), fb.members[orgID]...)
}

// Invited returns the invitations sent from orgID.
func (fb *FakeBackend) Invited(orgID string) []model.InviteMemberInput {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]model.InviteMemberInput(nil), fb.invited[orgID]...)
}

// Organization returns the server's copy of an organization.
func (fb *FakeBackend) Organization(orgID string) (model.Organization, bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if i := fb.orgIndex(orgID); i >= 0 {
		return fb.orgs[i], true
	}
	return model.Organization{}, false
}

// Project returns the server's copy of a project.
func (fb *FakeBackend) Project(orgID, projectID string) (model.Project, bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if p := fb.findProject(orgID, projectID); p != nil {
		return *p, true
	}
	return model.Project{}, false
}

// AddComment stores c on projectID.
func (fb *FakeBackend) AddComment(projectID string, c model.Comment) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.comments[projectID] = append(fb.comments[projectID], c)
}

// Comments returns the server's comments on projectID.
func (fb *FakeBackend) Comments(projectID string) []model.Comment {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]model.Comment(nil), fb.comments[projectID]...)
}

// AddMeeting stores m as scheduled for the user.
func (fb *FakeBackend) AddMeeting(m model.Meeting) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.meetings = append(fb.meetings, m)
}

// Meetings returns every scheduled meeting.
func (fb *FakeBackend) Meetings() []model.Meeting {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]model.Meeting(nil), fb.meetings...)
}

// Signups returns the accounts registered through /auth/signup.
func (fb *FakeBackend) Signups() []model.User {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]model.User(nil), fb.signups...)
}

// ResetPassword returns the password set for email by a completed reset.
func (fb *FakeBackend) ResetPassword(email string) (string, bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	pw, ok := fb.resets[email]
	return pw, ok && pw != ""
}

func (fb *FakeBackend) user() model.User {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.User
}

func (fb *FakeBackend) orgIndex(orgID string) int {
	return slices.IndexFunc(fb.orgs, func(o model.Organization) bool { return o.ID == orgID })
}

func (fb *FakeBackend) findProject(orgID, projectID string) *model.Project {
	projects := fb.projects[orgID]
	for i := range projects {
		if projects[i].ID == projectID {
			return &projects[i]
		}
	}
	return nil
}

func (fb *FakeBackend) handleSignup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Email     string `json:"email"`
		Password  string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	if body.Email == "" || body.Password == "" {
		writeDetail(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()

	taken := body.Email == fb.User.Email || slices.ContainsFunc(fb.signups, func(u model.User) bool {
		return u.Email == body.Email
	})
	if taken {
		writeDetail(w, http.StatusBadRequest, "Email already registered")
		return
	}

	user := model.User{
		ID:        uuid.NewString(),
		FirstName: body.FirstName,
		LastName:  body.LastName,
		Email:     body.Email,
	}
	fb.signups = append(fb.signups, user)
	writeData(w, http.StatusCreated, user)
}

func (fb *FakeBackend) handleForgotInitiate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	fb.mu.Lock()
	defer fb.mu.Unlock()

	if body.Email != fb.User.Email {
		writeDetail(w, http.StatusNotFound, "User not found")
		return
	}
	// Pending until verified.
	fb.resets[body.Email] = ""
	writeData(w, http.StatusOK, nil)
}

func (fb *FakeBackend) handleForgotVerify(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email       string `json:"email"`
		OTP         string `json:"otp"`
		NewPassword string `json:"new_password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	fb.mu.Lock()
	defer fb.mu.Unlock()

	if _, pending := fb.resets[body.Email]; !pending || body.OTP != FakeOTP {
		writeDetail(w, http.StatusBadRequest, "Invalid OTP.")
		return
	}
	if len(body.NewPassword) < 8 {
		writeDetail(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}
	fb.resets[body.Email] = body.NewPassword
	writeData(w, http.StatusOK, nil)
}

func (fb *FakeBackend) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	fb.mu.Lock()
	defer fb.mu.Unlock()

	fb.User.FirstName = body.FirstName
	fb.User.LastName = body.LastName
	writeData(w, http.StatusOK, fb.User)
}

func (fb *FakeBackend) handleCreateOrg(w http.ResponseWriter, r *http.Request) {
	var in model.OrganizationInput
	_ = json.NewDecoder(r.Body).Decode(&in)

	if in.Name == "" {
		writeDetail(w, http.StatusBadRequest, "Name is required")
		return
	}

	now := time.Now().UTC()
	org := model.Organization{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		Address:     in.Address,
		Website:     in.Website,
		Role:        model.RoleOwner,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()

	fb.orgs = append(fb.orgs, org)
	fb.members[org.ID] = append(fb.members[org.ID], model.OrganizationMember{
		ID:        fb.User.ID,
		FirstName: fb.User.FirstName,
		LastName:  fb.User.LastName,
		Email:     fb.User.Email,
		Role:      model.RoleOwner,
	})
	writeData(w, http.StatusCreated, org)
}

func (fb *FakeBackend) handleGetOrg(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	i := fb.orgIndex(r.PathValue("org"))
	if i < 0 {
		writeDetail(w, http.StatusNotFound, "Organization not found")
		return
	}
	writeData(w, http.StatusOK, fb.orgs[i])
}

func (fb *FakeBackend) handleUpdateOrg(w http.ResponseWriter, r *http.Request) {
	var in model.OrganizationInput
	_ = json.NewDecoder(r.Body).Decode(&in)

	fb.mu.Lock()
	defer fb.mu.Unlock()

	i := fb.orgIndex(r.PathValue("org"))
	if i < 0 {
		writeDetail(w, http.StatusNotFound, "Organization not found")
		return
	}
	if in.Name == "" {
		writeDetail(w, http.StatusBadRequest, "Name is required")
		return
	}

	org := &fb.orgs[i]
	org.Name = in.Name
	org.Description = in.Description
	org.Address = in.Address
	org.Website = in.Website
	org.UpdatedAt = time.Now().UTC()
	writeData(w, http.StatusOK, *org)
}

func (fb *FakeBackend) handleDeleteOrg(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	i := fb.orgIndex(r.PathValue("org"))
	if i < 0 {
		writeDetail(w, http.StatusNotFound, "Organization not found")
		return
	}
	if fb.orgs[i].Role != model.RoleOwner {
		writeDetail(w, http.StatusForbidden, "Only the owner can delete an organization")
		return
	}
	fb.orgs = slices.Delete(fb.orgs, i, i+1)
	writeData(w, http.StatusOK, nil)
}

func (fb *FakeBackend) handleLeaveOrg(w http.ResponseWriter, r *http.Request) {
	orgID := r.PathValue("org")

	fb.mu.Lock()
	defer fb.mu.Unlock()

	i := fb.orgIndex(orgID)
	if i < 0 {
		writeDetail(w, http.StatusNotFound, "Organization not found")
		return
	}
	if fb.orgs[i].Role == model.RoleOwner {
		writeDetail(w, http.StatusBadRequest, "The owner cannot leave the organization")
		return
	}
	fb.orgs = slices.Delete(fb.orgs, i, i+1)
	fb.members[orgID] = slices.DeleteFunc(fb.members[orgID], func(m model.OrganizationMember) bool {
		return m.ID == fb.User.ID
	})
	writeData(w, http.StatusOK, nil)
}

func (fb *FakeBackend) handleOrgAnalytics(w http.ResponseWriter, r *http.Request) {
	orgID := r.PathValue("org")

	fb.mu.Lock()
	defer fb.mu.Unlock()

	out := model.OrganizationAnalytics{
		TotalProjects: len(fb.projects[orgID]),
		TotalMembers:  len(fb.members[orgID]),
	}
	for _, p := range fb.projects[orgID] {
		for _, t := range fb.tasks[p.ID] {
			out.TotalTasks++
			if t.Status == model.StatusDone {
				out.CompletedTasks++
			} else {
				out.ActiveTasks++
			}
		}
	}
	writeData(w, http.StatusOK, out)
}

func (fb *FakeBackend) handleListMembers(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	writeData(w, http.StatusOK, append([]model.OrganizationMember{}, fb.members[r.PathValue("org")]...))
}

func (fb *FakeBackend) handleInviteMember(w http.ResponseWriter, r *http.Request) {
	var in model.InviteMemberInput
	_ = json.NewDecoder(r.Body).Decode(&in)
	orgID := r.PathValue("org")

	fb.mu.Lock()
	defer fb.mu.Unlock()

	if slices.ContainsFunc(fb.members[orgID], func(m model.OrganizationMember) bool { return m.Email == in.Email }) {
		writeDetail(w, http.StatusBadRequest, "User is already a member")
		return
	}
	fb.invited[orgID] = append(fb.invited[orgID], in)
	writeData(w, http.StatusCreated, nil)
}

func (fb *FakeBackend) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	orgID := r.PathValue("org")
	userID := r.PathValue("user")

	fb.mu.Lock()
	defer fb.mu.Unlock()

	before := len(fb.members[orgID])
	fb.members[orgID] = slices.DeleteFunc(fb.members[orgID], func(m model.OrganizationMember) bool {
		return m.ID == userID
	})
	if len(fb.members[orgID]) == before {
		writeDetail(w, http.StatusNotFound, "Member not found")
		return
	}
	writeData(w, http.StatusOK, nil)
}

func (fb *FakeBackend) handleMemberRole(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Role string `json:"role"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	orgID := r.PathValue("org")
	userID := r.PathValue("user")

	fb.mu.Lock()
	defer fb.mu.Unlock()

	members := fb.members[orgID]
	for i := range members {
		if members[i].ID == userID {
			members[i].Role = body.Role
			writeData(w, http.StatusOK, nil)
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "Member not found")
}

func (fb *FakeBackend) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var in model.ProjectInput
	_ = json.NewDecoder(r.Body).Decode(&in)

	if in.Name == "" {
		writeDetail(w, http.StatusBadRequest, "Name is required")
		return
	}

	now := time.Now().UTC()
	p := model.Project{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()

	orgID := r.PathValue("org")
	fb.projects[orgID] = append(fb.projects[orgID], p)
	writeData(w, http.StatusCreated, p)
}

func (fb *FakeBackend) handleGetProject(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	p := fb.findProject(r.PathValue("org"), r.PathValue("project"))
	if p == nil {
		writeDetail(w, http.StatusNotFound, "Project not found")
		return
	}
	writeData(w, http.StatusOK, *p)
}

func (fb *FakeBackend) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var in model.ProjectInput
	_ = json.NewDecoder(r.Body).Decode(&in)

	fb.mu.Lock()
	defer fb.mu.Unlock()

	p := fb.findProject(r.PathValue("org"), r.PathValue("project"))
	if p == nil {
		writeDetail(w, http.StatusNotFound, "Project not found")
		return
	}
	if in.Name != "" {
		p.Name = in.Name
	}
	p.Description = in.Description
	if in.Archived != nil {
		p.Archived = *in.Archived
	}
	p.UpdatedAt = time.Now().UTC()
	writeData(w, http.StatusOK, *p)
}

func (fb *FakeBackend) handleArchiveProject(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	p := fb.findProject(r.PathValue("org"), r.PathValue("project"))
	if p == nil {
		writeDetail(w, http.StatusNotFound, "Project not found")
		return
	}
	p.Archived = true
	writeData(w, http.StatusOK, nil)
}

func (fb *FakeBackend) handleRestoreProject(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	p := fb.findProject(r.PathValue("org"), r.PathValue("project"))
	if p == nil {
		writeDetail(w, http.StatusNotFound, "Project not found")
		return
	}
	if !p.Archived {
		writeDetail(w, http.StatusBadRequest, "Project is not archived")
		return
	}
	p.Archived = false
	writeData(w, http.StatusOK, *p)
}

func (fb *FakeBackend) handleProjectAnalytics(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	out := model.ProjectAnalytics{StatusCounts: make(map[model.TaskStatus]int)}
	for _, t := range fb.tasks[r.PathValue("project")] {
		out.TotalTasks++
		out.StatusCounts[t.Status]++
		if t.Status == model.StatusDone {
			out.CompletedTasks++
		}
	}
	writeData(w, http.StatusOK, out)
}

func (fb *FakeBackend) handleListComments(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	writeData(w, http.StatusOK, append([]model.Comment{}, fb.comments[r.PathValue("project")]...))
}

func (fb *FakeBackend) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content string `json:"content"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	if body.Content == "" {
		writeDetail(w, http.StatusBadRequest, "Content is required")
		return
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()

	now := time.Now().UTC()
	c := model.Comment{ID: uuid.NewString(), Content: body.Content, CreatedAt: &now, User: fb.User}
	projectID := r.PathValue("project")
	fb.comments[projectID] = append(fb.comments[projectID], c)
	writeData(w, http.StatusCreated, c)
}

func (fb *FakeBackend) handleEditComment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content string `json:"content"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	fb.mu.Lock()
	defer fb.mu.Unlock()

	comments := fb.comments[r.PathValue("project")]
	for i := range comments {
		if comments[i].ID != r.PathValue("comment") {
			continue
		}
		if comments[i].User.ID != fb.User.ID {
			writeDetail(w, http.StatusForbidden, "You can only edit your own comments")
			return
		}
		comments[i].Content = body.Content
		writeData(w, http.StatusOK, comments[i])
		return
	}
	writeDetail(w, http.StatusNotFound, "Comment not found")
}

func (fb *FakeBackend) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("project")
	commentID := r.PathValue("comment")

	fb.mu.Lock()
	defer fb.mu.Unlock()

	before := len(fb.comments[projectID])
	fb.comments[projectID] = slices.DeleteFunc(fb.comments[projectID], func(c model.Comment) bool {
		return c.ID == commentID
	})
	if len(fb.comments[projectID]) == before {
		writeDetail(w, http.StatusNotFound, "Comment not found")
		return
	}
	writeData(w, http.StatusOK, nil)
}

func (fb *FakeBackend) handleCreateMeeting(w http.ResponseWriter, r *http.Request) {
	var in model.MeetingInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid body")
		return
	}
	if in.Title == "" {
		writeDetail(w, http.StatusBadRequest, "Title is required")
		return
	}
	if !in.EndTime.After(in.StartTime) {
		writeDetail(w, http.StatusBadRequest, "End time must be after start time")
		return
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()

	m := model.Meeting{
		ID:             uuid.NewString(),
		OrgID:          r.PathValue("org"),
		Title:          in.Title,
		Description:    in.Description,
		GoogleMeetLink: in.GoogleMeetLink,
		StartTime:      in.StartTime,
		EndTime:        in.EndTime,
		CreatedBy:      fb.User,
		ParticipantIDs: in.ParticipantIDs,
	}
	if i := fb.orgIndex(m.OrgID); i >= 0 {
		m.OrgName = fb.orgs[i].Name
	}
	fb.meetings = append(fb.meetings, m)
	writeData(w, http.StatusCreated, map[string]string{"id": m.ID})
}

func (fb *FakeBackend) handleMyMeetings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, _ := time.Parse(time.RFC3339, q.Get("from_time"))
	to, _ := time.Parse(time.RFC3339, q.Get("to_time"))

	fb.mu.Lock()
	defer fb.mu.Unlock()

	out := []model.Meeting{}
	for _, m := range fb.meetings {
		if !from.IsZero() && m.StartTime.Before(from) {
			continue
		}
		if !to.IsZero() && m.StartTime.After(to) {
			continue
		}
		out = append(out, m)
	}
	writeData(w, http.StatusOK, out)
}
