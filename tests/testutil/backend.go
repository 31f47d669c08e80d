package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nhle/collabtask/internal/model"
)

// Fixed credentials accepted by the fake login flow.
const (
	FakeEmail    = "ada@example.com"
	FakePassword = "correct horse"
	FakeOTP      = "123456"
)

var fakeSigningKey = []byte("collabtask-test-key")

// FakeBackend is an in-process CollabTask server covering the routes the
// client uses. Tokens are real JWTs; expiry is controlled by the test.
type FakeBackend struct {
	Server *httptest.Server
	User   model.User

	mu            sync.Mutex
	access        map[string]bool
	expired       map[string]bool
	refresh       map[string]bool
	rejectAll     bool
	failRefresh   bool
	refreshGate   chan struct{}
	refreshCalls  int
	calls         map[string]int
	delays        map[string]time.Duration
	failures      map[string]fakeFailure
	hooks         map[string]func()
	orgs          []model.Organization
	projects      map[string][]model.Project
	activities    map[string][]model.Activity
	invites       map[string]string
	tasks         map[string][]*model.Task
	members       map[string][]model.OrganizationMember
	invited       map[string][]model.InviteMemberInput
	comments      map[string][]model.Comment
	meetings      []model.Meeting
	signups       []model.User
	resets        map[string]string
	notifications []model.Notification
	sockets       map[*websocket.Conn]context.CancelFunc
	wsConnects    int
}

type fakeFailure struct {
	status  int
	message string
}

// NewFakeBackend starts a fake server that is closed when the test ends.
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()

	fb := &FakeBackend{
		User: model.User{
			ID:        "user-1",
			FirstName: "Ada",
			LastName:  "Lovelace",
			Email:     FakeEmail,
		},
		access:     make(map[string]bool),
		expired:    make(map[string]bool),
		refresh:    make(map[string]bool),
		calls:      make(map[string]int),
		delays:     make(map[string]time.Duration),
		failures:   make(map[string]fakeFailure),
		hooks:      make(map[string]func()),
		invites:    make(map[string]string),
		projects:   make(map[string][]model.Project),
		activities: make(map[string][]model.Activity),
		tasks:      make(map[string][]*model.Task),
		members:    make(map[string][]model.OrganizationMember),
		invited:    make(map[string][]model.InviteMemberInput),
		comments:   make(map[string][]model.Comment),
		resets:     make(map[string]string),
		sockets:    make(map[*websocket.Conn]context.CancelFunc),
	}
	fb.Server = httptest.NewServer(fb.routes())

	t.Cleanup(func() {
		fb.CloseSockets(websocket.StatusGoingAway, "test over")
		fb.Server.Close()
	})
	return fb
}

// URL is the base URL of the fake server.
func (fb *FakeBackend) URL() string {
	return fb.Server.URL
}

// IssueTokens mints and registers a fresh access/refresh pair.
func (fb *FakeBackend) IssueTokens() (access, refresh string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.issueLocked()
}

func (fb *FakeBackend) issueLocked() (string, string) {
	access := fb.mint("access", 15*time.Minute)
	refresh := fb.mint("refresh", 7*24*time.Hour)
	fb.access[access] = true
	fb.refresh[refresh] = true
	return access, refresh
}

func (fb *FakeBackend) mint(kind string, ttl time.Duration) string {
	claims := jwt.MapClaims{
		"sub":  fb.User.ID,
		"type": kind,
		"jti":  uuid.NewString(),
		"exp":  time.Now().Add(ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(fakeSigningKey)
	if err != nil {
		panic(fmt.Sprintf("signing test token: %v", err))
	}
	return signed
}

// Credential returns a freshly issued credential for the fake user.
func (fb *FakeBackend) Credential() model.Credential {
	access, refresh := fb.IssueTokens()
	return model.Credential{AccessToken: access, RefreshToken: refresh, User: fb.User}
}

// Expire makes the server report token as expired.
func (fb *FakeBackend) Expire(token string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	delete(fb.access, token)
	fb.expired[token] = true
}

// RejectAll makes every protected route answer 401 "Token has expired."
// regardless of the token.
func (fb *FakeBackend) RejectAll(on bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.rejectAll = on
}

// FailRefresh makes /auth/refresh answer 401.
func (fb *FakeBackend) FailRefresh(on bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.failRefresh = on
}

// HoldRefresh blocks /auth/refresh until the returned release func runs.
func (fb *FakeBackend) HoldRefresh() (release func()) {
	gate := make(chan struct{})
	fb.mu.Lock()
	fb.refreshGate = gate
	fb.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// RefreshCalls is the number of /auth/refresh requests received.
func (fb *FakeBackend) RefreshCalls() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.refreshCalls
}

// Calls is the number of requests received for method and path.
func (fb *FakeBackend) Calls(method, path string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.calls[method+" "+path]
}

// Delay holds every request to method and path for d before answering.
func (fb *FakeBackend) Delay(method, path string, d time.Duration) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.delays[method+" "+path] = d
}

// Fail makes requests to method and path answer status with message.
func (fb *FakeBackend) Fail(method, path string, status int, message string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.failures[method+" "+path] = fakeFailure{status: status, message: message}
}

// Before runs fn once, ahead of the next request to method and path.
func (fb *FakeBackend) Before(method, path string, fn func()) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.hooks[method+" "+path] = fn
}

// AddOrganization registers an organization the user belongs to.
func (fb *FakeBackend) AddOrganization(org model.Organization) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.orgs = append(fb.orgs, org)
}

// AddInvite registers a pending invitation to orgID.
func (fb *FakeBackend) AddInvite(orgID, orgName string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.invites[orgID] = orgName
}

// AddProject registers a project under orgID.
func (fb *FakeBackend) AddProject(orgID string, p model.Project) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.projects[orgID] = append(fb.projects[orgID], p)
}

// AddActivity appends an entry to orgID's activity feed.
func (fb *FakeBackend) AddActivity(orgID string, a model.Activity) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.activities[orgID] = append(fb.activities[orgID], a)
}

// SeedTask stores task in projectID at version 1 unless a version is set.
func (fb *FakeBackend) SeedTask(projectID string, task model.Task) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if task.Version == 0 {
		task.Version = 1
	}
	if task.Status == "" {
		task.Status = model.StatusTodo
	}
	task.ProjectID = projectID
	fb.tasks[projectID] = append(fb.tasks[projectID], &task)
}

// Task returns the server's copy of a task.
func (fb *FakeBackend) Task(projectID, taskID string) (model.Task, bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if t := fb.findTask(projectID, taskID); t != nil {
		return *t, true
	}
	return model.Task{}, false
}

// WriteTask applies mutate as another user would: the version advances
// by one.
func (fb *FakeBackend) WriteTask(projectID, taskID string, mutate func(*model.Task)) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	t := fb.findTask(projectID, taskID)
	if t == nil {
		panic("unknown task " + taskID)
	}
	mutate(t)
	t.Version++
}

// AddNotification stores n as the newest notification.
func (fb *FakeBackend) AddNotification(n model.Notification) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.notifications = append([]model.Notification{n}, fb.notifications...)
}

// Notification returns the server's copy of a notification.
func (fb *FakeBackend) Notification(id string) (model.Notification, bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	for _, n := range fb.notifications {
		if n.ID == id {
			return n, true
		}
	}
	return model.Notification{}, false
}

// WSConnects is the number of accepted push-channel connections.
func (fb *FakeBackend) WSConnects() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.wsConnects
}

// Push sends a notification frame to every open push socket and stores
// the notification.
func (fb *FakeBackend) Push(n model.Notification) {
	fb.AddNotification(n)
	frame, _ := json.Marshal(map[string]any{"type": "notification", "data": n})
	fb.broadcast(frame)
}

// SendFrame writes a raw text frame to every open push socket.
func (fb *FakeBackend) SendFrame(frame []byte) {
	fb.broadcast(frame)
}

func (fb *FakeBackend) broadcast(frame []byte) {
	fb.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(fb.sockets))
	for c := range fb.sockets {
		conns = append(conns, c)
	}
	fb.mu.Unlock()

	for _, c := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_ = c.Write(ctx, websocket.MessageText, frame)
		cancel()
	}
}

// CloseSockets closes every open push socket with code.
func (fb *FakeBackend) CloseSockets(code websocket.StatusCode, reason string) {
	fb.mu.Lock()
	conns := fb.sockets
	fb.sockets = make(map[*websocket.Conn]context.CancelFunc)
	fb.mu.Unlock()

	for c, cancel := range conns {
		_ = c.Close(code, reason)
		cancel()
	}
}

func (fb *FakeBackend) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/login/initiate", fb.handleLoginInitiate)
	mux.HandleFunc("POST /auth/otp/verify", fb.handleVerify)
	mux.HandleFunc("POST /auth/refresh", fb.handleRefresh)
	mux.HandleFunc("POST /auth/logout", fb.handleLogout)

	mux.HandleFunc("GET /users/me", fb.protected(func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, fb.user())
	}))
	mux.HandleFunc("GET /organizations", fb.protected(fb.handleListOrgs))
	mux.HandleFunc("POST /organizations/{org}/invitations/{decision}", fb.protected(fb.handleInvitation))

	mux.HandleFunc("GET /organizations/{org}/projects", fb.protected(fb.handleListProjects))
	mux.HandleFunc("GET /organizations/{org}/projects/archived", fb.protected(fb.handleListArchivedProjects))
	mux.HandleFunc("GET /organizations/{org}/activities", fb.protected(fb.handleListActivities))
	mux.HandleFunc("GET /search", fb.protected(fb.handleSearch))

	tasks := "/organizations/{org}/projects/{project}/tasks"
	mux.HandleFunc("GET "+tasks, fb.protected(fb.handleListTasks))
	mux.HandleFunc("POST "+tasks, fb.protected(fb.handleCreateTask))
	mux.HandleFunc("GET "+tasks+"/{task}", fb.protected(fb.handleGetTask))
	mux.HandleFunc("PUT "+tasks+"/{task}", fb.protected(fb.handleWriteTask))
	mux.HandleFunc("PUT "+tasks+"/{task}/status", fb.protected(fb.handleWriteTask))
	mux.HandleFunc("PUT "+tasks+"/{task}/assign", fb.protected(fb.handleWriteTask))
	mux.HandleFunc("DELETE "+tasks+"/{task}", fb.protected(fb.handleDeleteTask))

	mux.HandleFunc("GET /notifications", fb.protected(fb.handleListNotifications))
	mux.HandleFunc("PATCH /notifications/read-all", fb.protected(fb.handleReadAll))
	mux.HandleFunc("PATCH /notifications/{id}/read", fb.protected(fb.handleRead))

	mux.HandleFunc("GET /ws/notifications", fb.handleSocket)

	fb.manageRoutes(mux)

	return fb.instrument(mux)
}

// instrument counts calls and applies configured delays and failures.
func (fb *FakeBackend) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path

		fb.mu.Lock()
		fb.calls[key]++
		delay := fb.delays[key]
		failure, failing := fb.failures[key]
		hook := fb.hooks[key]
		delete(fb.hooks, key)
		fb.mu.Unlock()

		if hook != nil {
			hook()
		}

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if failing {
			writeDetail(w, failure.status, failure.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (fb *FakeBackend) protected(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

		fb.mu.Lock()
		rejectAll := fb.rejectAll
		valid := fb.access[token]
		fb.mu.Unlock()

		switch {
		case token == "":
			writeDetail(w, http.StatusUnauthorized, "Authentication required")
		case rejectAll || !valid:
			writeDetail(w, http.StatusUnauthorized, "Token has expired.")
		default:
			next(w, r)
		}
	}
}

func (fb *FakeBackend) handleLoginInitiate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	if body.Email != FakeEmail || body.Password != FakePassword {
		writeDetail(w, http.StatusBadRequest, "Invalid email or password.")
		return
	}
	writeData(w, http.StatusOK, fb.user())
}

func (fb *FakeBackend) handleVerify(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"user_id"`
		OTP    string `json:"otp"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	if body.UserID != fb.User.ID || body.OTP != FakeOTP {
		writeDetail(w, http.StatusBadRequest, "Invalid OTP.")
		return
	}

	access, refresh := fb.IssueTokens()
	writeData(w, http.StatusOK, map[string]string{
		"access_token":  access,
		"refresh_token": refresh,
	})
}

func (fb *FakeBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	fb.mu.Lock()
	fb.refreshCalls++
	gate := fb.refreshGate
	fb.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()

	if fb.failRefresh || !fb.refresh[body.RefreshToken] {
		writeDetail(w, http.StatusUnauthorized, "Invalid refresh token.")
		return
	}

	// The old access token stops working once its pair is rotated.
	old := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	delete(fb.access, old)
	fb.expired[old] = true
	delete(fb.refresh, body.RefreshToken)

	access, refresh := fb.issueLocked()
	writeData(w, http.StatusOK, map[string]string{
		"access_token":  access,
		"refresh_token": refresh,
	})
}

func (fb *FakeBackend) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	fb.mu.Lock()
	delete(fb.access, token)
	fb.mu.Unlock()

	writeData(w, http.StatusOK, nil)
}

func (fb *FakeBackend) handleListProjects(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	out := []model.Project{}
	for _, p := range fb.projects[r.PathValue("org")] {
		if !p.Archived {
			out = append(out, p)
		}
	}
	writeData(w, http.StatusOK, out)
}

func (fb *FakeBackend) handleListArchivedProjects(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	out := []model.Project{}
	for _, p := range fb.projects[r.PathValue("org")] {
		if p.Archived {
			out = append(out, p)
		}
	}
	writeData(w, http.StatusOK, out)
}

func (fb *FakeBackend) handleListActivities(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	items := append([]model.Activity{}, fb.activities[r.PathValue("org")]...)
	fb.mu.Unlock()

	writeData(w, http.StatusOK, model.ActivityPage{
		Activities: items,
		Pagination: model.Pagination{Page: 1, PageSize: len(items), Total: len(items), TotalPages: 1},
	})
}

func (fb *FakeBackend) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(r.URL.Query().Get("q"))

	fb.mu.Lock()
	defer fb.mu.Unlock()

	var result model.SearchResult
	for projectID, tasks := range fb.tasks {
		for _, t := range tasks {
			if !strings.Contains(strings.ToLower(t.Title), q) {
				continue
			}
			hit := struct {
				ID          string           `json:"id"`
				Title       string           `json:"title"`
				Status      model.TaskStatus `json:"status"`
				ProjectID   string           `json:"project_id"`
				ProjectName string           `json:"project_name,omitempty"`
				OrgID       string           `json:"org_id,omitempty"`
				OrgName     string           `json:"org_name,omitempty"`
			}{ID: t.ID, Title: t.Title, Status: t.Status, ProjectID: projectID}
			result.Tasks = append(result.Tasks, hit)
		}
	}
	for _, o := range fb.orgs {
		if strings.Contains(strings.ToLower(o.Name), q) {
			result.Organizations = append(result.Organizations, struct {
				ID          string `json:"id"`
				Name        string `json:"name"`
				Description string `json:"description,omitempty"`
			}{ID: o.ID, Name: o.Name})
		}
	}
	writeData(w, http.StatusOK, result)
}

func (fb *FakeBackend) handleListOrgs(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	orgs := append([]model.Organization{}, fb.orgs...)
	fb.mu.Unlock()
	writeData(w, http.StatusOK, orgs)
}

func (fb *FakeBackend) handleInvitation(w http.ResponseWriter, r *http.Request) {
	orgID := r.PathValue("org")

	fb.mu.Lock()
	defer fb.mu.Unlock()

	name, ok := fb.invites[orgID]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Invitation not found")
		return
	}
	delete(fb.invites, orgID)

	if r.PathValue("decision") == "accept" {
		fb.orgs = append(fb.orgs, model.Organization{ID: orgID, Name: name, Role: model.RoleMember})
	}
	writeData(w, http.StatusOK, nil)
}

func (fb *FakeBackend) handleListTasks(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	items := []model.Task{}
	for _, t := range fb.tasks[r.PathValue("project")] {
		items = append(items, *t)
	}

	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize <= 0 {
		pageSize = 20
	}
	writeData(w, http.StatusOK, model.TaskPage{
		Items:      items,
		Total:      len(items),
		Page:       1,
		PageSize:   pageSize,
		TotalPages: 1,
	})
}

func (fb *FakeBackend) handleGetTask(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	t := fb.findTask(r.PathValue("project"), r.PathValue("task"))
	if t == nil {
		writeDetail(w, http.StatusNotFound, "Task not found")
		return
	}
	writeData(w, http.StatusOK, t)
}

func (fb *FakeBackend) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var in model.CreateTaskInput
	_ = json.NewDecoder(r.Body).Decode(&in)

	if in.Title == "" {
		writeDetail(w, http.StatusBadRequest, "Title is required")
		return
	}
	if in.Status == "" {
		in.Status = model.StatusTodo
	}

	projectID := r.PathValue("project")
	task := &model.Task{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		AssigneeIDs: in.AssigneeIDs,
		ProjectID:   projectID,
		OrgID:       r.PathValue("org"),
		Version:     1,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}

	fb.mu.Lock()
	fb.tasks[projectID] = append(fb.tasks[projectID], task)
	fb.mu.Unlock()

	writeData(w, http.StatusCreated, task)
}

// handleWriteTask serves update, status and assign. All three require the
// caller's version to match.
func (fb *FakeBackend) handleWriteTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title       *string           `json:"title"`
		Description *string           `json:"description"`
		Status      *model.TaskStatus `json:"status"`
		AssigneeIDs []string          `json:"assignee_ids"`
		Version     int               `json:"version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid body")
		return
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()

	t := fb.findTask(r.PathValue("project"), r.PathValue("task"))
	if t == nil {
		writeDetail(w, http.StatusNotFound, "Task not found")
		return
	}
	if body.Version != t.Version {
		writeDetail(w, http.StatusConflict,
			"Task version mismatch. The task was modified by another user. Please refresh and try again.")
		return
	}
	if body.Status != nil && !body.Status.Valid() {
		writeDetail(w, http.StatusBadRequest, "Invalid status")
		return
	}

	if body.Title != nil {
		t.Title = *body.Title
	}
	if body.Description != nil {
		t.Description = *body.Description
	}
	if body.Status != nil {
		t.Status = *body.Status
	}
	if body.AssigneeIDs != nil {
		t.AssigneeIDs = body.AssigneeIDs
	}
	t.Version++
	t.UpdatedAt = time.Now().UTC()

	writeData(w, http.StatusOK, t)
}

func (fb *FakeBackend) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("project")
	taskID := r.PathValue("task")

	fb.mu.Lock()
	defer fb.mu.Unlock()

	tasks := fb.tasks[projectID]
	for i, t := range tasks {
		if t.ID == taskID {
			fb.tasks[projectID] = append(tasks[:i], tasks[i+1:]...)
			writeData(w, http.StatusOK, nil)
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "Task not found")
}

func (fb *FakeBackend) findTask(projectID, taskID string) *model.Task {
	for _, t := range fb.tasks[projectID] {
		if t.ID == taskID {
			return t
		}
	}
	return nil
}

func (fb *FakeBackend) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page <= 0 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(q.Get("page_size"))
	if pageSize <= 0 {
		pageSize = 20
	}
	unreadOnly := q.Get("unread_only") == "true"

	fb.mu.Lock()
	var all []model.Notification
	for _, n := range fb.notifications {
		if unreadOnly && n.Read {
			continue
		}
		all = append(all, n)
	}
	fb.mu.Unlock()

	start := (page - 1) * pageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}

	writeData(w, http.StatusOK, model.NotificationPage{
		Notifications: append([]model.Notification{}, all[start:end]...),
		Pagination: model.Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      len(all),
			TotalPages: (len(all) + pageSize - 1) / pageSize,
		},
	})
}

func (fb *FakeBackend) handleRead(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	fb.mu.Lock()
	defer fb.mu.Unlock()

	for i := range fb.notifications {
		if fb.notifications[i].ID == id {
			fb.notifications[i].Read = true
			writeData(w, http.StatusOK, nil)
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "Notification not found")
}

func (fb *FakeBackend) handleReadAll(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	for i := range fb.notifications {
		fb.notifications[i].Read = true
	}
	fb.mu.Unlock()

	writeData(w, http.StatusOK, nil)
}

// handleSocket accepts the push channel. An unknown token gets the socket
// closed with 1008 right after the handshake.
func (fb *FakeBackend) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}

	token := r.URL.Query().Get("token")
	fb.mu.Lock()
	valid := fb.access[token] && !fb.rejectAll
	fb.mu.Unlock()

	if !valid {
		_ = conn.Close(websocket.StatusPolicyViolation, "Unauthorized")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	fb.mu.Lock()
	fb.sockets[conn] = cancel
	fb.wsConnects++
	fb.mu.Unlock()

	hello, _ := json.Marshal(map[string]string{
		"type":    "connected",
		"message": "Connected to notifications",
	})
	_ = conn.Write(ctx, websocket.MessageText, hello)

	// Drain client frames until the socket closes.
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			break
		}
	}

	fb.mu.Lock()
	delete(fb.sockets, conn)
	fb.mu.Unlock()
	cancel()
}

func writeData(w http.ResponseWriter, status int, data any) {
	raw, _ := json.Marshal(data)
	writeJSON(w, status, model.Envelope{
		Success: true,
		Message: "OK",
		Data:    raw,
	})
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
