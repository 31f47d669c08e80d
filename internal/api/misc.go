package api

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/collabtask/internal/model"
)

func commentsPath(orgID, projectID string) string {
	return projectPath(orgID, projectID) + "/comments"
}

// ListComments returns a project's comments.
func (c *Client) ListComments(ctx context.Context, orgID, projectID string) ([]model.Comment, error) {
	var comments []model.Comment
	if err := c.Get(ctx, commentsPath(orgID, projectID), &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// AddComment posts a comment on a project.
func (c *Client) AddComment(ctx context.Context, orgID, projectID, content string) (*model.Comment, error) {
	var comment model.Comment
	body := map[string]string{"content": content}
	if err := c.Post(ctx, commentsPath(orgID, projectID), body, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// EditComment replaces a comment's content.
func (c *Client) EditComment(ctx context.Context, orgID, projectID, commentID, content string) (*model.Comment, error) {
	var comment model.Comment
	body := map[string]string{"content": content}
	if err := c.Put(ctx, commentsPath(orgID, projectID)+"/"+escape(commentID), body, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// DeleteComment deletes a comment.
func (c *Client) DeleteComment(ctx context.Context, orgID, projectID, commentID string) error {
	return c.Delete(ctx, commentsPath(orgID, projectID)+"/"+escape(commentID), nil)
}

// Search looks up tasks, projects and organizations matching q. types
// restricts the entity kinds; empty means all.
func (c *Client) Search(ctx context.Context, q string, types ...string) (*model.SearchResult, error) {
	v := url.Values{}
	v.Set("q", q)
	if len(types) > 0 {
		v.Set("types", strings.Join(types, ","))
	}

	var result model.SearchResult
	if err := c.Get(ctx, "/search", &result, WithQuery(v)); err != nil {
		return nil, err
	}
	return &result, nil
}

// ActivityQuery filters an organization's activity feed.
type ActivityQuery struct {
	Page       int
	PageSize   int
	EntityType string
	ActionType string
}

// ListActivities returns a page of an organization's activity feed.
func (c *Client) ListActivities(ctx context.Context, orgID string, q ActivityQuery) (*model.ActivityPage, error) {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(q.PageSize))
	}
	if q.EntityType != "" {
		v.Set("entity_type", q.EntityType)
	}
	if q.ActionType != "" {
		v.Set("action_type", q.ActionType)
	}

	var page model.ActivityPage
	if err := c.Get(ctx, orgPath(orgID)+"/activities", &page, WithQuery(v)); err != nil {
		return nil, err
	}
	return &page, nil
}

// CreateMeeting schedules a meeting. Participants receive a meeting
// notification.
func (c *Client) CreateMeeting(ctx context.Context, orgID string, in model.MeetingInput) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.Post(ctx, "/meetings/organizations/"+escape(orgID), in, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// ListMyMeetings returns the user's meetings, optionally bounded in time.
func (c *Client) ListMyMeetings(ctx context.Context, from, to time.Time) ([]model.Meeting, error) {
	v := url.Values{}
	if !from.IsZero() {
		v.Set("from_time", from.UTC().Format(time.RFC3339))
	}
	if !to.IsZero() {
		v.Set("to_time", to.UTC().Format(time.RFC3339))
	}

	var meetings []model.Meeting
	if err := c.Get(ctx, "/meetings/my", &meetings, WithQuery(v)); err != nil {
		return nil, err
	}
	return meetings, nil
}

// Me returns the signed-in user's profile.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := c.Get(ctx, "/users/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateMe edits the signed-in user's name.
func (c *Client) UpdateMe(ctx context.Context, firstName, lastName string) (*model.User, error) {
	body := map[string]string{"firstName": firstName, "lastName": lastName}

	var user model.User
	if err := c.Put(ctx, "/users/me", body, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
