package api

import (
	"context"
	"net/url"
	"strconv"

	"github.com/nhle/collabtask/internal/model"
)

// NotificationQuery filters a notification listing.
type NotificationQuery struct {
	Page       int
	PageSize   int
	UnreadOnly bool
}

// ListNotifications returns one page of the user's notifications, newest
// first.
func (c *Client) ListNotifications(ctx context.Context, q NotificationQuery) (*model.NotificationPage, error) {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(q.PageSize))
	}
	if q.UnreadOnly {
		v.Set("unread_only", "true")
	}

	var page model.NotificationPage
	if err := c.Get(ctx, "/notifications", &page, WithQuery(v)); err != nil {
		return nil, err
	}
	return &page, nil
}

// MarkNotificationRead marks one notification read on the server.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.Patch(ctx, "/notifications/"+escape(id)+"/read", nil, nil)
}

// MarkAllNotificationsRead marks every notification read on the server.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.Patch(ctx, "/notifications/read-all", nil, nil)
}
