package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/collabtask/internal/api"
	"github.com/nhle/collabtask/internal/model"
)

// persistTimeout bounds cache writes triggered by pushes, which carry no
// caller context.
const persistTimeout = 5 * time.Second

// ErrNotAnInvite is returned when accepting or rejecting a notification
// that is not an organization invitation.
var ErrNotAnInvite = errors.New("notification is not an organization invitation")

// NotificationAPI is the subset of the REST client the service uses.
type NotificationAPI interface {
	ListNotifications(ctx context.Context, q api.NotificationQuery) (*model.NotificationPage, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
	AcceptInvitation(ctx context.Context, orgID string) error
	RejectInvitation(ctx context.Context, orgID string) error
}

// Cache persists the reconciled list between runs.
type Cache interface {
	UpsertNotifications(ctx context.Context, items []model.Notification) error
	ListNotifications(ctx context.Context, limit int) ([]model.Notification, error)
	DeleteNotification(ctx context.Context, id string) error
}

// Service drives the reconciler from the REST API and mirrors local read
// state back to the server.
type Service struct {
	api      NotificationAPI
	rec      *Reconciler
	cache    Cache
	pageSize int
	logger   *zap.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithCache writes every change through to c and lets Warm read from it.
func WithCache(c Cache) ServiceOption {
	return func(s *Service) { s.cache = c }
}

// WithPageSize sets how many notifications Refresh fetches.
func WithPageSize(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithLogger sets the service's logger.
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// NewService creates a service feeding rec.
func NewService(client NotificationAPI, rec *Reconciler, opts ...ServiceOption) *Service {
	s := &Service{
		api:      client,
		rec:      rec,
		pageSize: 50,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reconciler returns the reconciler the service feeds.
func (s *Service) Reconciler() *Reconciler {
	return s.rec
}

// Warm seeds the reconciler from the cache so a view can render before
// the first fetch completes.
func (s *Service) Warm(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	items, err := s.cache.ListNotifications(ctx, s.pageSize)
	if err != nil {
		return fmt.Errorf("reading cached notifications: %w", err)
	}
	s.rec.Replace(items)
	return nil
}

// Refresh fetches the first page and replaces the reconciled list with it.
func (s *Service) Refresh(ctx context.Context) error {
	page, err := s.api.ListNotifications(ctx, api.NotificationQuery{Page: 1, PageSize: s.pageSize})
	if err != nil {
		return fmt.Errorf("fetching notifications: %w", err)
	}
	s.rec.Replace(page.Notifications)
	s.persist(ctx)
	return nil
}

// Push merges a pushed notification. It implements Sink for the Listener.
func (s *Service) Push(n model.Notification) bool {
	added := s.rec.Push(n)
	if added {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		s.persist(ctx)
	}
	return added
}

// MarkRead marks one notification read locally, then on the server. A
// server failure is returned but the local read state stays.
func (s *Service) MarkRead(ctx context.Context, id string) error {
	s.rec.MarkRead(id)
	s.persist(ctx)

	if err := s.api.MarkNotificationRead(ctx, id); err != nil {
		s.logger.Warn("mirroring read state", zap.String("notification_id", id), zap.Error(err))
		return fmt.Errorf("marking notification %s read: %w", id, err)
	}
	return nil
}

// MarkAllRead marks everything read locally, then on the server.
func (s *Service) MarkAllRead(ctx context.Context) error {
	s.rec.MarkAllRead()
	s.persist(ctx)

	if err := s.api.MarkAllNotificationsRead(ctx); err != nil {
		s.logger.Warn("mirroring read-all", zap.Error(err))
		return fmt.Errorf("marking all notifications read: %w", err)
	}
	return nil
}

// AcceptInvite accepts the invitation carried by an org_invite
// notification and dismisses it.
func (s *Service) AcceptInvite(ctx context.Context, notificationID string) error {
	return s.answerInvite(ctx, notificationID, s.api.AcceptInvitation)
}

// RejectInvite declines the invitation carried by an org_invite
// notification and dismisses it.
func (s *Service) RejectInvite(ctx context.Context, notificationID string) error {
	return s.answerInvite(ctx, notificationID, s.api.RejectInvitation)
}

func (s *Service) answerInvite(
	ctx context.Context,
	notificationID string,
	answer func(context.Context, string) error,
) error {
	n, ok := s.rec.Get(notificationID)
	if !ok {
		return fmt.Errorf("notification %s not found", notificationID)
	}
	invite, ok := n.Metadata.(model.OrgInviteMetadata)
	if !ok || invite.OrgID == "" {
		return fmt.Errorf("%s: %w", notificationID, ErrNotAnInvite)
	}

	if err := answer(ctx, invite.OrgID); err != nil {
		return err
	}

	if !n.Read {
		if err := s.api.MarkNotificationRead(ctx, notificationID); err != nil {
			s.logger.Warn("marking answered invite read", zap.Error(err))
		}
	}

	s.rec.Remove(notificationID)
	if s.cache != nil {
		if err := s.cache.DeleteNotification(ctx, notificationID); err != nil {
			s.logger.Warn("deleting cached notification", zap.Error(err))
		}
	}
	return nil
}

func (s *Service) persist(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.UpsertNotifications(ctx, s.rec.Snapshot().Items); err != nil {
		s.logger.Warn("caching notifications", zap.Error(err))
	}
}
