package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nhle/collabtask/internal/model"
)

type notificationRow struct {
	ID        string       `db:"id"`
	Type      string       `db:"type"`
	Title     string       `db:"title"`
	Message   string       `db:"message"`
	Metadata  string       `db:"metadata"`
	Read      int          `db:"read"`
	CreatedAt sql.NullTime `db:"created_at"`
}

func (r notificationRow) toModel() (model.Notification, error) {
	t := model.NotificationType(r.Type)
	meta, err := model.DecodeMetadata(t, json.RawMessage(r.Metadata))
	if err != nil {
		return model.Notification{}, fmt.Errorf("decoding metadata of notification %s: %w", r.ID, err)
	}

	n := model.Notification{
		ID:       r.ID,
		Type:     t,
		Title:    r.Title,
		Message:  r.Message,
		Metadata: meta,
		Read:     r.Read != 0,
	}
	if r.CreatedAt.Valid {
		created := r.CreatedAt.Time
		n.CreatedAt = &created
	}
	return n, nil
}

// UpsertNotifications stores items, given newest first. New ids are
// ordered ahead of everything already stored; known ids keep their
// position. A stored read flag is never cleared.
func (s *SQLiteStore) UpsertNotifications(ctx context.Context, items []model.Notification) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO notifications (
			id, type, title, message, metadata, read, created_at, seq, updated_at
		) VALUES (
			?, ?, ?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM notifications),
			?
		)
		ON CONFLICT(id) DO UPDATE SET
			type       = excluded.type,
			title      = excluded.title,
			message    = excluded.message,
			metadata   = excluded.metadata,
			read       = MAX(notifications.read, excluded.read),
			created_at = COALESCE(excluded.created_at, notifications.created_at),
			updated_at = excluded.updated_at`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing upsert statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	// Oldest first so the newest item ends up with the highest seq.
	for i := len(items) - 1; i >= 0; i-- {
		n := items[i]
		meta, err := model.EncodeMetadata(n.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata of notification %s: %w", n.ID, err)
		}

		var created any
		if n.CreatedAt != nil {
			created = n.CreatedAt.UTC()
		}

		_, err = stmt.ExecContext(ctx,
			n.ID, string(n.Type), n.Title, n.Message, string(meta),
			boolToInt(n.Read), created, now,
		)
		if err != nil {
			return fmt.Errorf("upserting notification %s: %w", n.ID, err)
		}
	}

	return tx.Commit()
}

// ListNotifications returns up to limit cached notifications, newest
// first. A non-positive limit returns all of them.
func (s *SQLiteStore) ListNotifications(ctx context.Context, limit int) ([]model.Notification, error) {
	query := `
		SELECT id, type, title, message, metadata, read, created_at
		FROM notifications ORDER BY seq DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	var rows []notificationRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}

	out := make([]model.Notification, 0, len(rows))
	for _, r := range rows {
		n, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// UnreadCount returns how many cached notifications are unread.
func (s *SQLiteStore) UnreadCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM notifications WHERE read = 0"); err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return n, nil
}

// MarkNotificationRead marks a single notification as read.
func (s *SQLiteStore) MarkNotificationRead(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET read = 1, updated_at = ? WHERE id = ?",
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("marking notification %s as read: %w", id, err)
	}
	return nil
}

// MarkAllNotificationsRead marks every cached notification as read.
func (s *SQLiteStore) MarkAllNotificationsRead(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET read = 1, updated_at = ? WHERE read = 0",
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("marking all notifications as read: %w", err)
	}
	return nil
}

// DeleteNotification removes a notification by ID.
func (s *SQLiteStore) DeleteNotification(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM notifications WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting notification %s: %w", id, err)
	}
	return nil
}
