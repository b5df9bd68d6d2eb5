package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"carnotify/internal/dispatch"
)

type notificationRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Type      string    `db:"type"`
	Title     string    `db:"title"`
	Message   string    `db:"message"`
	Data      []byte    `db:"data"`
	IsRead    bool      `db:"is_read"`
	CreatedAt time.Time `db:"created_at"`
}

func (r *notificationRow) toNotification() (*dispatch.Notification, error) {
	n := &dispatch.Notification{
		ID:        r.ID,
		UserID:    r.UserID,
		Type:      dispatch.EventType(r.Type),
		Title:     r.Title,
		Message:   r.Message,
		IsRead:    r.IsRead,
		CreatedAt: r.CreatedAt,
	}
	if len(r.Data) > 0 {
		if err := json.Unmarshal(r.Data, &n.Data); err != nil {
			return nil, fmt.Errorf("failed to parse notification data: %w", err)
		}
	}
	return n, nil
}

// HasRecentNotification reports whether a notification of the same
// type was already created for the user after the given cutoff. Used
// to suppress duplicate schedule-driven reminders.
func (s *Store) HasRecentNotification(ctx context.Context, userID string, t dispatch.EventType, since time.Time) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM notifications
			WHERE user_id = $1 AND type = $2 AND created_at > $3
		)
	`, userID, string(t), since)
	if err != nil {
		slog.Error("failed to check recent notifications", "user_id", userID, "error", err)
		return false, err
	}
	return exists, nil
}

func (s *Store) InsertNotification(ctx context.Context, n *dispatch.Notification) error {
	data, err := json.Marshal(n.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal notification data: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, data, is_read)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)
	`, n.ID, n.UserID, string(n.Type), n.Title, n.Message, data)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*dispatch.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := `
		SELECT id, user_id, type, title, message, data, is_read, created_at
		FROM notifications
		WHERE user_id = $1
	`
	if unreadOnly {
		query += " AND is_read = FALSE"
	}
	query += " ORDER BY created_at DESC LIMIT $2"

	var rows []notificationRow
	if err := s.db.SelectContext(ctx, &rows, query, userID, limit); err != nil {
		slog.Error("failed to fetch notifications", "user_id", userID, "error", err)
		return nil, err
	}

	result := make([]*dispatch.Notification, 0, len(rows))
	for i := range rows {
		n, err := rows[i].toNotification()
		if err != nil {
			slog.Warn("failed to parse notification", "id", rows[i].ID, "error", err)
			continue
		}
		result = append(result, n)
	}
	return result, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = TRUE
		WHERE id = $1 AND user_id = $2
	`, notificationID, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = TRUE
		WHERE user_id = $1 AND is_read = FALSE
	`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications as read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications as read: %w", err)
	}
	return affected, nil
}

// LastNotificationAt returns the creation time of the user's newest
// notification, or the zero time when the user has none. The reminder
// scheduler uses this to spot lapsed users.
func (s *Store) LastNotificationAt(ctx context.Context, userID string) (time.Time, error) {
	var last sql.NullTime
	err := s.db.GetContext(ctx, &last, `
		SELECT MAX(created_at) FROM notifications WHERE user_id = $1
	`, userID)
	if err != nil {
		slog.Error("failed to fetch last notification time", "user_id", userID, "error", err)
		return time.Time{}, err
	}
	if !last.Valid {
		return time.Time{}, nil
	}
	return last.Time, nil
}

func (s *Store) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM notifications
		WHERE user_id = $1 AND is_read = FALSE
	`, userID)
	if err != nil {
		slog.Error("failed to count unread notifications", "user_id", userID, "error", err)
		return 0, err
	}
	return count, nil
}
