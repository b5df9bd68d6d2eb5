package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"carnotify/internal/dispatch"
)

var ErrNotFound = errors.New("not found")

// MarkEventProcessed flips the source event's processed flag. This is
// the single mutation the pipeline performs on pending_notifications
// and it happens only after the notification row exists.
func (s *Store) MarkEventProcessed(ctx context.Context, eventID int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE pending_notifications SET processed = TRUE
		WHERE id = $1
	`, eventID)
	if err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("failed to mark event processed: event %d: %w", eventID, ErrNotFound)
	}
	return nil
}

// InsertPendingEvent creates a new unprocessed event. The reminder
// scheduler uses this; dispatch itself never creates events.
func (s *Store) InsertPendingEvent(ctx context.Context, e *dispatch.PendingEvent) (int64, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event data: %w", err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO pending_notifications (user_id, type, data, processed)
		VALUES ($1, $2, $3, FALSE)
		RETURNING id
	`, e.UserID, string(e.Type), data).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert pending event: %w", err)
	}
	return id, nil
}

// HasUnprocessedEvent reports whether the user already has an
// undelivered event of this type, so the scheduler does not pile up
// reminders behind a stalled webhook.
func (s *Store) HasUnprocessedEvent(ctx context.Context, userID string, t dispatch.EventType) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM pending_notifications
			WHERE user_id = $1 AND type = $2 AND processed = FALSE
		)
	`, userID, string(t))
	if err != nil {
		slog.Error("failed to check pending events", "user_id", userID, "error", err)
		return false, err
	}
	return exists, nil
}
