package db

import (
	"context"
	"encoding/json"
	"fmt"

	"carnotify/internal/dispatch"
)

// Record appends one row to the notification_errors audit table. Rows
// are never updated or deleted.
func (s *Store) Record(ctx context.Context, e *dispatch.ErrorEntry) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal error payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notification_errors (user_id, type, error, payload)
		VALUES ($1, $2, $3, $4)
	`, e.UserID, string(e.Type), e.Detail, payload)
	if err != nil {
		return fmt.Errorf("failed to insert notification error: %w", err)
	}
	return nil
}
