package db

import (
	"context"
	"database/sql"
	"fmt"

	"carnotify/internal/dispatch"
)

// RecordMetric appends one delivery-telemetry row. Callers treat
// failures as best-effort.
func (s *Store) RecordMetric(ctx context.Context, m *dispatch.Metric) error {
	scheduledFor := sql.NullString{String: m.ScheduledFor, Valid: m.ScheduledFor != ""}
	timezone := sql.NullString{String: m.Timezone, Valid: m.Timezone != ""}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_metrics (notification_id, user_id, type, status, platform, scheduled_for, timezone)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, m.NotificationID, m.UserID, string(m.Type), m.Status, m.Platform, scheduledFor, timezone)
	if err != nil {
		return fmt.Errorf("failed to insert notification metric: %w", err)
	}
	return nil
}
