package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"carnotify/internal/dispatch"
)

type pushTokenRow struct {
	ID        int64     `db:"id"`
	UserID    string    `db:"user_id"`
	Token     string    `db:"token"`
	Platform  string    `db:"platform"`
	Timezone  string    `db:"timezone"`
	CreatedAt time.Time `db:"created_at"`
}

func (s *Store) TokensForUser(ctx context.Context, userID string) ([]dispatch.PushToken, error) {
	var rows []pushTokenRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, token, platform, timezone, created_at
		FROM user_push_tokens
		WHERE user_id = $1
		ORDER BY created_at
	`, userID)
	if err != nil {
		slog.Error("failed to fetch push tokens", "user_id", userID, "error", err)
		return nil, err
	}

	tokens := make([]dispatch.PushToken, 0, len(rows))
	for _, r := range rows {
		tokens = append(tokens, dispatch.PushToken(r))
	}
	return tokens, nil
}

// DeleteToken removes one destination. Deleting a token that is
// already gone is not an error; cleanup is idempotent.
func (s *Store) DeleteToken(ctx context.Context, userID, token string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM user_push_tokens
		WHERE user_id = $1 AND token = $2
	`, userID, token)
	if err != nil {
		return fmt.Errorf("failed to delete push token: %w", err)
	}
	return nil
}

// UpsertToken registers a device destination, refreshing platform and
// timezone when the same (user, token) pair registers again.
func (s *Store) UpsertToken(ctx context.Context, t *dispatch.PushToken) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_push_tokens (user_id, token, platform, timezone)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, token)
		DO UPDATE SET platform = EXCLUDED.platform, timezone = EXCLUDED.timezone
	`, t.UserID, t.Token, t.Platform, t.Timezone)
	if err != nil {
		return fmt.Errorf("failed to store push token: %w", err)
	}
	return nil
}

// AllTokens returns every registered destination; the reminder
// scheduler walks this to find users due for their daily nudge.
func (s *Store) AllTokens(ctx context.Context) ([]dispatch.PushToken, error) {
	var rows []pushTokenRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, token, platform, timezone, created_at
		FROM user_push_tokens
		ORDER BY user_id, created_at
	`)
	if err != nil {
		slog.Error("failed to fetch push tokens", "error", err)
		return nil, err
	}

	tokens := make([]dispatch.PushToken, 0, len(rows))
	for _, r := range rows {
		tokens = append(tokens, dispatch.PushToken(r))
	}
	return tokens, nil
}
