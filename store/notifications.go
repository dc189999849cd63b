package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fitstack/planworker/fault"
)

// maxPushTokens caps the tokens fetched per user.
const maxPushTokens = 5

// PushTokens returns the user's most recent push tokens, at most five.
func (s *Store) PushTokens(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT token FROM user_push_tokens
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		userID, maxPushTokens)
	if err != nil {
		return nil, fault.Wrap(fault.DBError, fmt.Errorf("push tokens: %w", err))
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fault.Wrap(fault.DBError, fmt.Errorf("scan token: %w", err))
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

// InsertNotification writes one in-app notification row.
func (s *Store) InsertNotification(ctx context.Context, userID, title, body, notifType, screen string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fault.Wrap(fault.DBError, fmt.Errorf("marshal data: %w", err))
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO user_notifications (user_id, title, body, type, screen, data, delivered, read)
		VALUES ($1, $2, $3, $4, $5, $6, false, false)`,
		userID, title, body, notifType, screen, raw)
	if err != nil {
		return fault.Wrap(fault.DBError, fmt.Errorf("insert notification: %w", err))
	}
	return nil
}
