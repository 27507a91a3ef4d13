package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// CreateWebhook registers an endpoint for link-event delivery.
func (s *Store) CreateWebhook(ctx context.Context, w WebhookConfig) error {
	types, err := json.Marshal(w.Types)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook types: %w", err)
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO webhooks (webhook_id, url, secret, event_types, created_at, active)
		VALUES (?, ?, ?, ?, ?, ?)
	`, w.WebhookID, w.URL, w.Secret, string(types), w.CreatedAt, boolToInt(w.Active))
	if err != nil {
		return fmt.Errorf("failed to create webhook: %w", err)
	}
	return nil
}

// ListWebhooks returns all registered webhooks. With activeOnly, disabled
// entries are skipped.
func (s *Store) ListWebhooks(ctx context.Context, activeOnly bool) ([]WebhookConfig, error) {
	query := `SELECT webhook_id, url, COALESCE(secret, ''), COALESCE(event_types, '[]'), created_at, active FROM webhooks`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	defer rows.Close()

	var out []WebhookConfig
	for rows.Next() {
		var (
			w      WebhookConfig
			types  string
			active int
		)
		if err := rows.Scan(&w.WebhookID, &w.URL, &w.Secret, &types, &w.CreatedAt, &active); err != nil {
			return nil, fmt.Errorf("failed to scan webhook: %w", err)
		}
		if err := json.Unmarshal([]byte(types), &w.Types); err != nil {
			return nil, fmt.Errorf("failed to unmarshal webhook types: %w", err)
		}
		w.Active = active == 1
		out = append(out, w)
	}
	return out, rows.Err()
}

// DeleteWebhook removes a webhook registration.
func (s *Store) DeleteWebhook(ctx context.Context, webhookID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM webhooks WHERE webhook_id = ?`, webhookID)
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("webhook %s: %w", webhookID, ErrNotFound)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
