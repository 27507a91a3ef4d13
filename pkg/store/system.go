package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetSystemState reads a key from the system_state table. A missing key
// returns an empty value and no error.
func (s *Store) GetSystemState(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM system_state WHERE key = ?
	`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get system state %q: %w", key, err)
	}
	return value, nil
}

// SetSystemState upserts a key in the system_state table.
func (s *Store) SetSystemState(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO system_state (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set system state %q: %w", key, err)
	}
	return nil
}
