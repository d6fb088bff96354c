package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SetSetting saves a setting to the database
func (db *DB) SetSetting(ctx context.Context, key, value string) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, upsertSetting, key, value); err != nil {
		return fmt.Errorf("failed to save setting: %w", err)
	}
	return nil
}

// GetSetting retrieves a setting from the database
func (db *DB) GetSetting(ctx context.Context, key string) (string, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return "", err
	}
	var value string
	err = conn.QueryRowContext(ctx, selectSetting, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil // Not found, return empty string
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting: %w", err)
	}
	return value, nil
}

// GetSettings returns every persisted setting
func (db *DB) GetSettings(ctx context.Context) (map[string]string, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := conn.QueryContext(ctx, selectAllSettings)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

// DeleteSetting removes a setting from the database
func (db *DB) DeleteSetting(ctx context.Context, key string) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, deleteSetting, key); err != nil {
		return fmt.Errorf("failed to delete setting: %w", err)
	}
	return nil
}
