package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetSetting returns a stored system setting.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	ctx = ensureContext(ctx)
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM system_settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, true, nil
}

// PutSetting stores a system setting, replacing any previous value.
func (s *Store) PutSetting(ctx context.Context, key, value string) error {
	_, err := s.execWithRetry(ctx,
		`INSERT INTO system_settings (key, value, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("put setting %s: %w", key, err)
	}
	return nil
}

// Counter returns the value of a named counter; a missing counter reads as zero.
func (s *Store) Counter(ctx context.Context, name string) (int64, error) {
	ctx = ensureContext(ctx)
	var value int64
	err := s.db.QueryRowContext(ctx, `SELECT value FROM counters WHERE name = ?`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read counter %s: %w", name, err)
	}
	return value, nil
}

// CompareAndSwapCounter sets a counter to next only if it currently equals
// expected. It reports whether the swap happened.
func (s *Store) CompareAndSwapCounter(ctx context.Context, name string, expected, next int64) (bool, error) {
	var (
		res sql.Result
		err error
	)
	if expected == 0 {
		res, err = s.execWithRetry(ctx,
			`INSERT INTO counters (name, value) VALUES (?, ?)
             ON CONFLICT(name) DO UPDATE SET value = excluded.value WHERE counters.value = ?`,
			name, next, expected)
	} else {
		res, err = s.execWithRetry(ctx,
			`UPDATE counters SET value = ? WHERE name = ? AND value = ?`,
			next, name, expected)
	}
	if err != nil {
		return false, fmt.Errorf("swap counter %s: %w", name, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("swap counter %s rows affected: %w", name, err)
	}
	return rows == 1, nil
}
