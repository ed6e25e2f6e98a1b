package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// AppendWaiting adds an execution to the tail of the admission waiting list.
// Appending an execution that is already waiting is a no-op.
func (s *Store) AppendWaiting(ctx context.Context, executionID string) error {
	_, err := s.execWithRetry(ctx,
		`INSERT OR IGNORE INTO waiting_executions (execution_id, enqueued_at) VALUES (?, ?)`,
		executionID, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("append waiting %s: %w", executionID, err)
	}
	return nil
}

// PopWaiting removes and returns the oldest waiting execution.
func (s *Store) PopWaiting(ctx context.Context) (string, bool, error) {
	ctx = ensureContext(ctx)
	var id string
	err := RetryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			`DELETE FROM waiting_executions
             WHERE seq = (SELECT MIN(seq) FROM waiting_executions)
             RETURNING execution_id`).Scan(&id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("pop waiting: %w", err)
	}
	return id, true, nil
}

// ListWaiting returns waiting execution ids, oldest first.
func (s *Store) ListWaiting(ctx context.Context) ([]string, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT execution_id FROM waiting_executions ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list waiting: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan waiting: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RemoveWaiting drops an execution from the waiting list.
func (s *Store) RemoveWaiting(ctx context.Context, executionID string) error {
	if _, err := s.execWithRetry(ctx, `DELETE FROM waiting_executions WHERE execution_id = ?`, executionID); err != nil {
		return fmt.Errorf("remove waiting %s: %w", executionID, err)
	}
	return nil
}
