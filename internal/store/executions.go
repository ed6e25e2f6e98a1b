package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const executionColumns = "body_json, version, slot_held"

func scanExecution(scanner interface{ Scan(dest ...any) error }) (*Execution, error) {
	var (
		body    string
		version int64
		slot    int64
	)
	if err := scanner.Scan(&body, &version, &slot); err != nil {
		return nil, err
	}
	var exec Execution
	if err := json.Unmarshal([]byte(body), &exec); err != nil {
		return nil, fmt.Errorf("decode execution: %w", err)
	}
	exec.Version = version
	exec.SlotHeld = slot != 0
	return &exec, nil
}

func getExecutionTx(ctx context.Context, tx *sql.Tx, id string) (*Execution, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+executionColumns+` FROM executions WHERE id = ?`, id)
	exec, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("execution %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get execution: %w", err)
	}
	return exec, nil
}

// PutExecution inserts a new execution at version 1.
func (s *Store) PutExecution(ctx context.Context, exec *Execution) error {
	if exec == nil || strings.TrimSpace(exec.ID) == "" {
		return errors.New("put execution: id is required")
	}
	now := time.Now().UTC()
	next := *exec
	if next.Created.IsZero() {
		next.Created = now
	}
	next.Updated = now
	next.Version = 1
	if next.Status == "" {
		next.Status = StatusQueued
	}
	body, err := encodeBody(next)
	if err != nil {
		return err
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM executions WHERE id = ?`, next.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check execution: %w", err)
		}
		if exists > 0 {
			return fmt.Errorf("execution %s: %w", next.ID, ErrAlreadyExists)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO executions (id, workflow_name, asset_id, status, current_stage, body_json, version, slot_held, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			next.ID, next.Workflow.Name, next.AssetID, string(next.Status), next.CurrentStage, body,
			next.Version, boolToInt(next.SlotHeld), formatTime(next.Created), formatTime(next.Updated),
		); err != nil {
			return fmt.Errorf("insert execution: %w", err)
		}
		return insertChange(ctx, tx, EventInsert, next.ID, nil, &next)
	})
	if err != nil {
		return err
	}
	*exec = next
	return nil
}

// GetExecution fetches an execution by id. A missing record returns nil, nil.
func (s *Store) GetExecution(ctx context.Context, id string) (*Execution, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+executionColumns+` FROM executions WHERE id = ?`, id)
	exec, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get execution: %w", err)
	}
	return exec, nil
}

// UpdateExecution writes exec if the stored version still equals exec.Version.
// On success exec carries the new version. A stale version yields ErrConflict;
// a status change the lifecycle forbids yields ErrInvalidTransition.
func (s *Store) UpdateExecution(ctx context.Context, exec *Execution) error {
	if exec == nil {
		return errors.New("update execution: nil execution")
	}
	var committed Execution
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		old, err := getExecutionTx(ctx, tx, exec.ID)
		if err != nil {
			return err
		}
		if old.Version != exec.Version {
			return fmt.Errorf("execution %s at version %d, expected %d: %w", exec.ID, old.Version, exec.Version, ErrConflict)
		}
		if err := ValidateTransition(old.Status, exec.Status); err != nil {
			return fmt.Errorf("execution %s: %w", exec.ID, err)
		}
		next := *exec
		next.Version = old.Version + 1
		next.Updated = time.Now().UTC()
		next.Created = old.Created
		if err := writeExecution(ctx, tx, old.Version, &next); err != nil {
			return err
		}
		if err := insertChange(ctx, tx, EventModify, next.ID, old, &next); err != nil {
			return err
		}
		committed = next
		return nil
	})
	if err != nil {
		return err
	}
	*exec = committed
	return nil
}

// ReleaseSlot clears slot_held on an execution that holds an admission slot
// and decrements the named counter in the same transaction. It reports false
// when the slot was already released, so repeated terminal notifications
// release at most one slot.
func (s *Store) ReleaseSlot(ctx context.Context, id, counter string) (bool, error) {
	released := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		released = false
		old, err := getExecutionTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if !old.SlotHeld {
			return nil
		}
		next := *old
		next.SlotHeld = false
		next.Version = old.Version + 1
		next.Updated = time.Now().UTC()
		if err := writeExecution(ctx, tx, old.Version, &next); err != nil {
			return err
		}
		if err := insertChange(ctx, tx, EventModify, id, old, &next); err != nil {
			return err
		}
		if counter != "" {
			if _, err := tx.ExecContext(ctx,
				`UPDATE counters SET value = value - 1 WHERE name = ? AND value > 0`, counter); err != nil {
				return fmt.Errorf("decrement counter %s: %w", counter, err)
			}
		}
		released = true
		return nil
	})
	return released, err
}

func writeExecution(ctx context.Context, tx *sql.Tx, expectedVersion int64, next *Execution) error {
	body, err := encodeBody(next)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE executions
         SET status = ?, current_stage = ?, body_json = ?, version = ?, slot_held = ?, updated_at = ?
         WHERE id = ? AND version = ?`,
		string(next.Status), next.CurrentStage, body, next.Version, boolToInt(next.SlotHeld), formatTime(next.Updated),
		next.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update execution: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update execution rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("execution %s: %w", next.ID, ErrConflict)
	}
	return nil
}

// ListExecutions returns executions ordered by creation time, optionally
// filtered by status.
func (s *Store) ListExecutions(ctx context.Context, statuses ...Status) ([]*Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}
	query += ` ORDER BY created_at, id`
	return s.queryExecutions(ctx, query, args...)
}

// ListExecutionsByAsset returns every execution run against an asset.
func (s *Store) ListExecutionsByAsset(ctx context.Context, assetID string) ([]*Execution, error) {
	return s.queryExecutions(ctx,
		`SELECT `+executionColumns+` FROM executions WHERE asset_id = ? ORDER BY created_at, id`, assetID)
}

// CountExecutions returns the number of executions per status.
func (s *Store) CountExecutions(ctx context.Context) (map[Status]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM executions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count executions: %w", err)
	}
	defer rows.Close()
	counts := make(map[Status]int, len(allStatuses))
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[Status(status)] = n
	}
	return counts, rows.Err()
}

func (s *Store) queryExecutions(ctx context.Context, query string, args ...any) ([]*Execution, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()
	var out []*Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, exec)
	}
	return out, rows.Err()
}

// DeleteExecution removes a terminal execution.
func (s *Store) DeleteExecution(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		old, err := getExecutionTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if !old.Status.IsTerminal() {
			return fmt.Errorf("delete execution %s: status %s is not terminal", id, old.Status)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM executions WHERE id = ? AND version = ?`, id, old.Version); err != nil {
			return fmt.Errorf("delete execution: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM waiting_executions WHERE execution_id = ?`, id); err != nil {
			return fmt.Errorf("delete waiting entry: %w", err)
		}
		return insertChange(ctx, tx, EventRemove, id, old, nil)
	})
}
