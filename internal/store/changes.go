package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"mediaflow/internal/attrvalue"
)

// Change feed event names.
const (
	EventInsert = "INSERT"
	EventModify = "MODIFY"
	EventRemove = "REMOVE"
)

// ChangeRecord is one before/after pair from the execution change feed.
// Images are attribute-encoded; a nil image means the record did not exist
// on that side of the mutation.
type ChangeRecord struct {
	Seq         int64
	EventName   string
	ExecutionID string
	OldImage    map[string]attrvalue.Value
	NewImage    map[string]attrvalue.Value
	Created     time.Time
}

// Image encodes an execution the way the change feed stores it.
func Image(exec *Execution) (map[string]attrvalue.Value, error) {
	if exec == nil {
		return nil, nil
	}
	data, err := json.Marshal(exec)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	var plain map[string]any
	if err := decodeLoose(data, &plain); err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return attrvalue.MarshalMap(plain)
}

func encodeImage(exec *Execution) (any, error) {
	if exec == nil {
		return nil, nil
	}
	image, err := Image(exec)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(image)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return string(data), nil
}

func insertChange(ctx context.Context, tx *sql.Tx, event, id string, old, next *Execution) error {
	oldImage, err := encodeImage(old)
	if err != nil {
		return err
	}
	newImage, err := encodeImage(next)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO execution_changes (event_name, execution_id, old_image, new_image, created_at) VALUES (?, ?, ?, ?, ?)`,
		event, id, oldImage, newImage, formatTime(time.Now()),
	); err != nil {
		return fmt.Errorf("record change: %w", err)
	}
	return nil
}

// ChangesAfter returns up to limit change records with a sequence greater than after.
func (s *Store) ChangesAfter(ctx context.Context, after int64, limit int) ([]ChangeRecord, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, event_name, execution_id, old_image, new_image, created_at
         FROM execution_changes WHERE seq > ? ORDER BY seq LIMIT ?`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("list changes: %w", err)
	}
	defer rows.Close()

	var out []ChangeRecord
	for rows.Next() {
		var (
			rec     ChangeRecord
			oldRaw  sql.NullString
			newRaw  sql.NullString
			created string
		)
		if err := rows.Scan(&rec.Seq, &rec.EventName, &rec.ExecutionID, &oldRaw, &newRaw, &created); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		if oldRaw.Valid {
			if err := json.Unmarshal([]byte(oldRaw.String), &rec.OldImage); err != nil {
				return nil, fmt.Errorf("decode old image %d: %w", rec.Seq, err)
			}
		}
		if newRaw.Valid {
			if err := json.Unmarshal([]byte(newRaw.String), &rec.NewImage); err != nil {
				return nil, fmt.Errorf("decode new image %d: %w", rec.Seq, err)
			}
		}
		if ts, err := parseTimeString(created); err == nil {
			rec.Created = ts
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PruneChanges deletes change records up to and including seq.
func (s *Store) PruneChanges(ctx context.Context, through int64) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM execution_changes WHERE seq <= ?`, through)
	if err != nil {
		return 0, fmt.Errorf("prune changes: %w", err)
	}
	return res.RowsAffected()
}
