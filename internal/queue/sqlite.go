package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"mediaflow/internal/store"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS queue_items (
    id TEXT PRIMARY KEY,
    payload TEXT NOT NULL,
    visible_at INTEGER NOT NULL,
    receipt TEXT,
    attempts INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_queue_items_visible ON queue_items(visible_at);
`

// SQLiteQueue stores queue items in a SQLite table. Items are claimed by a
// single UPDATE ... RETURNING that pushes visible_at past the visibility timeout.
type SQLiteQueue struct {
	db         *sql.DB
	visibility time.Duration
}

// OpenSQLite opens or creates the queue database at path.
func OpenSQLite(path string, visibility time.Duration) (*SQLiteQueue, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("queue: create directory: %w", err)
	}
	db, err := store.OpenDB(path)
	if err != nil {
		return nil, fmt.Errorf("queue: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("queue: create schema: %w", err)
	}
	if visibility <= 0 {
		visibility = 5 * time.Minute
	}
	return &SQLiteQueue{db: db, visibility: visibility}, nil
}

// Enqueue adds an item that becomes visible after delay.
func (q *SQLiteQueue) Enqueue(ctx context.Context, item Item, delay time.Duration) error {
	if err := validateItem(item); err != nil {
		return err
	}
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("queue: encode item: %w", err)
	}
	now := time.Now()
	visibleAt := now.Add(max(delay, 0)).UnixMilli()
	return store.RetryOnBusy(ctx, func() error {
		_, err := q.db.ExecContext(ctx,
			`INSERT INTO queue_items (id, payload, visible_at, created_at) VALUES (?, ?, ?, ?)`,
			uuid.NewString(), string(payload), visibleAt, now.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("queue: enqueue %s: %w", item, err)
		}
		return nil
	})
}

// Receive claims up to max visible items.
func (q *SQLiteQueue) Receive(ctx context.Context, max int) ([]Delivery, error) {
	if max <= 0 {
		max = 1
	}
	now := time.Now()
	receipt := uuid.NewString()
	var deliveries []Delivery
	err := store.RetryOnBusy(ctx, func() error {
		deliveries = deliveries[:0]
		rows, err := q.db.QueryContext(ctx,
			`UPDATE queue_items
             SET visible_at = ?, receipt = ?, attempts = attempts + 1
             WHERE id IN (SELECT id FROM queue_items WHERE visible_at <= ? ORDER BY visible_at LIMIT ?)
             RETURNING id, payload, attempts`,
			now.Add(q.visibility).UnixMilli(), receipt, now.UnixMilli(), max)
		if err != nil {
			return fmt.Errorf("queue: receive: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				d       Delivery
				payload string
			)
			if err := rows.Scan(&d.ID, &payload, &d.Attempts); err != nil {
				return fmt.Errorf("queue: scan delivery: %w", err)
			}
			if err := json.Unmarshal([]byte(payload), &d.Item); err != nil {
				return fmt.Errorf("queue: decode item %s: %w", d.ID, err)
			}
			d.Receipt = receipt
			deliveries = append(deliveries, d)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return deliveries, nil
}

// Ack deletes a delivered item if the receipt still owns it.
func (q *SQLiteQueue) Ack(ctx context.Context, d Delivery) error {
	var rows int64
	err := store.RetryOnBusy(ctx, func() error {
		res, err := q.db.ExecContext(ctx, `DELETE FROM queue_items WHERE id = ? AND receipt = ?`, d.ID, d.Receipt)
		if err != nil {
			return fmt.Errorf("queue: ack %s: %w", d.ID, err)
		}
		rows, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("queue: ack %s: %w", d.ID, ErrStaleReceipt)
	}
	return nil
}

// Len returns the number of stored items, visible or not.
func (q *SQLiteQueue) Len(ctx context.Context) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM queue_items`).Scan(&n); err != nil {
		return 0, fmt.Errorf("queue: count: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (q *SQLiteQueue) Close() error {
	if q == nil || q.db == nil {
		return nil
	}
	return q.db.Close()
}
