package queue_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"mediaflow/internal/queue"
	"mediaflow/internal/testsupport"
)

func openSQLite(t *testing.T, visibility time.Duration) *queue.SQLiteQueue {
	t.Helper()
	q, err := queue.OpenSQLite(filepath.Join(t.TempDir(), "queue.db"), visibility)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func TestSQLiteQueueReceiveAndAck(t *testing.T) {
	q := openSQLite(t, time.Minute)
	ctx := context.Background()

	item := queue.Item{ExecutionID: "exec-1", StageName: "StageA"}
	if err := q.Enqueue(ctx, item, 0); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	got, err := q.Receive(ctx, 10)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(got))
	}
	if got[0].Item != item {
		t.Fatalf("unexpected item %+v", got[0].Item)
	}
	if got[0].Attempts != 1 {
		t.Fatalf("expected first attempt, got %d", got[0].Attempts)
	}

	again, err := q.Receive(ctx, 10)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("claimed item should be invisible, got %d", len(again))
	}

	if err := q.Ack(ctx, got[0]); err != nil {
		t.Fatalf("Ack: %v", err)
	}
	n, err := q.Len(ctx)
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected empty queue after ack, got %d", n)
	}
}

func TestSQLiteQueueRedeliversAfterVisibilityTimeout(t *testing.T) {
	q := openSQLite(t, 20*time.Millisecond)
	ctx := context.Background()

	if err := q.Enqueue(ctx, queue.Item{ExecutionID: "exec-1", StageName: "StageA"}, 0); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	first, err := q.Receive(ctx, 1)
	if err != nil || len(first) != 1 {
		t.Fatalf("Receive: %v (%d)", err, len(first))
	}

	time.Sleep(40 * time.Millisecond)

	second, err := q.Receive(ctx, 1)
	if err != nil || len(second) != 1 {
		t.Fatalf("expected redelivery: %v (%d)", err, len(second))
	}
	if second[0].Attempts != 2 {
		t.Fatalf("expected attempt 2, got %d", second[0].Attempts)
	}
	if second[0].Receipt == first[0].Receipt {
		t.Fatal("expected a fresh receipt on redelivery")
	}

	if err := q.Ack(ctx, first[0]); !errors.Is(err, queue.ErrStaleReceipt) {
		t.Fatalf("expected ErrStaleReceipt for old receipt, got %v", err)
	}
	if err := q.Ack(ctx, second[0]); err != nil {
		t.Fatalf("Ack: %v", err)
	}
}

func TestSQLiteQueueDelayHidesItem(t *testing.T) {
	q := openSQLite(t, time.Minute)
	ctx := context.Background()

	if err := q.Enqueue(ctx, queue.Item{ExecutionID: "exec-1", StageName: "StageA"}, time.Hour); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	got, err := q.Receive(ctx, 5)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("delayed item should not be visible, got %d", len(got))
	}
}

func TestSQLiteQueueRejectsIncompleteItem(t *testing.T) {
	q := openSQLite(t, time.Minute)
	if err := q.Enqueue(context.Background(), queue.Item{ExecutionID: "exec-1"}, 0); err == nil {
		t.Fatal("expected error for missing stage name")
	}
}

func TestOpenUsesConfiguredBackend(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	q, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer q.Close()
	if _, ok := q.(*queue.SQLiteQueue); !ok {
		t.Fatalf("expected sqlite backend, got %T", q)
	}

	cfg.Queue.Backend = "kafka"
	if _, err := queue.Open(cfg); err == nil {
		t.Fatal("expected error for unsupported backend")
	}
}
