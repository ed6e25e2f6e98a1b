package scheduler

import (
	"context"
	"fmt"
	"slices"
	"testing"
	"time"

	"mediaflow/internal/logging"
	"mediaflow/internal/queue"
	"mediaflow/internal/store"
	"mediaflow/internal/testsupport"
)

type discardQueue struct{}

func (discardQueue) Enqueue(context.Context, queue.Item, time.Duration) error { return nil }

func TestSettleAdmissionKeepsWaitingExecution(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxConcurrent(2))
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedDefinitions(t, st, "Analyze", [][]string{{"Thumbnail"}})
	s := New(cfg, st, discardQueue{}, logging.NewNop())
	ctx := context.Background()

	var ids []string
	for i := range 3 {
		exec, err := s.RequestExecution(ctx, Request{Workflow: "Analyze", AssetID: fmt.Sprintf("asset-%d", i)})
		if err != nil {
			t.Fatalf("RequestExecution %d: %v", i, err)
		}
		ids = append(ids, exec.ID)
	}
	parked := ids[2]

	conflict := fmt.Errorf("reserve slot: %w", ErrSchedulingConflict)
	if err := s.settleAdmission(ctx, parked, AdmissionQueued, conflict); err != nil {
		t.Fatalf("expected queued request to succeed, got %v", err)
	}
	exec, err := st.GetExecution(ctx, parked)
	if err != nil || exec == nil {
		t.Fatalf("GetExecution: %v", err)
	}
	if exec.Status != store.StatusQueued {
		t.Fatalf("waiting execution marked %s", exec.Status)
	}
	waiting, err := st.ListWaiting(ctx)
	if err != nil || !slices.Contains(waiting, parked) {
		t.Fatalf("expected %s on the waiting list, got %v (%v)", parked, waiting, err)
	}

	// Before the execution is parked the same error fails it.
	if err := s.settleAdmission(ctx, parked, "", conflict); err == nil {
		t.Fatal("expected unparked conflict to surface")
	}
	exec, _ = st.GetExecution(ctx, parked)
	if exec.Status != store.StatusError {
		t.Fatalf("expected Error after unparked conflict, got %s", exec.Status)
	}
}
