package store_test

import (
	"context"
	"errors"
	"testing"

	"mediaflow/internal/attrvalue"
	"mediaflow/internal/operator"
	"mediaflow/internal/store"
	"mediaflow/internal/testsupport"
)

func newExecution(id string) *store.Execution {
	return &store.Execution{
		ID:           id,
		Workflow:     store.WorkflowRef{Name: "wf", Version: 1},
		AssetID:      "asset-" + id,
		Status:       store.StatusQueued,
		CurrentStage: "StageA",
		Stages: []store.StageExecution{{
			Name:   "StageA",
			Status: operator.StatusNotStarted,
			Operations: []store.OperationExecution{{
				Name:          "Transcribe",
				Type:          store.OperationAsync,
				Configuration: map[string]any{"MediaType": "Audio"},
				Status:        operator.StatusNotStarted,
			}},
			End: true,
		}},
		Globals:       operator.Globals{Media: map[string]operator.MediaObject{}, MetaData: map[string]any{}},
		Configuration: store.Overrides{},
	}
}

func TestPutAndGetExecution(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	exec := newExecution("e1")
	if err := st.PutExecution(ctx, exec); err != nil {
		t.Fatalf("PutExecution failed: %v", err)
	}
	if exec.Version != 1 || exec.Created.IsZero() {
		t.Fatalf("expected version 1 and created timestamp, got %#v", exec)
	}
	if err := st.PutExecution(ctx, newExecution("e1")); !errors.Is(err, store.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	fetched, err := st.GetExecution(ctx, "e1")
	if err != nil {
		t.Fatalf("GetExecution failed: %v", err)
	}
	if fetched == nil || fetched.AssetID != "asset-e1" || fetched.Stages[0].Operations[0].Name != "Transcribe" {
		t.Fatalf("unexpected execution %#v", fetched)
	}

	missing, err := st.GetExecution(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil for missing execution, got %#v %v", missing, err)
	}
}

func TestUpdateExecutionCompareAndSwap(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	exec := newExecution("e1")
	if err := st.PutExecution(ctx, exec); err != nil {
		t.Fatalf("PutExecution failed: %v", err)
	}

	stale := *exec
	exec.Status = store.StatusStarted
	exec.SlotHeld = true
	if err := st.UpdateExecution(ctx, exec); err != nil {
		t.Fatalf("UpdateExecution failed: %v", err)
	}
	if exec.Version != 2 {
		t.Fatalf("expected version 2, got %d", exec.Version)
	}

	stale.Message = "lost update"
	if err := st.UpdateExecution(ctx, &stale); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict for stale write, got %v", err)
	}

	fetched, err := st.GetExecution(ctx, "e1")
	if err != nil {
		t.Fatalf("GetExecution failed: %v", err)
	}
	if fetched.Status != store.StatusStarted || !fetched.SlotHeld || fetched.Message != "" {
		t.Fatalf("unexpected stored execution %#v", fetched)
	}
}

func TestUpdateExecutionRejectsRegression(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	exec := newExecution("e1")
	if err := st.PutExecution(ctx, exec); err != nil {
		t.Fatalf("PutExecution failed: %v", err)
	}
	exec.Status = store.StatusError
	if err := st.UpdateExecution(ctx, exec); err != nil {
		t.Fatalf("UpdateExecution to Error failed: %v", err)
	}
	exec.Status = store.StatusExecuting
	if err := st.UpdateExecution(ctx, exec); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	exec.Status = store.StatusError
	exec.Message = "again"
	if err := st.UpdateExecution(ctx, exec); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected terminal record to reject updates, got %v", err)
	}
}

func TestReleaseSlotIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	exec := newExecution("e1")
	exec.SlotHeld = true
	if err := st.PutExecution(ctx, exec); err != nil {
		t.Fatalf("PutExecution failed: %v", err)
	}
	if swapped, err := st.CompareAndSwapCounter(ctx, "running", 0, 2); err != nil || !swapped {
		t.Fatalf("seed counter: %v %v", swapped, err)
	}
	released, err := st.ReleaseSlot(ctx, "e1", "running")
	if err != nil || !released {
		t.Fatalf("expected first release to succeed, got %v %v", released, err)
	}
	released, err = st.ReleaseSlot(ctx, "e1", "running")
	if err != nil || released {
		t.Fatalf("expected second release to be a no-op, got %v %v", released, err)
	}
	if n, _ := st.Counter(ctx, "running"); n != 1 {
		t.Fatalf("expected counter decremented once, got %d", n)
	}
	if _, err := st.ReleaseSlot(ctx, "missing", "running"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListExecutions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := st.PutExecution(ctx, newExecution(id)); err != nil {
			t.Fatalf("PutExecution failed: %v", err)
		}
	}
	b, _ := st.GetExecution(ctx, "b")
	b.Status = store.StatusStarted
	if err := st.UpdateExecution(ctx, b); err != nil {
		t.Fatalf("UpdateExecution failed: %v", err)
	}

	queued, err := st.ListExecutions(ctx, store.StatusQueued)
	if err != nil {
		t.Fatalf("ListExecutions failed: %v", err)
	}
	if len(queued) != 2 {
		t.Fatalf("expected 2 queued executions, got %d", len(queued))
	}
	all, err := st.ListExecutions(ctx)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected 3 executions, got %d (%v)", len(all), err)
	}
	byAsset, err := st.ListExecutionsByAsset(ctx, "asset-c")
	if err != nil || len(byAsset) != 1 || byAsset[0].ID != "c" {
		t.Fatalf("unexpected asset listing %#v (%v)", byAsset, err)
	}
	counts, err := st.CountExecutions(ctx)
	if err != nil || counts[store.StatusQueued] != 2 || counts[store.StatusStarted] != 1 {
		t.Fatalf("unexpected counts %#v (%v)", counts, err)
	}
}

func TestDeleteExecutionRequiresTerminal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	exec := newExecution("e1")
	if err := st.PutExecution(ctx, exec); err != nil {
		t.Fatalf("PutExecution failed: %v", err)
	}
	if err := st.DeleteExecution(ctx, "e1"); err == nil {
		t.Fatal("expected delete of queued execution to fail")
	}
	exec.Status = store.StatusError
	if err := st.UpdateExecution(ctx, exec); err != nil {
		t.Fatalf("UpdateExecution failed: %v", err)
	}
	if err := st.DeleteExecution(ctx, "e1"); err != nil {
		t.Fatalf("DeleteExecution failed: %v", err)
	}
	if got, _ := st.GetExecution(ctx, "e1"); got != nil {
		t.Fatalf("expected execution removed, got %#v", got)
	}
}

func TestChangeFeedRecordsBeforeAndAfter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	exec := newExecution("e1")
	if err := st.PutExecution(ctx, exec); err != nil {
		t.Fatalf("PutExecution failed: %v", err)
	}
	exec.Status = store.StatusStarted
	if err := st.UpdateExecution(ctx, exec); err != nil {
		t.Fatalf("UpdateExecution failed: %v", err)
	}

	changes, err := st.ChangesAfter(ctx, 0, 10)
	if err != nil {
		t.Fatalf("ChangesAfter failed: %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(changes))
	}
	if changes[0].EventName != store.EventInsert || changes[0].OldImage != nil {
		t.Fatalf("unexpected insert record %#v", changes[0])
	}
	modify := changes[1]
	if modify.EventName != store.EventModify {
		t.Fatalf("expected MODIFY, got %s", modify.EventName)
	}
	oldStatus, err := attrvalue.Unmarshal(modify.OldImage["Status"])
	if err != nil || oldStatus != "Queued" {
		t.Fatalf("unexpected old status %#v (%v)", oldStatus, err)
	}
	newStatus, err := attrvalue.Unmarshal(modify.NewImage["Status"])
	if err != nil || newStatus != "Started" {
		t.Fatalf("unexpected new status %#v (%v)", newStatus, err)
	}

	later, err := st.ChangesAfter(ctx, modify.Seq, 10)
	if err != nil || len(later) != 0 {
		t.Fatalf("expected no changes after last seq, got %d (%v)", len(later), err)
	}
	pruned, err := st.PruneChanges(ctx, modify.Seq)
	if err != nil || pruned != 2 {
		t.Fatalf("expected 2 pruned records, got %d (%v)", pruned, err)
	}
}

func TestCounterCompareAndSwap(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if v, err := st.Counter(ctx, "running"); err != nil || v != 0 {
		t.Fatalf("expected missing counter to read 0, got %d (%v)", v, err)
	}
	if ok, err := st.CompareAndSwapCounter(ctx, "running", 0, 1); err != nil || !ok {
		t.Fatalf("expected 0->1 swap, got %v (%v)", ok, err)
	}
	if ok, err := st.CompareAndSwapCounter(ctx, "running", 0, 1); err != nil || ok {
		t.Fatalf("expected stale 0->1 swap to fail, got %v (%v)", ok, err)
	}
	if ok, err := st.CompareAndSwapCounter(ctx, "running", 1, 0); err != nil || !ok {
		t.Fatalf("expected 1->0 swap, got %v (%v)", ok, err)
	}
	if ok, err := st.CompareAndSwapCounter(ctx, "running", 0, 1); err != nil || !ok {
		t.Fatalf("expected 0->1 swap on existing row, got %v (%v)", ok, err)
	}
}

func TestWaitingListIsFIFO(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "a", "c"} {
		if err := st.AppendWaiting(ctx, id); err != nil {
			t.Fatalf("AppendWaiting failed: %v", err)
		}
	}
	if err := st.RemoveWaiting(ctx, "b"); err != nil {
		t.Fatalf("RemoveWaiting failed: %v", err)
	}
	ids, err := st.ListWaiting(ctx)
	if err != nil || len(ids) != 2 {
		t.Fatalf("unexpected waiting list %v (%v)", ids, err)
	}
	for _, want := range []string{"a", "c"} {
		got, ok, err := st.PopWaiting(ctx)
		if err != nil || !ok || got != want {
			t.Fatalf("expected %s, got %q %v %v", want, got, ok, err)
		}
	}
	if _, ok, err := st.PopWaiting(ctx); err != nil || ok {
		t.Fatalf("expected empty waiting list, got %v %v", ok, err)
	}
}

func TestSettings(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, ok, err := st.GetSetting(ctx, "k"); err != nil || ok {
		t.Fatalf("expected missing setting, got %v %v", ok, err)
	}
	for _, v := range []string{"1", "2"} {
		if err := st.PutSetting(ctx, "k", v); err != nil {
			t.Fatalf("PutSetting failed: %v", err)
		}
	}
	if v, ok, err := st.GetSetting(ctx, "k"); err != nil || !ok || v != "2" {
		t.Fatalf("expected 2, got %q %v %v", v, ok, err)
	}
	if err := st.CheckHealth(ctx); err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
}
