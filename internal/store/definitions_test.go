package store_test

import (
	"context"
	"errors"
	"testing"

	"mediaflow/internal/store"
	"mediaflow/internal/testsupport"
)

func TestSeedDefinitionsAndVersioning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	def := testsupport.SeedDefinitions(t, st, "wf", [][]string{{"A", "B"}, {"C"}})
	if def.Version != 1 {
		t.Fatalf("expected version 1, got %d", def.Version)
	}
	order := def.OrderedStages()
	if len(order) != 2 || order[0] != "StageA" || order[1] != "StageB" {
		t.Fatalf("unexpected stage order %v", order)
	}

	again, err := st.PutWorkflow(ctx, def)
	if err != nil {
		t.Fatalf("PutWorkflow failed: %v", err)
	}
	if again.Version != 2 {
		t.Fatalf("expected version bump, got %d", again.Version)
	}

	op, err := st.GetOperation(ctx, "A")
	if err != nil || op == nil || op.Configuration["Enabled"] != true {
		t.Fatalf("unexpected operation %#v (%v)", op, err)
	}
	ops, err := st.ListOperations(ctx)
	if err != nil || len(ops) != 3 {
		t.Fatalf("expected 3 operations, got %d (%v)", len(ops), err)
	}
	stages, err := st.ListStages(ctx)
	if err != nil || len(stages) != 2 {
		t.Fatalf("expected 2 stages, got %d (%v)", len(stages), err)
	}
	workflows, err := st.ListWorkflows(ctx)
	if err != nil || len(workflows) != 1 {
		t.Fatalf("expected 1 workflow, got %d (%v)", len(workflows), err)
	}
}

func TestPutStageRequiresKnownOperations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	err := st.PutStage(context.Background(), store.StageDefinition{Name: "S", Operations: []string{"Missing"}})
	if !errors.Is(err, store.ErrInvalidDefinition) {
		t.Fatalf("expected ErrInvalidDefinition, got %v", err)
	}
}

func TestValidateWorkflow(t *testing.T) {
	tests := []struct {
		name string
		def  store.WorkflowDefinition
		ok   bool
	}{
		{
			name: "single stage",
			def:  store.WorkflowDefinition{Name: "w", StartAt: "A", Stages: map[string]store.WorkflowStage{"A": {End: true}}},
			ok:   true,
		},
		{
			name: "chain",
			def: store.WorkflowDefinition{Name: "w", StartAt: "A", Stages: map[string]store.WorkflowStage{
				"A": {Next: "B"}, "B": {End: true},
			}},
			ok: true,
		},
		{
			name: "missing start",
			def:  store.WorkflowDefinition{Name: "w", StartAt: "X", Stages: map[string]store.WorkflowStage{"A": {End: true}}},
		},
		{
			name: "two ends",
			def: store.WorkflowDefinition{Name: "w", StartAt: "A", Stages: map[string]store.WorkflowStage{
				"A": {End: true}, "B": {End: true},
			}},
		},
		{
			name: "dangling next",
			def: store.WorkflowDefinition{Name: "w", StartAt: "A", Stages: map[string]store.WorkflowStage{
				"A": {Next: "Z"}, "B": {End: true},
			}},
		},
		{
			name: "neither next nor end",
			def: store.WorkflowDefinition{Name: "w", StartAt: "A", Stages: map[string]store.WorkflowStage{
				"A": {}, "B": {End: true},
			}},
		},
		{
			name: "unreachable stage",
			def: store.WorkflowDefinition{Name: "w", StartAt: "A", Stages: map[string]store.WorkflowStage{
				"A": {End: true}, "B": {Next: "A"},
			}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := store.ValidateWorkflow(tc.def)
			if tc.ok && err != nil {
				t.Fatalf("expected valid workflow, got %v", err)
			}
			if !tc.ok && !errors.Is(err, store.ErrInvalidDefinition) {
				t.Fatalf("expected ErrInvalidDefinition, got %v", err)
			}
		})
	}
}
