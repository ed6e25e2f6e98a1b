package testsupport

import (
	"context"
	"testing"

	"mediaflow/internal/config"
	"mediaflow/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

// SeedDefinitions stores one operation per name, a stage per entry of stages
// and a workflow chaining the stages in order.
func SeedDefinitions(t testing.TB, st *store.Store, workflow string, stages [][]string) store.WorkflowDefinition {
	t.Helper()
	ctx := context.Background()
	def := store.WorkflowDefinition{Name: workflow, Stages: map[string]store.WorkflowStage{}}
	for i, ops := range stages {
		for _, op := range ops {
			if err := st.PutOperation(ctx, store.OperationDefinition{
				Name:          op,
				Type:          store.OperationAsync,
				Configuration: map[string]any{"MediaType": "Video", "Enabled": true},
			}); err != nil {
				t.Fatalf("PutOperation %s: %v", op, err)
			}
		}
		name := StageName(i)
		if err := st.PutStage(ctx, store.StageDefinition{Name: name, Operations: ops}); err != nil {
			t.Fatalf("PutStage %s: %v", name, err)
		}
		if i == 0 {
			def.StartAt = name
		}
		if i == len(stages)-1 {
			def.Stages[name] = store.WorkflowStage{End: true}
		} else {
			def.Stages[name] = store.WorkflowStage{Next: StageName(i + 1)}
		}
	}
	stored, err := st.PutWorkflow(ctx, def)
	if err != nil {
		t.Fatalf("PutWorkflow %s: %v", workflow, err)
	}
	return stored
}

// StageName is the name SeedDefinitions gives the i-th stage.
func StageName(i int) string {
	return "Stage" + string(rune('A'+i))
}
