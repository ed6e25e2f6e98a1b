package store

import (
	"context"
	"fmt"
	"io"

	"github.com/pelletier/go-toml/v2"
)

// DefinitionBundle is the file form of a set of definitions, applied in
// dependency order: operations, then stages, then workflows.
type DefinitionBundle struct {
	Operations []OperationDefinition `toml:"operations"`
	Stages     []StageDefinition     `toml:"stages"`
	Workflows  []WorkflowDefinition  `toml:"workflows"`
}

// DecodeBundle parses a TOML definitions file.
func DecodeBundle(r io.Reader) (DefinitionBundle, error) {
	var bundle DefinitionBundle
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&bundle); err != nil {
		return DefinitionBundle{}, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	return bundle, nil
}

// ApplyBundle stores every definition in the bundle and returns the stored
// workflows with their assigned versions. Definitions applied before a
// failing one stay stored.
func (s *Store) ApplyBundle(ctx context.Context, bundle DefinitionBundle) ([]WorkflowDefinition, error) {
	for _, op := range bundle.Operations {
		if err := s.PutOperation(ctx, op); err != nil {
			return nil, err
		}
	}
	for _, stage := range bundle.Stages {
		if err := s.PutStage(ctx, stage); err != nil {
			return nil, err
		}
	}
	stored := make([]WorkflowDefinition, 0, len(bundle.Workflows))
	for _, wf := range bundle.Workflows {
		def, err := s.PutWorkflow(ctx, wf)
		if err != nil {
			return stored, err
		}
		stored = append(stored, def)
	}
	return stored, nil
}
