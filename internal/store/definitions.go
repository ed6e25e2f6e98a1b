package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrInvalidDefinition reports a definition that fails structural validation.
var ErrInvalidDefinition = errors.New("invalid definition")

// PutOperation creates or replaces an operation definition.
func (s *Store) PutOperation(ctx context.Context, def OperationDefinition) error {
	if strings.TrimSpace(def.Name) == "" {
		return fmt.Errorf("%w: operation name is required", ErrInvalidDefinition)
	}
	switch def.Type {
	case OperationSync, OperationAsync:
	case "":
		def.Type = OperationAsync
	default:
		return fmt.Errorf("%w: operation %s has unknown type %q", ErrInvalidDefinition, def.Name, def.Type)
	}
	if def.Configuration == nil {
		def.Configuration = map[string]any{}
	}
	if _, ok := def.Configuration["Enabled"]; !ok {
		def.Configuration["Enabled"] = true
	}
	return s.upsertDefinition(ctx, "operation_definitions", def.Name, &def.Created, &def.Updated, &def)
}

// PutStage creates or replaces a stage definition. Every operation it names must exist.
func (s *Store) PutStage(ctx context.Context, def StageDefinition) error {
	if strings.TrimSpace(def.Name) == "" {
		return fmt.Errorf("%w: stage name is required", ErrInvalidDefinition)
	}
	if len(def.Operations) == 0 {
		return fmt.Errorf("%w: stage %s has no operations", ErrInvalidDefinition, def.Name)
	}
	for _, name := range def.Operations {
		op, err := s.GetOperation(ctx, name)
		if err != nil {
			return err
		}
		if op == nil {
			return fmt.Errorf("%w: stage %s references unknown operation %s", ErrInvalidDefinition, def.Name, name)
		}
	}
	return s.upsertDefinition(ctx, "stage_definitions", def.Name, &def.Created, &def.Updated, &def)
}

// PutWorkflow validates and stores a workflow definition, bumping its version
// when one already exists.
func (s *Store) PutWorkflow(ctx context.Context, def WorkflowDefinition) (WorkflowDefinition, error) {
	if err := ValidateWorkflow(def); err != nil {
		return WorkflowDefinition{}, err
	}
	for name := range def.Stages {
		stage, err := s.GetStage(ctx, name)
		if err != nil {
			return WorkflowDefinition{}, err
		}
		if stage == nil {
			return WorkflowDefinition{}, fmt.Errorf("%w: workflow %s references unknown stage %s", ErrInvalidDefinition, def.Name, name)
		}
	}

	existing, err := s.GetWorkflow(ctx, def.Name)
	if err != nil {
		return WorkflowDefinition{}, err
	}
	now := time.Now().UTC()
	def.Version = 1
	def.Created = now
	if existing != nil {
		def.Version = existing.Version + 1
		def.Created = existing.Created
	}
	def.Updated = now
	body, err := encodeBody(def)
	if err != nil {
		return WorkflowDefinition{}, err
	}
	_, err = s.execWithRetry(ctx,
		`INSERT INTO workflow_definitions (name, version, body_json, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(name) DO UPDATE SET version = excluded.version, body_json = excluded.body_json, updated_at = excluded.updated_at`,
		def.Name, def.Version, body, formatTime(def.Created), formatTime(def.Updated))
	if err != nil {
		return WorkflowDefinition{}, fmt.Errorf("put workflow %s: %w", def.Name, err)
	}
	return def, nil
}

// ValidateWorkflow checks the stage graph: StartAt and every Next name a
// stage of the workflow, each stage has End or Next, and exactly one stage ends.
func ValidateWorkflow(def WorkflowDefinition) error {
	if strings.TrimSpace(def.Name) == "" {
		return fmt.Errorf("%w: workflow name is required", ErrInvalidDefinition)
	}
	if len(def.Stages) == 0 {
		return fmt.Errorf("%w: workflow %s has no stages", ErrInvalidDefinition, def.Name)
	}
	if _, ok := def.Stages[def.StartAt]; !ok {
		return fmt.Errorf("%w: workflow %s StartAt %q is not one of its stages", ErrInvalidDefinition, def.Name, def.StartAt)
	}
	ends := 0
	for name, stage := range def.Stages {
		switch {
		case stage.End && stage.Next != "":
			return fmt.Errorf("%w: stage %s sets both End and Next", ErrInvalidDefinition, name)
		case stage.End:
			ends++
		case stage.Next == "":
			return fmt.Errorf("%w: stage %s needs End or Next", ErrInvalidDefinition, name)
		default:
			if _, ok := def.Stages[stage.Next]; !ok {
				return fmt.Errorf("%w: stage %s Next %q is not one of the workflow stages", ErrInvalidDefinition, name, stage.Next)
			}
		}
	}
	if ends != 1 {
		return fmt.Errorf("%w: workflow %s must have exactly one End stage, found %d", ErrInvalidDefinition, def.Name, ends)
	}
	if order := def.OrderedStages(); len(order) != len(def.Stages) {
		return fmt.Errorf("%w: workflow %s stages are not a single chain from %s", ErrInvalidDefinition, def.Name, def.StartAt)
	}
	return nil
}

// GetOperation fetches an operation definition; missing returns nil, nil.
func (s *Store) GetOperation(ctx context.Context, name string) (*OperationDefinition, error) {
	var def OperationDefinition
	ok, err := s.getDefinition(ctx, "operation_definitions", name, &def)
	if err != nil || !ok {
		return nil, err
	}
	return &def, nil
}

// GetStage fetches a stage definition; missing returns nil, nil.
func (s *Store) GetStage(ctx context.Context, name string) (*StageDefinition, error) {
	var def StageDefinition
	ok, err := s.getDefinition(ctx, "stage_definitions", name, &def)
	if err != nil || !ok {
		return nil, err
	}
	return &def, nil
}

// GetWorkflow fetches a workflow definition; missing returns nil, nil.
func (s *Store) GetWorkflow(ctx context.Context, name string) (*WorkflowDefinition, error) {
	var def WorkflowDefinition
	ok, err := s.getDefinition(ctx, "workflow_definitions", name, &def)
	if err != nil || !ok {
		return nil, err
	}
	return &def, nil
}

// ListOperations returns operation definitions sorted by name.
func (s *Store) ListOperations(ctx context.Context) ([]OperationDefinition, error) {
	var out []OperationDefinition
	err := s.listDefinitions(ctx, "operation_definitions", func(body []byte) error {
		var def OperationDefinition
		if err := json.Unmarshal(body, &def); err != nil {
			return err
		}
		out = append(out, def)
		return nil
	})
	return out, err
}

// ListStages returns stage definitions sorted by name.
func (s *Store) ListStages(ctx context.Context) ([]StageDefinition, error) {
	var out []StageDefinition
	err := s.listDefinitions(ctx, "stage_definitions", func(body []byte) error {
		var def StageDefinition
		if err := json.Unmarshal(body, &def); err != nil {
			return err
		}
		out = append(out, def)
		return nil
	})
	return out, err
}

// ListWorkflows returns workflow definitions sorted by name.
func (s *Store) ListWorkflows(ctx context.Context) ([]WorkflowDefinition, error) {
	var out []WorkflowDefinition
	err := s.listDefinitions(ctx, "workflow_definitions", func(body []byte) error {
		var def WorkflowDefinition
		if err := json.Unmarshal(body, &def); err != nil {
			return err
		}
		out = append(out, def)
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

func (s *Store) upsertDefinition(ctx context.Context, table, name string, created, updated *time.Time, def any) error {
	now := time.Now().UTC()
	var existingCreated string
	err := s.db.QueryRowContext(ensureContext(ctx), `SELECT created_at FROM `+table+` WHERE name = ?`, name).Scan(&existingCreated)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		*created = now
	case err != nil:
		return fmt.Errorf("read %s %s: %w", table, name, err)
	default:
		if ts, perr := parseTimeString(existingCreated); perr == nil {
			*created = ts
		} else {
			*created = now
		}
	}
	*updated = now
	body, err := encodeBody(def)
	if err != nil {
		return err
	}
	_, err = s.execWithRetry(ctx,
		`INSERT INTO `+table+` (name, body_json, created_at, updated_at) VALUES (?, ?, ?, ?)
         ON CONFLICT(name) DO UPDATE SET body_json = excluded.body_json, updated_at = excluded.updated_at`,
		name, body, formatTime(*created), formatTime(*updated))
	if err != nil {
		return fmt.Errorf("put %s %s: %w", table, name, err)
	}
	return nil
}

func (s *Store) getDefinition(ctx context.Context, table, name string, dest any) (bool, error) {
	var body string
	err := s.db.QueryRowContext(ensureContext(ctx), `SELECT body_json FROM `+table+` WHERE name = ?`, name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s %s: %w", table, name, err)
	}
	if err := json.Unmarshal([]byte(body), dest); err != nil {
		return false, fmt.Errorf("decode %s %s: %w", table, name, err)
	}
	return true, nil
}

func (s *Store) listDefinitions(ctx context.Context, table string, each func(body []byte) error) error {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT body_json FROM `+table+` ORDER BY name`)
	if err != nil {
		return fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return fmt.Errorf("scan %s: %w", table, err)
		}
		if err := each([]byte(body)); err != nil {
			return fmt.Errorf("decode %s: %w", table, err)
		}
	}
	return rows.Err()
}
