package scheduler

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"

	"mediaflow/internal/logging"
	"mediaflow/internal/operator"
	"mediaflow/internal/services"
	"mediaflow/internal/store"
)

// Request asks for one workflow to run against one asset.
type Request struct {
	Workflow      string
	AssetID       string
	Input         operator.Globals
	Configuration store.Overrides
	Trigger       string
}

// RequestExecution builds an execution from the workflow definition, stores
// it as Queued and runs admission. The returned record is the Queued one.
func (s *Scheduler) RequestExecution(ctx context.Context, req Request) (*store.Execution, error) {
	req.Workflow = strings.TrimSpace(req.Workflow)
	req.AssetID = strings.TrimSpace(req.AssetID)
	if req.Workflow == "" {
		return nil, services.Wrap(services.ErrValidation, "", "request execution", "workflow name is required", nil)
	}
	if req.AssetID == "" {
		return nil, services.Wrap(services.ErrValidation, "", "request execution", "asset id is required", nil)
	}

	exec, err := s.initialize(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.store.PutExecution(ctx, exec); err != nil {
		return nil, err
	}
	queued := *exec

	ctx = services.WithExecutionID(ctx, exec.ID)
	logger := logging.WithContext(ctx, s.logger)
	logger.Info("execution requested",
		logging.String(logging.FieldEventType, "execution_requested"),
		logging.String("workflow", exec.Workflow.Name),
		logging.Int("workflow_version", exec.Workflow.Version),
		logging.String("asset_id", exec.AssetID),
		logging.String("trigger", exec.Trigger),
	)

	outcome, err := s.Admit(ctx, exec.ID)
	if err := s.settleAdmission(ctx, exec.ID, outcome, err); err != nil {
		return &queued, err
	}
	return &queued, nil
}

// settleAdmission decides what an admission error means for the requesting
// execution. Once the execution is on the waiting list, a later promotion
// error belongs to other executions and the request still succeeds.
func (s *Scheduler) settleAdmission(ctx context.Context, id string, outcome Outcome, err error) error {
	if err == nil {
		return nil
	}
	if outcome == AdmissionQueued {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "promotion after queueing failed", "promotion_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.String(logging.FieldImpact, "waiting executions are promoted on the next terminal execution"),
		)
		return nil
	}
	if errors.Is(err, ErrSchedulingConflict) {
		s.fail(ctx, id, "Admission failed: "+err.Error())
	}
	return err
}

func (s *Scheduler) initialize(ctx context.Context, req Request) (*store.Execution, error) {
	def, err := s.store.GetWorkflow(ctx, req.Workflow)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, services.Wrap(services.ErrNotFound, "", "request execution", fmt.Sprintf("workflow %q is not defined", req.Workflow), nil)
	}
	order := def.OrderedStages()
	if len(order) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "", "request execution", fmt.Sprintf("workflow %q has no stages", def.Name), nil)
	}

	stageDefs := make(map[string]*store.StageDefinition, len(order))
	for _, name := range order {
		sd, err := s.store.GetStage(ctx, name)
		if err != nil {
			return nil, err
		}
		if sd == nil {
			return nil, services.Wrap(services.ErrConfiguration, name, "request execution", "stage is not defined", nil)
		}
		stageDefs[name] = sd
	}
	if err := validateOverrides(req.Configuration, stageDefs); err != nil {
		return nil, err
	}

	stages := make([]store.StageExecution, 0, len(order))
	for _, name := range order {
		sd := stageDefs[name]
		ops := make([]store.OperationExecution, 0, len(sd.Operations))
		for _, opName := range sd.Operations {
			od, err := s.store.GetOperation(ctx, opName)
			if err != nil {
				return nil, err
			}
			if od == nil {
				return nil, services.Wrap(services.ErrConfiguration, name, opName, "operation is not defined", nil)
			}
			cfg := make(map[string]any, len(od.Configuration))
			maps.Copy(cfg, od.Configuration)
			maps.Copy(cfg, req.Configuration[name][opName])
			ops = append(ops, store.OperationExecution{
				Name:          opName,
				Type:          od.Type,
				Configuration: cfg,
				Status:        operator.StatusNotStarted,
			})
		}
		link := def.Stages[name]
		stages = append(stages, store.StageExecution{
			Name:       name,
			Status:     operator.StatusNotStarted,
			Operations: ops,
			Next:       link.Next,
			End:        link.End,
		})
	}

	globals := req.Input.Clone()
	stages[0].Input = globals.Clone()

	trigger := strings.TrimSpace(req.Trigger)
	if trigger == "" {
		trigger = "api"
	}
	return &store.Execution{
		ID:            uuid.NewString(),
		Workflow:      store.WorkflowRef{Name: def.Name, Version: def.Version},
		Trigger:       trigger,
		AssetID:       req.AssetID,
		Status:        store.StatusQueued,
		CurrentStage:  order[0],
		Stages:        stages,
		Globals:       globals,
		Configuration: req.Configuration,
	}, nil
}

func validateOverrides(overrides store.Overrides, stages map[string]*store.StageDefinition) error {
	for stageName, ops := range overrides {
		sd, ok := stages[stageName]
		if !ok {
			return services.Wrap(services.ErrValidation, stageName, "request execution", "configuration names a stage that is not part of the workflow", nil)
		}
		for opName := range ops {
			if !slices.Contains(sd.Operations, opName) {
				return services.Wrap(services.ErrValidation, stageName, opName, "configuration names an operation that is not part of the stage", nil)
			}
		}
	}
	return nil
}
