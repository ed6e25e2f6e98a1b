package store

import (
	"strings"
	"time"

	"mediaflow/internal/operator"
)

// Status represents the lifecycle of a workflow execution.
type Status string

const (
	StatusQueued    Status = "Queued"
	StatusStarted   Status = "Started"
	StatusExecuting Status = "Executing"
	StatusComplete  Status = "Complete"
	StatusError     Status = "Error"
)

var allStatuses = []Status{
	StatusQueued,
	StatusStarted,
	StatusExecuting,
	StatusComplete,
	StatusError,
}

// AllStatuses returns every execution status in lifecycle order.
func AllStatuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// ParseStatus resolves a status name case-insensitively.
func ParseStatus(value string) (Status, bool) {
	trimmed := strings.TrimSpace(value)
	for _, status := range allStatuses {
		if strings.EqualFold(string(status), trimmed) {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether the execution has finished.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusError
}

// IsRunning reports whether the execution occupies an admission slot.
func (s Status) IsRunning() bool {
	return s == StatusStarted || s == StatusExecuting
}

// EndStage is the CurrentStage value of a finished execution.
const EndStage = "End"

// OperationType distinguishes operators that finish in one call from those
// that start an external job and are polled.
type OperationType string

const (
	OperationSync  OperationType = "Sync"
	OperationAsync OperationType = "Async"
)

// Overrides maps stage name -> operation name -> configuration keys supplied
// when an execution is requested.
type Overrides map[string]map[string]map[string]any

// WorkflowRef identifies the workflow definition an execution was built from.
type WorkflowRef struct {
	Name    string `json:"Name"`
	Version int    `json:"Version"`
}

// OperationExecution is one operation inside a stage of a running execution.
type OperationExecution struct {
	Name          string                 `json:"Name"`
	Type          OperationType          `json:"Type"`
	Configuration map[string]any         `json:"Configuration"`
	Status        operator.Status        `json:"Status"`
	Output        *operator.OutputObject `json:"Output,omitempty"`
}

// StageExecution is one stage of a running execution.
type StageExecution struct {
	Name       string               `json:"Name"`
	Status     operator.Status      `json:"Status"`
	Input      operator.Globals     `json:"Input"`
	Operations []OperationExecution `json:"Operations"`
	Next       string               `json:"Next,omitempty"`
	End        bool                 `json:"End,omitempty"`
}

// Execution is one run of a workflow against one asset.
type Execution struct {
	ID            string           `json:"Id"`
	Workflow      WorkflowRef      `json:"Workflow"`
	Trigger       string           `json:"Trigger"`
	AssetID       string           `json:"AssetId"`
	Status        Status           `json:"Status"`
	CurrentStage  string           `json:"CurrentStage"`
	Stages        []StageExecution `json:"Stages"`
	Globals       operator.Globals `json:"Globals"`
	Configuration Overrides        `json:"Configuration"`
	Message       string           `json:"Message,omitempty"`
	Created       time.Time        `json:"Created"`
	Updated       time.Time        `json:"Updated"`
	Version       int64            `json:"Version"`
	SlotHeld      bool             `json:"SlotHeld"`
}

// Stage returns the stage with the given name.
func (e *Execution) Stage(name string) (*StageExecution, bool) {
	for i := range e.Stages {
		if e.Stages[i].Name == name {
			return &e.Stages[i], true
		}
	}
	return nil, false
}

// OperationDefinition describes an operator binding available to stages.
type OperationDefinition struct {
	Name          string         `json:"Name" toml:"name"`
	Type          OperationType  `json:"Type" toml:"type"`
	Configuration map[string]any `json:"Configuration" toml:"configuration"`
	Created       time.Time      `json:"Created" toml:"-"`
	Updated       time.Time      `json:"Updated" toml:"-"`
}

// StageDefinition groups operations that run concurrently.
type StageDefinition struct {
	Name       string    `json:"Name" toml:"name"`
	Operations []string  `json:"Operations" toml:"operations"`
	Created    time.Time `json:"Created" toml:"-"`
	Updated    time.Time `json:"Updated" toml:"-"`
}

// WorkflowStage links a stage to its successor.
type WorkflowStage struct {
	Next string `json:"Next,omitempty" toml:"next"`
	End  bool   `json:"End,omitempty" toml:"end"`
}

// WorkflowDefinition is a named, versioned template of ordered stages.
type WorkflowDefinition struct {
	Name    string                   `json:"Name" toml:"name"`
	Version int                      `json:"Version" toml:"-"`
	StartAt string                   `json:"StartAt" toml:"start_at"`
	Stages  map[string]WorkflowStage `json:"Stages" toml:"stages"`
	Created time.Time                `json:"Created" toml:"-"`
	Updated time.Time                `json:"Updated" toml:"-"`
}

// OrderedStages walks the workflow from StartAt to the End stage.
func (w WorkflowDefinition) OrderedStages() []string {
	order := make([]string, 0, len(w.Stages))
	seen := make(map[string]struct{}, len(w.Stages))
	for name := w.StartAt; name != ""; {
		if _, dup := seen[name]; dup {
			break
		}
		stage, ok := w.Stages[name]
		if !ok {
			break
		}
		seen[name] = struct{}{}
		order = append(order, name)
		if stage.End {
			break
		}
		name = stage.Next
	}
	return order
}
