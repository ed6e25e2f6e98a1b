package operator

import (
	"maps"
	"strings"
)

// Status is the lifecycle state of a stage or operation.
type Status string

const (
	StatusNotStarted Status = "Not Started"
	StatusStarted    Status = "Started"
	StatusExecuting  Status = "Executing"
	StatusComplete   Status = "Complete"
	StatusError      Status = "Error"
	StatusSkipped    Status = "Skipped"
)

var allStatuses = []Status{
	StatusNotStarted,
	StatusStarted,
	StatusExecuting,
	StatusComplete,
	StatusError,
	StatusSkipped,
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

// IsTerminal reports whether no further invocation is needed.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusError || s == StatusSkipped
}

// Succeeded reports whether the status counts as success in a stage roll-up.
func (s Status) Succeeded() bool {
	return s == StatusComplete || s == StatusSkipped
}

// MediaObject references a stored media file.
type MediaObject struct {
	S3Bucket string `json:"S3Bucket"`
	S3Key    string `json:"S3Key"`
}

// Globals aggregates the media and metadata produced by completed stages.
type Globals struct {
	Media    map[string]MediaObject `json:"Media"`
	MetaData map[string]any         `json:"MetaData"`
}

// Clone returns a copy whose top-level maps can be mutated independently.
func (g Globals) Clone() Globals {
	return Globals{
		Media:    cloneMedia(g.Media),
		MetaData: cloneMap(g.MetaData),
	}
}

// OutputObject is the record passed into and returned from every operator invocation.
type OutputObject struct {
	Name                string                 `json:"Name"`
	AssetID             string                 `json:"AssetId"`
	WorkflowExecutionID string                 `json:"WorkflowExecutionId"`
	Input               Globals                `json:"Input"`
	Configuration       map[string]any         `json:"Configuration"`
	Status              Status                 `json:"Status"`
	MetaData            map[string]any         `json:"MetaData"`
	Media               map[string]MediaObject `json:"Media"`
}

// Clone returns a copy whose maps can be mutated independently.
func (o OutputObject) Clone() OutputObject {
	out := o
	out.Input = o.Input.Clone()
	out.Configuration = cloneMap(o.Configuration)
	out.MetaData = cloneMap(o.MetaData)
	out.Media = cloneMedia(o.Media)
	return out
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	maps.Copy(out, m)
	return out
}

func cloneMedia(m map[string]MediaObject) map[string]MediaObject {
	out := make(map[string]MediaObject, len(m))
	maps.Copy(out, m)
	return out
}
