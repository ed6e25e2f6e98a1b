package operator

import (
	"context"
	"fmt"
)

// JobState is the state reported by an external job.
type JobState string

const (
	JobScheduled  JobState = "scheduled"
	JobInProgress JobState = "inProgress"
	JobCompleted  JobState = "completed"
	JobFailed     JobState = "failed"
)

// JobInput is submitted when an external job starts.
type JobInput struct {
	Operator            string                 `json:"operator"`
	AssetID             string                 `json:"assetId"`
	WorkflowExecutionID string                 `json:"workflowExecutionId"`
	Media               map[string]MediaObject `json:"media"`
	Configuration       map[string]any         `json:"configuration"`
}

// JobStatus is the reply to a status query.
type JobStatus struct {
	State        JobState `json:"state"`
	ResultBucket string   `json:"resultBucket,omitempty"`
	ResultKey    string   `json:"resultKey,omitempty"`
	ErrorReason  string   `json:"errorReason,omitempty"`
}

// JobClient reaches the external job boundary.
type JobClient interface {
	StartJob(ctx context.Context, kind string, input JobInput) (string, error)
	JobStatus(ctx context.Context, kind, jobID string) (JobStatus, error)
}

// AsyncJob fronts one external job kind. The job id and poll count live in
// MetaData under <Name>JobId and <Name>PollCount so any process can resume
// the loop.
type AsyncJob struct {
	Kind            string
	OutputMediaType string
	Client          JobClient
}

// JobIDKey returns the metadata key holding an operator's job id.
func JobIDKey(name string) string { return name + "JobId" }

// PollCountKey returns the metadata key holding an operator's poll count.
func PollCountKey(name string) string { return name + "PollCount" }

// Start submits the job and leaves the operation Executing.
func (a AsyncJob) Start(ctx context.Context, state *State) (OutputObject, error) {
	input := state.Input()
	jobID, err := a.Client.StartJob(ctx, a.Kind, JobInput{
		Operator:            state.Name(),
		AssetID:             state.out.AssetID,
		WorkflowExecutionID: state.out.WorkflowExecutionID,
		Media:               input.Media,
		Configuration:       state.Configuration(),
	})
	if err != nil {
		return OutputObject{}, state.Fail(fmt.Errorf("%w: start %s job: %v", ErrExternalJob, a.Kind, err))
	}
	if jobID == "" {
		return OutputObject{}, state.Fail(fmt.Errorf("%w: start %s job: empty job id", ErrExternalJob, a.Kind))
	}
	state.AddMetadata(JobIDKey(state.Name()), jobID)
	state.AddMetadata(PollCountKey(state.Name()), int64(0))
	state.SetStatus(StatusExecuting)
	return state.OutputObject(), nil
}

// Poll checks the job once and maps its state onto the operation status.
func (a AsyncJob) Poll(ctx context.Context, state *State) (OutputObject, error) {
	name := state.Name()
	jobID, ok := state.MetadataString(JobIDKey(name))
	if !ok {
		return OutputObject{}, state.Fail(fmt.Errorf("missing required metadata key %s", JobIDKey(name)))
	}
	status, err := a.Client.JobStatus(ctx, a.Kind, jobID)
	if err != nil {
		return OutputObject{}, state.Fail(fmt.Errorf("%w: get %s job %s: %v", ErrExternalJob, a.Kind, jobID, err))
	}
	state.AddMetadata(PollCountKey(name), pollCount(state)+1)

	switch status.State {
	case JobScheduled, JobInProgress:
		state.AddMetadata(JobIDKey(name), jobID)
		state.SetStatus(StatusExecuting)
		return state.OutputObject(), nil
	case JobCompleted:
		if status.ResultKey == "" {
			return OutputObject{}, state.Fail(fmt.Errorf("%w: %s job %s completed without a result location", ErrExternalJob, a.Kind, jobID))
		}
		mediaType := a.OutputMediaType
		if mediaType == "" {
			mediaType = "Text"
		}
		state.AddMediaObject(mediaType, status.ResultBucket, status.ResultKey)
		state.SetStatus(StatusComplete)
		return state.OutputObject(), nil
	case JobFailed:
		reason := status.ErrorReason
		if reason == "" {
			reason = "no reason reported"
		}
		return OutputObject{}, state.Fail(fmt.Errorf("%w: %s job %s failed: %s", ErrExternalJob, a.Kind, jobID, reason))
	default:
		return OutputObject{}, state.Fail(fmt.Errorf("%w: %s job %s returned unknown state %q", ErrExternalJob, a.Kind, jobID, status.State))
	}
}

func pollCount(state *State) int64 {
	v, _ := state.Metadata(PollCountKey(state.Name()))
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	case int:
		return int64(n)
	default:
		return 0
	}
}
