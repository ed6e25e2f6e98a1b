package stageexec

// Result describes what processing one queue item did.
type Result string

const (
	// ResultDropped means the execution no longer exists.
	ResultDropped Result = "dropped"
	// ResultNoop means the item was stale or a duplicate.
	ResultNoop Result = "noop"
	// ResultExecuting means operations are still running and the item was re-enqueued.
	ResultExecuting Result = "executing"
	// ResultAdvanced means the stage completed and the next stage was enqueued.
	ResultAdvanced Result = "advanced"
	// ResultComplete means the final stage completed.
	ResultComplete Result = "complete"
	// ResultError means the stage failed and the execution is in Error.
	ResultError Result = "error"
)

// Terminal reports whether the execution finished while processing the item.
func (r Result) Terminal() bool {
	return r == ResultComplete || r == ResultError
}
