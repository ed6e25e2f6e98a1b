package store

import (
	"errors"
	"fmt"

	"github.com/qmuntal/stateless"
)

// ErrInvalidTransition reports a status change the execution lifecycle forbids.
var ErrInvalidTransition = errors.New("invalid execution status transition")

const (
	triggerAdmit    = "admit"
	triggerExecute  = "execute"
	triggerComplete = "complete"
	triggerFail     = "fail"
)

var transitionTriggers = map[Status]string{
	StatusStarted:   triggerAdmit,
	StatusExecuting: triggerExecute,
	StatusComplete:  triggerComplete,
	StatusError:     triggerFail,
}

// Queued -> Started -> Executing -> {Complete, Error}; Error is also reachable
// from Queued and Started. Terminal states permit nothing.
func newLifecycle(from Status) *stateless.StateMachine {
	sm := stateless.NewStateMachine(from)
	sm.Configure(StatusQueued).
		Permit(triggerAdmit, StatusStarted).
		Permit(triggerFail, StatusError)
	sm.Configure(StatusStarted).
		Permit(triggerExecute, StatusExecuting).
		Permit(triggerFail, StatusError)
	sm.Configure(StatusExecuting).
		Permit(triggerComplete, StatusComplete).
		Permit(triggerFail, StatusError)
	sm.Configure(StatusComplete)
	sm.Configure(StatusError)
	return sm
}

// ValidateTransition checks a status change against the execution lifecycle.
// Keeping the same status is always allowed for non-terminal records.
func ValidateTransition(from, to Status) error {
	if from == to {
		if from.IsTerminal() {
			return fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, from)
		}
		return nil
	}
	trigger, ok := transitionTriggers[to]
	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if err := newLifecycle(from).Fire(trigger); err != nil {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// StatusRank orders statuses along the lifecycle; terminal statuses share the top rank.
func StatusRank(s Status) int {
	switch s {
	case StatusQueued:
		return 0
	case StatusStarted:
		return 1
	case StatusExecuting:
		return 2
	case StatusComplete, StatusError:
		return 3
	default:
		return -1
	}
}
