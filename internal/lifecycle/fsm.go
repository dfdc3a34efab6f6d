// Package lifecycle implements the job state machine.
package lifecycle

import (
	"fmt"

	"github.com/askql-systems/askql/pkg/types"
)

// Transition table: from -> allowed tos. A job transitions
// pending -> processing -> {completed, failed} exactly once and is never
// resurrected.
var validTransitions = map[types.JobStatus][]types.JobStatus{
	types.JobPending:    {types.JobProcessing},
	types.JobProcessing: {types.JobCompleted, types.JobFailed},
	types.JobCompleted:  {},
	types.JobFailed:     {},
}

// CanTransition checks if transitioning from one job status to another is valid.
func CanTransition(from, to types.JobStatus) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Transition validates the transition, or returns an error if it is invalid.
func Transition(from, to types.JobStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	return nil
}

// IsTerminal returns true if the status is a terminal (final) state.
func IsTerminal(status types.JobStatus) bool {
	return status == types.JobCompleted || status == types.JobFailed
}
