// Package warehouse wraps the external data-warehouse query executor.
package warehouse

import (
	"context"

	"github.com/askql-systems/askql/pkg/types"
)

// Executor runs compiled SQL against the warehouse. Implementations may
// reject a statement before running it with a cost or size error.
type Executor interface {
	Execute(ctx context.Context, sql string) (*types.QueryResult, error)
}

// ExecutorError is a downstream execution, quota, or cost failure. It is
// recorded as a job failure; the raw cause is logged, never shown to users.
type ExecutorError struct {
	Reason string
	Err    error
}

func (e *ExecutorError) Error() string {
	if e.Err != nil {
		return "executor: " + e.Reason + ": " + e.Err.Error()
	}
	return "executor: " + e.Reason
}

func (e *ExecutorError) Unwrap() error {
	return e.Err
}
