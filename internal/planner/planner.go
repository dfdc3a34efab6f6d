// Package planner wraps the external natural-language planning service.
package planner

import (
	"context"

	"github.com/askql-systems/askql/pkg/types"
)

// Planner produces a structured plan for a prompt and, after execution,
// infers a chart configuration for the result rows.
type Planner interface {
	Plan(ctx context.Context, prompt string) (*types.PlanResponse, error)
	InferChartConfig(ctx context.Context, plan *types.RootPlan, rows []map[string]any) (map[string]any, error)
}

// AbstentionError signals an explicit refusal to proceed: the planner or the
// safety validator declined due to low confidence or unsafe input. Its reason
// is user-facing and suggests rephrasing; it is distinct from runtime failure.
type AbstentionError struct {
	Reason string
}

func (e *AbstentionError) Error() string {
	return "abstained: " + e.Reason
}

// Abstain builds an AbstentionError.
func Abstain(reason string) *AbstentionError {
	return &AbstentionError{Reason: reason}
}
