package testutil

import (
	"context"
	"sync/atomic"

	"github.com/askql-systems/askql/internal/planner"
	"github.com/askql-systems/askql/internal/warehouse"
	"github.com/askql-systems/askql/pkg/types"
)

// Compile-time interface satisfaction checks.
var (
	_ planner.Planner    = (*MockPlanner)(nil)
	_ warehouse.Executor = (*MockExecutor)(nil)
)

// MockPlanner is a scriptable Planner for testing.
type MockPlanner struct {
	PlanFn  func(ctx context.Context, prompt string) (*types.PlanResponse, error)
	ChartFn func(ctx context.Context, plan *types.RootPlan, rows []map[string]any) (map[string]any, error)
}

func (m *MockPlanner) Plan(ctx context.Context, prompt string) (*types.PlanResponse, error) {
	return m.PlanFn(ctx, prompt)
}

func (m *MockPlanner) InferChartConfig(ctx context.Context, plan *types.RootPlan, rows []map[string]any) (map[string]any, error) {
	if m.ChartFn != nil {
		return m.ChartFn(ctx, plan, rows)
	}
	return map[string]any{"type": "table"}, nil
}

// MockExecutor is a scriptable Executor that counts invocations.
type MockExecutor struct {
	ExecuteFn func(ctx context.Context, sql string) (*types.QueryResult, error)
	calls     atomic.Int64
}

func (m *MockExecutor) Execute(ctx context.Context, sql string) (*types.QueryResult, error) {
	m.calls.Add(1)
	if m.ExecuteFn != nil {
		return m.ExecuteFn(ctx, sql)
	}
	return &types.QueryResult{Rows: []map[string]any{{"n": float64(1)}}}, nil
}

// Calls returns how many times Execute was invoked.
func (m *MockExecutor) Calls() int64 {
	return m.calls.Load()
}
