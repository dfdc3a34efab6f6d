package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/askql-systems/askql/internal/dedup"
	"github.com/askql-systems/askql/internal/fingerprint"
	"github.com/askql-systems/askql/internal/metrics"
	"github.com/askql-systems/askql/internal/planner"
	"github.com/askql-systems/askql/internal/provider"
	"github.com/askql-systems/askql/internal/safety"
	"github.com/askql-systems/askql/internal/sqlgen"
	"github.com/askql-systems/askql/internal/warehouse"
	"github.com/askql-systems/askql/pkg/types"
)

// AskJobType is the job type for answering a free-text question.
const AskJobType = "ask-question"

// AskPayload is the payload of an ask-question job.
type AskPayload struct {
	QuestionID        string `json:"questionId"`
	Prompt            string `json:"prompt"`
	PromptFingerprint string `json:"promptFingerprint"`
}

// AskPipeline is the registered handler for ask-question jobs: plan,
// validate, compile, dedup by SQL fingerprint, execute, infer chart config,
// cache.
type AskPipeline struct {
	planner   planner.Planner
	executor  warehouse.Executor
	validator *safety.Validator
	cache     *dedup.Cache
	store     provider.Store
	logger    *slog.Logger
}

// NewAskPipeline wires the pipeline's collaborators.
func NewAskPipeline(p planner.Planner, e warehouse.Executor, v *safety.Validator, c *dedup.Cache, s provider.Store) *AskPipeline {
	return &AskPipeline{
		planner:   p,
		executor:  e,
		validator: v,
		cache:     c,
		store:     s,
		logger:    slog.Default(),
	}
}

// SetLogger overrides the default logger.
func (p *AskPipeline) SetLogger(l *slog.Logger) {
	if l != nil {
		p.logger = l
	}
}

// Handle runs the ask-question stages for one job.
func (p *AskPipeline) Handle(ctx context.Context, job *types.Job) (*types.JobResult, error) {
	var payload AskPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, fmt.Errorf("decoding ask payload: %w", err)
	}

	plan, err := p.planner.Plan(ctx, payload.Prompt)
	if err != nil {
		return nil, fmt.Errorf("planning: %w", err)
	}

	verdict := p.validator.Validate(plan.Plan, safety.Metadata{
		Fidelity: plan.Fidelity,
		Abstain:  plan.Abstain,
	})
	if !verdict.OK {
		return nil, planner.Abstain(verdict.Reason)
	}

	sql, err := sqlgen.Compile(plan.Plan)
	if err != nil {
		return nil, err
	}
	sqlFP := fingerprint.SQL(sql)

	cached, err := p.cache.GetBySQL(ctx, sqlFP)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return p.reuse(ctx, job, payload, cached)
	}

	// Persist compiled SQL and title now, so this progress survives a later
	// executor or persistence failure.
	if err := p.store.UpdateQuestionSQL(ctx, payload.QuestionID, sql, plan.Title); err != nil {
		return nil, fmt.Errorf("persisting compiled sql: %w", err)
	}

	metrics.ExecutorCalls.Add(1)
	result, err := p.executor.Execute(ctx, sql)
	if err != nil {
		return nil, err
	}

	chart, err := p.planner.InferChartConfig(ctx, plan.Plan, result.Rows)
	if err != nil {
		return nil, fmt.Errorf("inferring chart config: %w", err)
	}

	if err := p.cache.SetBySQL(ctx, sqlFP, dedup.SQLEntry{
		QuestionID:  payload.QuestionID,
		Result:      result,
		ChartConfig: chart,
		JobID:       job.ID,
	}); err != nil {
		return nil, err
	}

	return &types.JobResult{Result: result, ChartConfig: chart}, nil
}

// reuse short-circuits an ask whose compiled SQL already has a cached result:
// the transient duplicate question is discarded and the prompt cache is
// re-pointed at the original job and question.
func (p *AskPipeline) reuse(ctx context.Context, job *types.Job, payload AskPayload, cached *dedup.SQLEntry) (*types.JobResult, error) {
	metrics.SQLCacheHits.Add(1)
	p.logger.Info("serving question from sql cache",
		"job", job.ID, "question", payload.QuestionID, "canonical", cached.QuestionID)

	if err := p.store.MarkJobDeduplicated(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("marking job deduplicated: %w", err)
	}
	if payload.QuestionID != cached.QuestionID {
		if err := p.store.DeleteQuestion(ctx, payload.QuestionID); err != nil {
			return nil, fmt.Errorf("discarding duplicate question: %w", err)
		}
	}
	if err := p.cache.SetByPrompt(ctx, payload.PromptFingerprint, dedup.PromptEntry{
		JobID:      cached.JobID,
		QuestionID: cached.QuestionID,
	}); err != nil {
		return nil, err
	}

	return &types.JobResult{Result: cached.Result, ChartConfig: cached.ChartConfig}, nil
}
