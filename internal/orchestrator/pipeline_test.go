package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askql-systems/askql/internal/dedup"
	"github.com/askql-systems/askql/internal/fingerprint"
	"github.com/askql-systems/askql/internal/safety"
	"github.com/askql-systems/askql/internal/testutil"
	"github.com/askql-systems/askql/internal/warehouse"
	"github.com/askql-systems/askql/pkg/types"
)

// fixedPlanner always returns the same plan regardless of prompt, which is
// exactly the situation where SQL-fingerprint dedup must kick in.
func fixedPlanner() *testutil.MockPlanner {
	return &testutil.MockPlanner{
		PlanFn: func(_ context.Context, _ string) (*types.PlanResponse, error) {
			return &types.PlanResponse{
				Plan: &types.RootPlan{MainQuery: &types.QueryPlan{
					Table:   "events",
					Columns: []string{"id", "type"},
					Limit:   10,
				}},
				Title:    "Recent events",
				Fidelity: 0.95,
			}, nil
		},
	}
}

type pipelineEnv struct {
	store    *testutil.MockStore
	cache    *dedup.Cache
	executor *testutil.MockExecutor
	pipeline *AskPipeline
}

func newPipelineEnv(p *testutil.MockPlanner, e *testutil.MockExecutor) *pipelineEnv {
	store := testutil.NewMockStore()
	cache := dedup.New(testutil.NewMockKV(), 0)
	return &pipelineEnv{
		store:    store,
		cache:    cache,
		executor: e,
		pipeline: NewAskPipeline(p, e, safety.New(0), cache, store),
	}
}

// askJob provisions the question record and job the request path would have
// created, and runs the pipeline handler on it.
func (env *pipelineEnv) askJob(t *testing.T, prompt, questionID string) (*types.JobResult, error) {
	t.Helper()
	ctx := context.Background()
	pfp := fingerprint.Prompt(prompt)
	require.NoError(t, env.store.CreateQuestion(ctx, types.Question{ID: questionID, Prompt: prompt}))

	job := &types.Job{ID: JobID(AskJobType, pfp), Type: AskJobType, Fingerprint: pfp}
	require.NoError(t, env.store.PutJob(ctx, *job))

	payload, err := encodePayload(AskPayload{
		QuestionID:        questionID,
		Prompt:            prompt,
		PromptFingerprint: pfp,
	})
	require.NoError(t, err)
	job.Payload = payload

	return env.pipeline.Handle(ctx, job)
}

func encodePayload(p AskPayload) ([]byte, error) {
	return json.Marshal(p)
}

func TestPipelineHappyPath(t *testing.T) {
	env := newPipelineEnv(fixedPlanner(), &testutil.MockExecutor{})

	result, err := env.askJob(t, "show recent events", "q-1")
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotNil(t, result.Result)
	assert.EqualValues(t, 1, env.executor.Calls())

	// The compiled SQL and title were persisted before execution.
	q, err := env.store.GetQuestion(context.Background(), "q-1")
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, type FROM events WHERE 1=1 LIMIT 10", q.SQL)
	assert.Equal(t, "Recent events", q.Title)
}

func TestPipelineDistinctPromptsSameSQLOneExecution(t *testing.T) {
	// Scenario: the planner maps two different prompts onto identical SQL.
	env := newPipelineEnv(fixedPlanner(), &testutil.MockExecutor{})

	first, err := env.askJob(t, "show me recent events", "q-1")
	require.NoError(t, err)

	second, err := env.askJob(t, "what happened lately?", "q-2")
	require.NoError(t, err)

	assert.EqualValues(t, 1, env.executor.Calls(), "second ask must be served from the sql cache")
	assert.Equal(t, first.Result.Rows, second.Result.Rows)

	// The transient duplicate question record was discarded.
	assert.Contains(t, env.store.DeletedQuestions(), "q-2")
	_, err = env.store.GetQuestion(context.Background(), "q-2")
	assert.Error(t, err)

	// The duplicate's prompt cache entry points at the original job/question.
	entry, err := env.cache.GetByPrompt(context.Background(), fingerprint.Prompt("what happened lately?"))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "q-1", entry.QuestionID)
}

func TestPipelineConcurrentSamePromptConverges(t *testing.T) {
	// Two requests with the same normalized prompt race past the prompt cache
	// and both get a job record. The worst case pays twice; every later ask is
	// served from the sql cache.
	env := newPipelineEnv(fixedPlanner(), &testutil.MockExecutor{})

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, q := range []string{"q-1", "q-2"} {
		wg.Add(1)
		go func(idx int, questionID string) {
			defer wg.Done()
			_, results[idx] = env.askJob(t, "How many push events today?", questionID)
		}(i, q)
	}
	wg.Wait()

	require.NoError(t, results[0])
	require.NoError(t, results[1])
	assert.LessOrEqual(t, env.executor.Calls(), int64(2))

	// Re-running either after convergence never pays again.
	_, err := env.askJob(t, "how many push events today?", "q-3")
	require.NoError(t, err)
	before := env.executor.Calls()
	_, err = env.askJob(t, "HOW MANY PUSH EVENTS TODAY?", "q-4")
	require.NoError(t, err)
	assert.Equal(t, before, env.executor.Calls())
}

func TestPipelinePlannerAbstains(t *testing.T) {
	p := &testutil.MockPlanner{
		PlanFn: func(_ context.Context, _ string) (*types.PlanResponse, error) {
			return &types.PlanResponse{Abstain: true, Fidelity: 0.9}, nil
		},
	}
	env := newPipelineEnv(p, &testutil.MockExecutor{})

	_, err := env.askJob(t, "what is the meaning of life?", "q-1")
	require.Error(t, err)
	assert.Contains(t, SanitizeFailure(err), "rephrasing")
	assert.EqualValues(t, 0, env.executor.Calls())
}

func TestPipelineLowFidelityAbstains(t *testing.T) {
	p := fixedPlanner()
	base := p.PlanFn
	p.PlanFn = func(ctx context.Context, prompt string) (*types.PlanResponse, error) {
		resp, err := base(ctx, prompt)
		if err != nil {
			return nil, err
		}
		resp.Fidelity = 0.2
		return resp, nil
	}
	env := newPipelineEnv(p, &testutil.MockExecutor{})

	_, err := env.askJob(t, "vague question", "q-1")
	require.Error(t, err)
	assert.Contains(t, SanitizeFailure(err), "threshold")
	assert.EqualValues(t, 0, env.executor.Calls())
}

func TestPipelineExecutorFailureKeepsPersistedSQL(t *testing.T) {
	exec := &testutil.MockExecutor{
		ExecuteFn: func(_ context.Context, _ string) (*types.QueryResult, error) {
			return nil, &warehouse.ExecutorError{Reason: "query rejected by cost check"}
		},
	}
	env := newPipelineEnv(fixedPlanner(), exec)

	_, err := env.askJob(t, "expensive question", "q-1")
	require.Error(t, err)

	// Partial progress is not rolled back: the compiled SQL survives.
	q, qerr := env.store.GetQuestion(context.Background(), "q-1")
	require.NoError(t, qerr)
	assert.NotEmpty(t, q.SQL)
}

func TestPipelinePlannerFailure(t *testing.T) {
	p := &testutil.MockPlanner{
		PlanFn: func(_ context.Context, _ string) (*types.PlanResponse, error) {
			return nil, errors.New("planner unavailable")
		},
	}
	env := newPipelineEnv(p, &testutil.MockExecutor{})

	_, err := env.askJob(t, "anything", "q-1")
	require.Error(t, err)
	assert.Contains(t, SanitizeFailure(err), "internal error")
}
