package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askql-systems/askql/internal/dedup"
	"github.com/askql-systems/askql/internal/orchestrator"
	"github.com/askql-systems/askql/internal/relay"
	"github.com/askql-systems/askql/internal/safety"
	"github.com/askql-systems/askql/internal/testutil"
	"github.com/askql-systems/askql/pkg/types"
)

func setupTestServer(t *testing.T) (*httptest.Server, *testutil.MockStore) {
	t.Helper()

	store := testutil.NewMockStore()
	kv := testutil.NewMockKV()
	cache := dedup.New(kv, time.Hour)

	planner := &testutil.MockPlanner{
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
	executor := &testutil.MockExecutor{}

	orch := orchestrator.New(store)
	orch.RegisterProcessor(orchestrator.AskJobType,
		orchestrator.NewAskPipeline(planner, executor, safety.New(0), cache, store).Handle, 2)

	rel := relay.New()
	rel.SetGraceDelay(20 * time.Millisecond)
	orch.OnUpdate(func(u types.JobUpdate) { rel.SendUpdate(u.JobID, u) })

	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	srv := New(":0", orch, store, kv, cache, rel)
	ts := httptest.NewServer(srv.router)
	t.Cleanup(ts.Close)
	return ts, store
}

func ask(t *testing.T, ts *httptest.Server, prompt string) (map[string]any, int) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/questions", "application/json",
		strings.NewReader(`{"prompt":`+jsonString(prompt)+`}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body, resp.StatusCode
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func waitJobCompleted(t *testing.T, ts *httptest.Server, jobID string) map[string]any {
	t.Helper()
	var job map[string]any
	require.Eventually(t, func() bool {
		resp, err := http.Get(ts.URL + "/api/jobs/" + jobID)
		if err != nil {
			return false
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			return false
		}
		if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
			return false
		}
		return job["status"] == string(types.JobCompleted)
	}, 2*time.Second, 10*time.Millisecond)
	return job
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestAskQuestionLifecycle(t *testing.T) {
	ts, store := setupTestServer(t)

	body, code := ask(t, ts, "show recent events")
	assert.Equal(t, http.StatusAccepted, code)
	require.NotEmpty(t, body["questionId"])
	require.NotEmpty(t, body["jobId"])
	assert.Equal(t, string(types.JobPending), body["status"])

	jobID := body["jobId"].(string)
	job := waitJobCompleted(t, ts, jobID)
	require.NotNil(t, job["result"])

	// Question carries the compiled SQL and title once the job finished.
	q, err := store.GetQuestion(context.Background(), body["questionId"].(string))
	require.NoError(t, err)
	assert.Contains(t, q.SQL, "SELECT id, type FROM events")
	assert.Equal(t, "Recent events", q.Title)
}

func TestAskQuestionPromptCacheHit(t *testing.T) {
	ts, _ := setupTestServer(t)

	first, code := ask(t, ts, "How many stars did the repo get?")
	assert.Equal(t, http.StatusAccepted, code)
	waitJobCompleted(t, ts, first["jobId"].(string))

	// Same prompt modulo case and whitespace resolves to the same job.
	second, code := ask(t, ts, "  how many stars did the repo get?  ")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, first["jobId"], second["jobId"])
	assert.Equal(t, first["questionId"], second["questionId"])
	assert.Equal(t, true, second["deduplicated"])
}

func TestAskQuestionValidation(t *testing.T) {
	ts, _ := setupTestServer(t)

	_, code := ask(t, ts, "   ")
	assert.Equal(t, http.StatusBadRequest, code)

	resp, err := http.Post(ts.URL+"/api/questions", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetQuestionNotFound(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/api/questions/nonexistent")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetJobNotFound(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/api/jobs/ask-question:missing")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStreamJobDeliversTerminalUpdate(t *testing.T) {
	ts, _ := setupTestServer(t)

	body, _ := ask(t, ts, "stream me something")
	jobID := body["jobId"].(string)
	waitJobCompleted(t, ts, jobID)

	resp, err := http.Get(ts.URL + "/api/jobs/" + jobID + "/stream")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// The initial push already carries the terminal state, and the server
	// closes the stream after the grace delay.
	scanner := bufio.NewScanner(resp.Body)
	var update types.JobUpdate
	found := false
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &update))
		found = true
		break
	}
	require.True(t, found, "no data record on the stream")
	assert.Equal(t, jobID, update.JobID)
	assert.Equal(t, types.JobCompleted, update.Status)
	require.NotNil(t, update.Result)
}

func TestStreamJobNotFound(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/api/jobs/ask-question:missing/stream")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _ := setupTestServer(t)

	body, _ := ask(t, ts, "count the questions metric")
	waitJobCompleted(t, ts, body["jobId"].(string))

	resp, err := http.Get(ts.URL + "/debug/vars")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var vars map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&vars))
	received, ok := vars["questions_received"].(float64)
	assert.True(t, ok)
	assert.Greater(t, received, float64(0))
}
