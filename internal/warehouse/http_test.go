package warehouse

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/query", r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req["sql"], "SELECT")

		_, _ = w.Write([]byte(`{
			"rows": [{"count": 42}],
			"metadata": {"totalBytesProcessed": 1024, "durationMs": 12}
		}`))
	}))
	defer ts.Close()

	e := NewHTTPExecutor(ts.URL, 0)
	result, err := e.Execute(context.Background(), "SELECT count FROM t WHERE 1=1 LIMIT 1")
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, float64(42), result.Rows[0]["count"])
	assert.Equal(t, int64(1024), result.Metadata.TotalBytesProcessed)
}

func TestExecuteCostRejection(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer ts.Close()

	e := NewHTTPExecutor(ts.URL, 0)
	_, err := e.Execute(context.Background(), "SELECT huge FROM everything WHERE 1=1 LIMIT 50")
	require.Error(t, err)

	var ee *ExecutorError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "query rejected by cost check", ee.Reason)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	e := NewHTTPExecutor(ts.URL, 0)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := e.Execute(ctx, "SELECT x FROM t WHERE 1=1 LIMIT 1")
		require.Error(t, err)
	}

	// The sixth call trips without reaching the backend.
	_, err := e.Execute(ctx, "SELECT x FROM t WHERE 1=1 LIMIT 1")
	require.Error(t, err)
	var ee *ExecutorError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "warehouse is temporarily unavailable", ee.Reason)
}
