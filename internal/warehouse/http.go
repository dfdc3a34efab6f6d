package warehouse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/askql-systems/askql/pkg/types"
)

// HTTPExecutor is an Executor backed by an HTTP query service, wrapped in a
// circuit breaker so a struggling warehouse sheds load instead of queueing it.
type HTTPExecutor struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewHTTPExecutor creates an HTTP executor client. A zero timeout defaults to 60s.
func NewHTTPExecutor(baseURL string, timeout time.Duration) *HTTPExecutor {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPExecutor{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: "warehouse",
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			Timeout: 30 * time.Second,
		}),
	}
}

// Execute runs the SQL and returns rows plus execution metadata.
func (e *HTTPExecutor) Execute(ctx context.Context, sql string) (*types.QueryResult, error) {
	out, err := e.breaker.Execute(func() (any, error) {
		return e.execute(ctx, sql)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, &ExecutorError{Reason: "warehouse is temporarily unavailable", Err: err}
	}
	if err != nil {
		return nil, err
	}
	return out.(*types.QueryResult), nil
}

func (e *HTTPExecutor) execute(ctx context.Context, sql string) (*types.QueryResult, error) {
	payload, err := json.Marshal(map[string]string{"sql": sql})
	if err != nil {
		return nil, &ExecutorError{Reason: "encoding request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/query", bytes.NewReader(payload))
	if err != nil {
		return nil, &ExecutorError{Reason: "building request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, &ExecutorError{Reason: "request failed", Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusPaymentRequired, http.StatusRequestEntityTooLarge:
		// Pre-flight cost/size rejection.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &ExecutorError{Reason: "query rejected by cost check"}
	default:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &ExecutorError{Reason: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	var result types.QueryResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ExecutorError{Reason: "decoding response", Err: err}
	}
	return &result, nil
}
