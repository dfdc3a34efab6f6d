package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/askql-systems/askql/pkg/types"
)

// chartSampleRows caps how many result rows are sent for chart inference.
const chartSampleRows = 20

// HTTPClient is a Planner backed by an HTTP JSON service.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient creates an HTTP planner client. A zero timeout defaults to 30s.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Plan asks the planning service for a structured plan.
func (c *HTTPClient) Plan(ctx context.Context, prompt string) (*types.PlanResponse, error) {
	var resp types.PlanResponse
	if err := c.post(ctx, "/plan", map[string]any{"prompt": prompt}, &resp); err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}
	return &resp, nil
}

// InferChartConfig asks the planning service for a chart configuration that
// fits the plan and a sample of the result rows.
func (c *HTTPClient) InferChartConfig(ctx context.Context, plan *types.RootPlan, rows []map[string]any) (map[string]any, error) {
	if len(rows) > chartSampleRows {
		rows = rows[:chartSampleRows]
	}
	var resp struct {
		ChartConfig map[string]any `json:"chartConfig"`
	}
	if err := c.post(ctx, "/chart", map[string]any{"plan": plan, "rows": rows}, &resp); err != nil {
		return nil, fmt.Errorf("chart inference: %w", err)
	}
	return resp.ChartConfig, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain without exposing the body; upstream messages are not ours to relay.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", path, err)
	}
	return nil
}
