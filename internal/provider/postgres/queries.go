package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/askql-systems/askql/internal/provider"
	"github.com/askql-systems/askql/pkg/types"
)

// GetQuestion loads a question record by id.
func (s *Store) GetQuestion(ctx context.Context, id string) (*types.Question, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, prompt, COALESCE(title, ''), COALESCE(sql_text, ''), COALESCE(job_id, ''),
			deduplicated, COALESCE(canonical_id, ''), created_at, updated_at
		FROM questions WHERE id = $1
	`, id)

	var q types.Question
	err := row.Scan(&q.ID, &q.Prompt, &q.Title, &q.SQL, &q.JobID,
		&q.Deduplicated, &q.CanonicalID, &q.CreatedAt, &q.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, provider.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get question: %w", err)
	}
	return &q, nil
}

// GetJob loads a job record, joined with its result when one exists.
func (s *Store) GetJob(ctx context.Context, id string) (*types.Job, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT j.id, j.job_type, j.fingerprint, COALESCE(j.payload, 'null'::jsonb),
			j.created_at, j.started_at, j.finished_at, COALESCE(j.failure_reason, ''),
			j.deduplicated, r.result, r.chart_config
		FROM jobs j
		LEFT JOIN results r ON r.job_id = j.id
		WHERE j.id = $1
	`, id)

	var (
		job       types.Job
		payload   []byte
		resJSON   []byte
		chartJSON []byte
	)
	err := row.Scan(&job.ID, &job.Type, &job.Fingerprint, &payload,
		&job.CreatedAt, &job.StartedAt, &job.FinishedAt, &job.FailureReason,
		&job.Deduplicated, &resJSON, &chartJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, provider.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}

	job.Payload = payload
	if resJSON != nil || chartJSON != nil {
		res := &types.JobResult{}
		if resJSON != nil {
			if err := json.Unmarshal(resJSON, &res.Result); err != nil {
				return nil, fmt.Errorf("unmarshal result: %w", err)
			}
		}
		if chartJSON != nil {
			if err := json.Unmarshal(chartJSON, &res.ChartConfig); err != nil {
				return nil, fmt.Errorf("unmarshal chart config: %w", err)
			}
		}
		job.Result = res
	}
	return &job, nil
}
