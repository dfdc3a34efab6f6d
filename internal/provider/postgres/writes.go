package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/askql-systems/askql/pkg/types"
)

// CreateQuestion inserts a new question record.
func (s *Store) CreateQuestion(ctx context.Context, q types.Question) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO questions (id, prompt, title, sql_text, job_id, deduplicated, canonical_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, q.ID, q.Prompt, q.Title, q.SQL, q.JobID, q.Deduplicated, q.CanonicalID, q.CreatedAt, q.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

// UpdateQuestionSQL persists the compiled SQL and title for a question.
func (s *Store) UpdateQuestionSQL(ctx context.Context, id, sql, title string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE questions SET sql_text = $2, title = $3, updated_at = NOW() WHERE id = $1
	`, id, sql, title)
	if err != nil {
		return fmt.Errorf("update question sql: %w", err)
	}
	return nil
}

// MarkQuestionDeduplicated points a question at the canonical question it
// duplicates.
func (s *Store) MarkQuestionDeduplicated(ctx context.Context, id, canonicalID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE questions SET deduplicated = TRUE, canonical_id = $2, updated_at = NOW() WHERE id = $1
	`, id, canonicalID)
	if err != nil {
		return fmt.Errorf("mark question deduplicated: %w", err)
	}
	return nil
}

// DeleteQuestion removes a question record.
func (s *Store) DeleteQuestion(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	return nil
}

// PutJob upserts a job record.
func (s *Store) PutJob(ctx context.Context, job types.Job) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO jobs (id, job_type, fingerprint, payload, created_at, started_at, finished_at, failure_reason, deduplicated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			payload        = EXCLUDED.payload,
			started_at     = EXCLUDED.started_at,
			finished_at    = EXCLUDED.finished_at,
			failure_reason = EXCLUDED.failure_reason,
			deduplicated   = EXCLUDED.deduplicated
	`, job.ID, job.Type, job.Fingerprint, []byte(job.Payload), job.CreatedAt,
		job.StartedAt, job.FinishedAt, nullable(job.FailureReason), job.Deduplicated)
	if err != nil {
		return fmt.Errorf("upsert job: %w", err)
	}
	return nil
}

// StartJob records the processing-start timestamp.
func (s *Store) StartJob(ctx context.Context, id string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE jobs SET started_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("start job: %w", err)
	}
	return nil
}

// MarkJobDeduplicated flags a job that reused a cached result.
func (s *Store) MarkJobDeduplicated(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `UPDATE jobs SET deduplicated = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark job deduplicated: %w", err)
	}
	return nil
}

// CompleteJob records the terminal state of a job and upserts its result in
// a single transaction, so the metadata update and the result commit together.
func (s *Store) CompleteJob(ctx context.Context, id string, result *types.JobResult, failureReason string, at time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("complete job begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		UPDATE jobs SET finished_at = $2, failure_reason = $3 WHERE id = $1
	`, id, at, nullable(failureReason))
	if err != nil {
		return fmt.Errorf("complete job update: %w", err)
	}

	if result != nil {
		resJSON, err := json.Marshal(result.Result)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		chartJSON, err := json.Marshal(result.ChartConfig)
		if err != nil {
			return fmt.Errorf("marshal chart config: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO results (job_id, result, chart_config)
			VALUES ($1, $2, $3)
			ON CONFLICT (job_id) DO UPDATE SET
				result       = EXCLUDED.result,
				chart_config = EXCLUDED.chart_config
		`, id, resJSON, chartJSON)
		if err != nil {
			return fmt.Errorf("upsert result: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("complete job commit: %w", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
