// Package types defines the public domain types for the askql query service.
package types

import (
	"encoding/json"
	"time"
)

// JobStatus represents the lifecycle state of a job.
type JobStatus string

// JobStatus values represent the lifecycle states of a job.
const (
	JobPending    JobStatus = "PENDING"
	JobProcessing JobStatus = "PROCESSING"
	JobCompleted  JobStatus = "COMPLETED"
	JobFailed     JobStatus = "FAILED"
)

// Job is a unit of asynchronous work. Identity is a pure function of job type
// and fingerprint, so equivalent requests resolve to the same job record.
type Job struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Fingerprint   string          `json:"fingerprint"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	StartedAt     *time.Time      `json:"startedAt,omitempty"`
	FinishedAt    *time.Time      `json:"finishedAt,omitempty"`
	FailureReason string          `json:"failureReason,omitempty"`
	Deduplicated  bool            `json:"deduplicated,omitempty"`
	Result        *JobResult      `json:"result,omitempty"`
}

// Status derives the coarse job status from the two lifecycle timestamps.
func (j *Job) Status() JobStatus {
	switch {
	case j.FinishedAt != nil && j.FailureReason != "":
		return JobFailed
	case j.FinishedAt != nil:
		return JobCompleted
	case j.StartedAt != nil:
		return JobProcessing
	default:
		return JobPending
	}
}

// JobResult is the terminal payload of a completed job: the warehouse result
// plus the inferred chart configuration.
type JobResult struct {
	Result      *QueryResult   `json:"result,omitempty"`
	ChartConfig map[string]any `json:"chartConfig,omitempty"`
}

// Question is the persisted record for a single asked question.
type Question struct {
	ID           string    `json:"id"`
	Prompt       string    `json:"prompt"`
	Title        string    `json:"title,omitempty"`
	SQL          string    `json:"sql,omitempty"`
	JobID        string    `json:"jobId,omitempty"`
	Deduplicated bool      `json:"deduplicated,omitempty"`
	CanonicalID  string    `json:"canonicalId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// QueryResult is what the warehouse executor returns for a SQL statement.
type QueryResult struct {
	Rows     []map[string]any  `json:"rows"`
	Metadata ExecutionMetadata `json:"metadata"`
}

// ExecutionMetadata describes how a query executed.
type ExecutionMetadata struct {
	TotalBytesProcessed int64 `json:"totalBytesProcessed,omitempty"`
	CacheHit            bool  `json:"cacheHit,omitempty"`
	DurationMs          int64 `json:"durationMs,omitempty"`
}

// JobUpdate is one record of the push protocol sent to stream subscribers.
type JobUpdate struct {
	JobID  string     `json:"jobId"`
	Status JobStatus  `json:"status"`
	Title  string     `json:"title,omitempty"`
	Result *JobResult `json:"result,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// Terminal reports whether the update carries a terminal status.
func (u JobUpdate) Terminal() bool {
	return u.Status == JobCompleted || u.Status == JobFailed
}
