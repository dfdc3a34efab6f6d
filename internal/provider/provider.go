// Package provider defines the storage backend interfaces for askql.
package provider

import (
	"context"
	"errors"
	"time"

	"github.com/askql-systems/askql/pkg/types"
)

// ErrNotFound is returned when a key or record does not exist.
var ErrNotFound = errors.New("provider: not found")

// KV is a key-value store with TTL support. It backs the fingerprint caches
// and, optionally, relay fan-out. Concurrent writers to the same key follow
// last-write-wins semantics; SetIfAbsent is the only conditional primitive.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetIfAbsent writes only when the key does not exist and reports whether
	// the write happened.
	SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// Store persists question and job records. CompleteJob commits the job
// metadata update and the result upsert in a single transaction.
type Store interface {
	CreateQuestion(ctx context.Context, q types.Question) error
	GetQuestion(ctx context.Context, id string) (*types.Question, error)
	// UpdateQuestionSQL persists the compiled SQL and title as soon as they
	// exist, so upstream progress survives a later failure.
	UpdateQuestionSQL(ctx context.Context, id, sql, title string) error
	// MarkQuestionDeduplicated points a question at the canonical question
	// whose cached result it reuses.
	MarkQuestionDeduplicated(ctx context.Context, id, canonicalID string) error
	DeleteQuestion(ctx context.Context, id string) error

	PutJob(ctx context.Context, job types.Job) error
	// GetJob looks a job up by its deterministic id across all non-purged
	// states. A missing job returns ErrNotFound.
	GetJob(ctx context.Context, id string) (*types.Job, error)
	StartJob(ctx context.Context, id string, at time.Time) error
	MarkJobDeduplicated(ctx context.Context, id string) error
	CompleteJob(ctx context.Context, id string, result *types.JobResult, failureReason string, at time.Time) error

	Ping(ctx context.Context) error
}
