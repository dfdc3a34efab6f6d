// Package testutil provides shared in-memory test doubles.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/askql-systems/askql/internal/provider"
	"github.com/askql-systems/askql/pkg/types"
)

// Compile-time interface satisfaction checks.
var (
	_ provider.KV    = (*MockKV)(nil)
	_ provider.Store = (*MockStore)(nil)
)

type kvEntry struct {
	value     []byte
	expiresAt time.Time
}

// MockKV is an in-memory KV implementation for testing.
type MockKV struct {
	mu      sync.Mutex
	entries map[string]kvEntry
}

// NewMockKV creates a new in-memory KV.
func NewMockKV() *MockKV {
	return &MockKV{entries: make(map[string]kvEntry)}
}

func (m *MockKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || (!e.expiresAt.IsZero() && time.Now().After(e.expiresAt)) {
		return nil, provider.ErrNotFound
	}
	return e.value, nil
}

func (m *MockKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = newEntry(value, ttl)
	return nil
}

func (m *MockKV) SetIfAbsent(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok && (e.expiresAt.IsZero() || time.Now().Before(e.expiresAt)) {
		return false, nil
	}
	m.entries[key] = newEntry(value, ttl)
	return true, nil
}

func (m *MockKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MockKV) Ping(_ context.Context) error { return nil }

// TTL returns the remaining TTL recorded for a key, for assertions.
func (m *MockKV) TTL(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || e.expiresAt.IsZero() {
		return 0
	}
	return time.Until(e.expiresAt)
}

func newEntry(value []byte, ttl time.Duration) kvEntry {
	e := kvEntry{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	return e
}

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu        sync.Mutex
	questions map[string]types.Question
	jobs      map[string]types.Job
	deleted   []string
}

// NewMockStore creates a new in-memory store.
func NewMockStore() *MockStore {
	return &MockStore{
		questions: make(map[string]types.Question),
		jobs:      make(map[string]types.Job),
	}
}

func (m *MockStore) CreateQuestion(_ context.Context, q types.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questions[q.ID] = q
	return nil
}

func (m *MockStore) GetQuestion(_ context.Context, id string) (*types.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[id]
	if !ok {
		return nil, provider.ErrNotFound
	}
	return &q, nil
}

func (m *MockStore) UpdateQuestionSQL(_ context.Context, id, sql, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[id]
	if !ok {
		return provider.ErrNotFound
	}
	q.SQL = sql
	q.Title = title
	q.UpdatedAt = time.Now()
	m.questions[id] = q
	return nil
}

func (m *MockStore) MarkQuestionDeduplicated(_ context.Context, id, canonicalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[id]
	if !ok {
		return provider.ErrNotFound
	}
	q.Deduplicated = true
	q.CanonicalID = canonicalID
	m.questions[id] = q
	return nil
}

func (m *MockStore) DeleteQuestion(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.questions, id)
	m.deleted = append(m.deleted, id)
	return nil
}

// DeletedQuestions returns the ids passed to DeleteQuestion, in order.
func (m *MockStore) DeletedQuestions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

func (m *MockStore) PutJob(_ context.Context, job types.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return nil
}

func (m *MockStore) GetJob(_ context.Context, id string) (*types.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, provider.ErrNotFound
	}
	return &job, nil
}

func (m *MockStore) StartJob(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return provider.ErrNotFound
	}
	job.StartedAt = &at
	m.jobs[id] = job
	return nil
}

func (m *MockStore) MarkJobDeduplicated(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return provider.ErrNotFound
	}
	job.Deduplicated = true
	m.jobs[id] = job
	return nil
}

func (m *MockStore) CompleteJob(_ context.Context, id string, result *types.JobResult, failureReason string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return provider.ErrNotFound
	}
	job.FinishedAt = &at
	job.FailureReason = failureReason
	job.Result = result
	m.jobs[id] = job
	return nil
}

func (m *MockStore) Ping(_ context.Context) error { return nil }
