// Package dedup implements the fingerprint-keyed caches that keep equivalent
// work from being computed twice.
package dedup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/askql-systems/askql/internal/provider"
	"github.com/askql-systems/askql/pkg/types"
)

// DefaultTTL is how long cache entries live before a fresh request recomputes.
const DefaultTTL = 24 * time.Hour

// Key prefixes for the two cache families.
const (
	promptKeyPrefix = "prompt:"
	sqlKeyPrefix    = "sql:"
)

// PromptEntry maps a normalized-prompt fingerprint to the job and question
// already handling that prompt.
type PromptEntry struct {
	JobID      string `json:"jobId"`
	QuestionID string `json:"questionId"`
}

// SQLEntry maps a generated-SQL fingerprint to the computed result.
type SQLEntry struct {
	QuestionID  string             `json:"questionId"`
	Result      *types.QueryResult `json:"result"`
	ChartConfig map[string]any     `json:"chartConfig,omitempty"`
	JobID       string             `json:"jobId"`
}

// Cache wraps a KV store with the two fingerprint-keyed families.
type Cache struct {
	kv  provider.KV
	ttl time.Duration
}

// New creates a Cache. A non-positive TTL selects the default.
func New(kv provider.KV, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{kv: kv, ttl: ttl}
}

// GetByPrompt looks up the prompt family. A miss returns (nil, nil).
func (c *Cache) GetByPrompt(ctx context.Context, fp string) (*PromptEntry, error) {
	var entry PromptEntry
	ok, err := c.get(ctx, promptKeyPrefix+fp, &entry)
	if err != nil || !ok {
		return nil, err
	}
	return &entry, nil
}

// SetByPrompt stores a prompt-family entry with the cache TTL.
func (c *Cache) SetByPrompt(ctx context.Context, fp string, entry PromptEntry) error {
	return c.set(ctx, promptKeyPrefix+fp, entry)
}

// SetByPromptIfAbsent stores a prompt-family entry only when no entry exists
// yet, and reports whether the write happened. This is the conditional-put
// narrowing of the createOrFind race: the loser of the race observes false
// and reuses the winner's entry.
func (c *Cache) SetByPromptIfAbsent(ctx context.Context, fp string, entry PromptEntry) (bool, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return false, fmt.Errorf("dedup marshal: %w", err)
	}
	return c.kv.SetIfAbsent(ctx, promptKeyPrefix+fp, data, c.ttl)
}

// DeleteByPrompt removes a prompt-family entry.
func (c *Cache) DeleteByPrompt(ctx context.Context, fp string) error {
	return c.kv.Delete(ctx, promptKeyPrefix+fp)
}

// GetBySQL looks up the SQL family. A miss returns (nil, nil).
func (c *Cache) GetBySQL(ctx context.Context, fp string) (*SQLEntry, error) {
	var entry SQLEntry
	ok, err := c.get(ctx, sqlKeyPrefix+fp, &entry)
	if err != nil || !ok {
		return nil, err
	}
	return &entry, nil
}

// SetBySQL stores a SQL-family entry with the cache TTL.
func (c *Cache) SetBySQL(ctx context.Context, fp string, entry SQLEntry) error {
	return c.set(ctx, sqlKeyPrefix+fp, entry)
}

func (c *Cache) get(ctx context.Context, key string, out any) (bool, error) {
	data, err := c.kv.Get(ctx, key)
	if errors.Is(err, provider.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("dedup get: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("dedup unmarshal: %w", err)
	}
	return true, nil
}

func (c *Cache) set(ctx context.Context, key string, entry any) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("dedup marshal: %w", err)
	}
	if err := c.kv.Set(ctx, key, data, c.ttl); err != nil {
		return fmt.Errorf("dedup set: %w", err)
	}
	return nil
}
