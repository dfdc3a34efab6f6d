package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "askql.yaml"), []byte(content), 0o644))
	return dir
}

func TestLoad(t *testing.T) {
	dir := writeConfig(t, `provider: redis
redis:
  addr: localhost:6379
  keyPrefix: "askql:"
postgres:
  dsn: postgres://localhost/askql
planner:
  baseUrl: http://localhost:8100
  timeout: 30s
executor:
  baseUrl: http://localhost:8200
server:
  addr: ":3000"
safety:
  fidelityThreshold: 0.8
cache:
  ttl: 12h
jobs:
  askConcurrency: 4
relay:
  fanout: true
`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Provider)
	require.NotNil(t, cfg.Redis)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "askql:", cfg.Redis.KeyPrefix)
	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, "http://localhost:8100", cfg.Planner.BaseURL)
	assert.Equal(t, 0.8, cfg.Safety.FidelityThreshold)
	assert.Equal(t, "12h", cfg.Cache.TTL)
	assert.Equal(t, 4, cfg.Jobs.AskConcurrency)
	assert.True(t, cfg.Relay.Fanout)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent")
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := writeConfig(t, "invalid: [yaml")
	_, err := Load(dir)
	assert.Error(t, err)
}

func TestValidation(t *testing.T) {
	base := `postgres:
  dsn: postgres://localhost/askql
planner:
  baseUrl: http://localhost:8100
executor:
  baseUrl: http://localhost:8200
`

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			"missing provider",
			base,
			"provider is required",
		},
		{
			"unknown provider",
			"provider: etcd\n" + base,
			"unknown provider",
		},
		{
			"redis without addr",
			"provider: redis\nredis:\n  db: 1\n" + base,
			"redis.addr is required",
		},
		{
			"dynamodb without table",
			"provider: dynamodb\ndynamodb:\n  region: us-east-1\n" + base,
			"dynamodb.tableName is required",
		},
		{
			"missing postgres dsn",
			`provider: redis
redis:
  addr: localhost:6379
planner:
  baseUrl: http://localhost:8100
executor:
  baseUrl: http://localhost:8200
`,
			"postgres.dsn is required",
		},
		{
			"missing planner base url",
			`provider: redis
redis:
  addr: localhost:6379
postgres:
  dsn: postgres://localhost/askql
executor:
  baseUrl: http://localhost:8200
`,
			"planner.baseUrl is required",
		},
		{
			"bad cache ttl",
			"provider: redis\nredis:\n  addr: localhost:6379\n" + base + "cache:\n  ttl: soon\n",
			"cache.ttl",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeConfig(t, tt.content)
			_, err := Load(dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 30*time.Second, Duration("30s", time.Minute))
	assert.Equal(t, time.Minute, Duration("", time.Minute))
	assert.Equal(t, time.Minute, Duration("garbage", time.Minute))
}
