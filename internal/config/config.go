// Package config handles loading and validation of askql.yaml project configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/askql-systems/askql/pkg/types"
)

// Load reads and parses askql.yaml from the given directory.
func Load(dir string) (*types.ProjectConfig, error) {
	path := filepath.Join(dir, "askql.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg types.ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func validate(cfg *types.ProjectConfig) error {
	if cfg.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	switch cfg.Provider {
	case "redis":
		if cfg.Redis == nil {
			return fmt.Errorf("redis config is required when provider is redis")
		}
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required")
		}
	case "dynamodb":
		if cfg.DynamoDB == nil {
			return fmt.Errorf("dynamodb config is required when provider is dynamodb")
		}
		if cfg.DynamoDB.TableName == "" {
			return fmt.Errorf("dynamodb.tableName is required")
		}
	default:
		return fmt.Errorf("unknown provider %q", cfg.Provider)
	}

	if cfg.Postgres == nil || cfg.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required")
	}
	if cfg.Planner.BaseURL == "" {
		return fmt.Errorf("planner.baseUrl is required")
	}
	if cfg.Executor.BaseURL == "" {
		return fmt.Errorf("executor.baseUrl is required")
	}

	for name, val := range map[string]string{
		"planner.timeout":  cfg.Planner.Timeout,
		"executor.timeout": cfg.Executor.Timeout,
		"cache.ttl":        cfg.Cache.TTL,
	} {
		if val == "" {
			continue
		}
		if _, err := time.ParseDuration(val); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	return nil
}

// Duration parses a configured duration string, returning the fallback when
// the string is empty. The string is assumed validated by Load.
func Duration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
