// Package commands implements the CLI subcommands for the askql binary.
package commands

import (
	"context"
	"fmt"

	"github.com/askql-systems/askql/internal/provider"
	ddbprov "github.com/askql-systems/askql/internal/provider/dynamodb"
	"github.com/askql-systems/askql/internal/provider/redis"
	"github.com/askql-systems/askql/pkg/types"
)

// kvProvider is a KV backend with a connection lifecycle.
type kvProvider interface {
	provider.KV
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// newKVProvider creates the configured key-value provider.
func newKVProvider(cfg *types.ProjectConfig) (kvProvider, error) {
	switch cfg.Provider {
	case "redis":
		if cfg.Redis == nil {
			return nil, fmt.Errorf("redis config is required when provider is redis")
		}
		return redis.New(cfg.Redis), nil
	case "dynamodb":
		if cfg.DynamoDB == nil {
			return nil, fmt.Errorf("dynamodb config is required when provider is dynamodb")
		}
		return ddbprov.New(cfg.DynamoDB)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}
