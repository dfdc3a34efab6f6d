package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/askql-systems/askql/internal/config"
	"github.com/askql-systems/askql/internal/dedup"
	"github.com/askql-systems/askql/internal/metrics"
	"github.com/askql-systems/askql/internal/orchestrator"
	"github.com/askql-systems/askql/internal/planner"
	"github.com/askql-systems/askql/internal/provider/postgres"
	"github.com/askql-systems/askql/internal/provider/redis"
	"github.com/askql-systems/askql/internal/relay"
	"github.com/askql-systems/askql/internal/safety"
	"github.com/askql-systems/askql/internal/server"
	"github.com/askql-systems/askql/internal/warehouse"
	"github.com/askql-systems/askql/pkg/types"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the askql HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.Default()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// KV provider
	kv, err := newKVProvider(cfg)
	if err != nil {
		return fmt.Errorf("creating provider: %w", err)
	}
	if err := kv.Start(ctx); err != nil {
		return fmt.Errorf("connecting to %s: %w", cfg.Provider, err)
	}

	// Relational store
	pg, err := postgres.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("connecting to Postgres: %w", err)
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return fmt.Errorf("migrating Postgres: %w", err)
	}

	// Dedup cache, validator, external collaborators
	cache := dedup.New(kv, config.Duration(cfg.Cache.TTL, dedup.DefaultTTL))
	validator := safety.New(cfg.Safety.FidelityThreshold)
	plannerClient := planner.NewHTTPClient(cfg.Planner.BaseURL, config.Duration(cfg.Planner.Timeout, 30*time.Second))
	executor := warehouse.NewHTTPExecutor(cfg.Executor.BaseURL, config.Duration(cfg.Executor.Timeout, 60*time.Second))

	// Orchestrator with the ask pipeline
	orch := orchestrator.New(pg)
	orch.SetLogger(logger)
	pipeline := orchestrator.NewAskPipeline(plannerClient, executor, validator, cache, pg)
	pipeline.SetLogger(logger)
	orch.RegisterProcessor(orchestrator.AskJobType, pipeline.Handle, int64(cfg.Jobs.AskConcurrency))

	// Relay, locally or fanned out across instances via Redis Streams
	rel := relay.New()
	rel.SetLogger(logger)
	redisProv, _ := kv.(*redis.RedisProvider)
	if cfg.Relay.Fanout && redisProv != nil {
		orch.OnUpdate(func(u types.JobUpdate) {
			if err := redisProv.PublishJobUpdate(ctx, u); err != nil {
				logger.Error("failed to publish job update", "job", u.JobID, "error", err)
				return
			}
			metrics.FanoutPublished.Add(1)
		})
		go func() {
			err := redisProv.SubscribeJobUpdates(ctx, func(u types.JobUpdate) {
				metrics.FanoutSubscribed.Add(1)
				rel.SendUpdate(u.JobID, u)
			})
			if err != nil && ctx.Err() == nil {
				logger.Error("job update subscription ended", "error", err)
			}
		}()
	} else {
		orch.OnUpdate(func(u types.JobUpdate) { rel.SendUpdate(u.JobID, u) })
	}

	orch.Start(ctx)

	// Server
	addr := cfg.Server.Addr
	if addr == "" {
		addr = ":3000"
	}
	srv := server.New(addr, orch, pg, kv, cache, rel)
	srv.SetLogger(logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		color.Yellow("\nReceived %s, shutting down...", sig)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		cancel()
		orch.Stop()
		pg.Close()
		_ = kv.Stop(shutdownCtx)
		color.Green("Server stopped gracefully")
		return nil
	}
}
