// Command smtd runs the multi-tenant sparse Merkle tree registry as an HTTP
// daemon: pick a storage engine, open the registry, and serve the contract
// in SPEC_FULL.md §6 until interrupted.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/farcloud-labs/subsmt/internal/config"
	"github.com/farcloud-labs/subsmt/internal/kvstore"
	"github.com/farcloud-labs/subsmt/internal/kvstore/badgerstore"
	"github.com/farcloud-labs/subsmt/internal/kvstore/memstore"
	"github.com/farcloud-labs/subsmt/internal/kvstore/pqstore"
	"github.com/farcloud-labs/subsmt/internal/logging"
	"github.com/farcloud-labs/subsmt/internal/ratelimit"
	"github.com/farcloud-labs/subsmt/internal/registry"
	"github.com/farcloud-labs/subsmt/internal/snapshot"
	"github.com/farcloud-labs/subsmt/internal/transport"
)

func main() {
	app := &cli.App{
		Name:  "smtd",
		Usage: "multi-tenant sparse Merkle tree registry",
		Flags: config.Flags(),
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.FromContext(c)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Development)
	if err != nil {
		return fmt.Errorf("smtd: init logger: %w", err)
	}
	defer logger.Sync()

	kv, err := openEngine(cfg, logger)
	if err != nil {
		return fmt.Errorf("smtd: open storage engine: %w", err)
	}
	defer kv.Close()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		defer redisClient.Close()
	}
	limiter := ratelimit.NewLimiter(redisClient, logger)

	var exporter *snapshot.Exporter
	if cfg.SnapshotBucket != "" {
		exporter, err = snapshot.New(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.SnapshotBucket, false, kv)
		if err != nil {
			return fmt.Errorf("smtd: init snapshot exporter: %w", err)
		}
	}

	reg := registry.Open(kv)
	srv := transport.New(reg, limiter, exporter, logger)

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.String("engine", string(cfg.Engine)))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("smtd: graceful shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

func openEngine(cfg config.Config, logger *zap.Logger) (kvstore.Store, error) {
	switch cfg.Engine {
	case config.EngineBadger:
		return badgerstore.Open(cfg.DataDir, logger)
	case config.EnginePostgres:
		return pqstore.Open(cfg.PostgresURL)
	case config.EngineMemory:
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unrecognized engine %q", cfg.Engine)
	}
}
