// Package config defines the daemon's command-line/environment surface
// (C10), built on urfave/cli/v2 — the same flag library the rest of the
// example pack's CLI-driven services use.
package config

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// Engine selects which kvstore.Store backend the registry is opened over.
type Engine string

const (
	EngineBadger Engine = "badger"
	EnginePostgres Engine = "postgres"
	EngineMemory Engine = "memory"
)

// Config is the fully-resolved daemon configuration.
type Config struct {
	Addr           string
	Engine         Engine
	DataDir        string
	PostgresURL    string
	RedisURL       string
	Development    bool
	SnapshotBucket string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
}

// Flags returns the urfave/cli flag set backing Config's fields.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "addr", Value: ":8080", Usage: "HTTP listen address", EnvVars: []string{"SMTD_ADDR"}},
		&cli.StringFlag{Name: "engine", Value: "badger", Usage: "storage engine: badger|postgres|memory", EnvVars: []string{"SMTD_ENGINE"}},
		&cli.StringFlag{Name: "data-dir", Value: "./data", Usage: "badger data directory", EnvVars: []string{"SMTD_DATA_DIR"}},
		&cli.StringFlag{Name: "postgres-url", Usage: "Postgres connection string (engine=postgres)", EnvVars: []string{"DATABASE_URL"}},
		&cli.StringFlag{Name: "redis-url", Usage: "Redis address for rate limiting; rate limiting disabled if empty", EnvVars: []string{"REDIS_URL"}},
		&cli.BoolFlag{Name: "dev", Usage: "human-readable logging instead of JSON"},
		&cli.StringFlag{Name: "snapshot-bucket", Usage: "S3/MinIO bucket for namespace snapshots", EnvVars: []string{"SMTD_SNAPSHOT_BUCKET"}},
		&cli.StringFlag{Name: "s3-endpoint", Usage: "S3/MinIO endpoint for namespace snapshots", EnvVars: []string{"SMTD_S3_ENDPOINT"}},
		&cli.StringFlag{Name: "s3-access-key", EnvVars: []string{"SMTD_S3_ACCESS_KEY"}},
		&cli.StringFlag{Name: "s3-secret-key", EnvVars: []string{"SMTD_S3_SECRET_KEY"}},
	}
}

// FromContext resolves a Config from a parsed cli.Context.
func FromContext(c *cli.Context) (Config, error) {
	cfg := Config{
		Addr:           c.String("addr"),
		Engine:         Engine(c.String("engine")),
		DataDir:        c.String("data-dir"),
		PostgresURL:    c.String("postgres-url"),
		RedisURL:       c.String("redis-url"),
		Development:    c.Bool("dev"),
		SnapshotBucket: c.String("snapshot-bucket"),
		S3Endpoint:     c.String("s3-endpoint"),
		S3AccessKey:    c.String("s3-access-key"),
		S3SecretKey:    c.String("s3-secret-key"),
	}

	switch cfg.Engine {
	case EngineBadger, EnginePostgres, EngineMemory:
	default:
		return Config{}, fmt.Errorf("config: unrecognized engine %q", cfg.Engine)
	}
	if cfg.Engine == EnginePostgres && cfg.PostgresURL == "" {
		return Config{}, fmt.Errorf("config: engine=postgres requires --postgres-url")
	}

	return cfg, nil
}
