// Package app holds the rubricscore subcommands.
package app

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jh125486/rubricscore/pkg/cli"
	"github.com/jh125486/rubricscore/pkg/contextlog"
	mw "github.com/jh125486/rubricscore/pkg/middleware"
	"github.com/jh125486/rubricscore/pkg/server"
	"github.com/jh125486/rubricscore/pkg/storage"
)

// ServeCmd runs the rubric server.
//
//nolint:lll // Long struct tags
type ServeCmd struct {
	Port           string        `default:"8080"              env:"PORT"                        help:"Port to listen on"                  name:"port"`
	GraderToken    string        `env:"GRADER_TOKEN"          help:"Bearer token allowed to edit" name:"grader-token" required:""`
	ViewerToken    string        `env:"VIEWER_TOKEN"          help:"Bearer token allowed to read" name:"viewer-token"`
	DatabaseURL    string        `env:"DATABASE_URL"          help:"PostgreSQL database URL"      name:"database-url"`
	R2Endpoint     string        `env:"R2_ENDPOINT"           help:"R2/S3 endpoint URL"           name:"r2-endpoint"`
	R2Region       string        `default:"auto"              env:"AWS_REGION"                  help:"AWS region"                         name:"r2-region"`
	R2Bucket       string        `env:"R2_BUCKET"             help:"R2/S3 bucket name"            name:"r2-bucket"`
	R2AccessKey    string        `env:"AWS_ACCESS_KEY_ID"     help:"AWS access key ID"            name:"r2-access-key"`
	R2SecretKey    string        `env:"AWS_SECRET_ACCESS_KEY" help:"AWS secret access key"        name:"r2-secret-key"`
	R2UsePathStyle bool          `env:"USE_PATH_STYLE"        help:"Use path-style S3 URLs"       name:"r2-path-style"`
	RedisURL       string        `env:"REDIS_URL"             help:"Redis URL for the rubric cache" name:"redis-url"`
	CacheTTL       time.Duration `default:"10m"               env:"CACHE_TTL"                   help:"How long cached rubrics live"       name:"cache-ttl"`

	Storage storage.Storage `kong:"-"`
}

// AfterApply is a Kong hook that initializes storage.
// PostgreSQL wins over R2; with neither configured results live in memory.
func (cmd *ServeCmd) AfterApply(ctx cli.Context) error {
	logger := contextlog.From(ctx)

	var (
		backing storage.Storage
		err     error
	)
	switch {
	case cmd.DatabaseURL != "":
		backing, err = storage.NewSQLStorage(ctx, cmd.DatabaseURL)
	case cmd.R2Endpoint != "":
		backing, err = storage.NewR2Storage(ctx, &storage.R2Config{
			Endpoint:        cmd.R2Endpoint,
			Region:          cmd.R2Region,
			Bucket:          cmd.R2Bucket,
			AccessKeyID:     cmd.R2AccessKey,
			SecretAccessKey: cmd.R2SecretKey,
			UsePathStyle:    cmd.R2UsePathStyle,
		})
	default:
		logger.WarnContext(ctx, "No storage configured, results will not survive a restart")
		backing = storage.NewMemoryStorage()
	}
	if err != nil {
		return err
	}

	if cmd.RedisURL == "" {
		cmd.Storage = backing
		return nil
	}

	opts, err := redis.ParseURL(cmd.RedisURL)
	if err != nil {
		return errors.Join(fmt.Errorf("invalid redis url: %w", err), backing.Close())
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return errors.Join(fmt.Errorf("failed to ping redis: %w", err), rdb.Close(), backing.Close())
	}
	logger.InfoContext(ctx, "Caching rubrics in Redis",
		slog.String("addr", opts.Addr),
		slog.Duration("ttl", cmd.CacheTTL),
	)
	cmd.Storage = storage.NewRedisCache(backing, rdb, cmd.CacheTTL)
	return nil
}

// Run executes the server command.
func (cmd *ServeCmd) Run(ctx cli.Context, version cli.Version) error {
	if cmd.Storage == nil {
		return errors.New("storage not initialized")
	}
	defer func() {
		if err := cmd.Storage.Close(); err != nil {
			contextlog.From(ctx).ErrorContext(ctx, "Failed to close storage", slog.Any("error", err))
		}
	}()

	port := cmd.Port
	if port == "" {
		port = "8080"
	}
	return server.Start(ctx, server.Config{
		Tokens:  mw.Tokens{Grader: cmd.GraderToken, Viewer: cmd.ViewerToken},
		Version: string(version),
		Port:    port,
		Storage: cmd.Storage,
	})
}
