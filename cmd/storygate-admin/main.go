package main

import (
	"context"
	"fmt"
	"os"

	"github.com/platinummonkey/storygate/pkg/auth"
	"github.com/platinummonkey/storygate/pkg/cli"
	"github.com/platinummonkey/storygate/pkg/config"
	"github.com/platinummonkey/storygate/pkg/observability"
	"github.com/platinummonkey/storygate/pkg/storage"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()

	db, dialect, err := storage.OpenDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient, err := storage.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	env := &cli.Env{
		DB:         db,
		Dialect:    dialect,
		Sessions:   auth.NewSessionStore(redisClient, ""),
		SessionTTL: cfg.Authz.SessionTTL,
		SeedFile:   cfg.Authz.RoleSeedFile,
		Logger:     observability.NewLogger(cfg.Observability.LogLevel, os.Stderr),
		Out:        os.Stdout,
	}
	if cfg.S3.Region != "" {
		client, err := storage.NewS3Client(ctx, cfg.S3)
		if err != nil {
			return err
		}
		env.S3 = client
	}

	// Execute command
	rootCmd := cli.NewRootCommand(env)
	return rootCmd.Execute(args, os.Stdout)
}
