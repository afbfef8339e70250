package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/platinummonkey/storygate/pkg/config"
	"github.com/platinummonkey/storygate/pkg/observability"
	"github.com/platinummonkey/storygate/pkg/rbac"
	"github.com/platinummonkey/storygate/pkg/seed"
	"github.com/platinummonkey/storygate/pkg/storage"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	// Parse command line flags
	file := flag.String("file", cfg.Authz.RoleSeedFile, "YAML role seed file to watch, or s3://bucket/key")
	schedule := flag.String("schedule", cfg.Authz.RoleSeedSchedule, "Cron spec for periodic reconciliation")
	once := flag.Bool("once", false, "Reconcile once and exit")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.Observability.LogLevel.String()); err == nil {
		log.SetLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, dialect, err := storage.OpenDatabase(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stderr)
	if err := rbac.RunMigrations(ctx, db, dialect, logger); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	var objects seed.ObjectGetter
	if seed.IsS3URL(*file) {
		client, err := storage.NewS3Client(ctx, cfg.S3)
		if err != nil {
			log.Fatalf("Failed to create S3 client: %v", err)
		}
		objects = client
	}
	source, err := seed.SourceFor(*file, objects)
	if err != nil {
		log.Fatalf("Invalid seed location: %v", err)
	}
	reconciler := seed.NewReconcilerFromSource(rbac.NewStore(db), source, logger, nil)

	result, err := reconciler.Run(ctx, seed.TriggerStartup)
	if err != nil {
		log.Fatalf("Initial reconciliation failed: %v", err)
	}
	log.WithFields(logrus.Fields{
		"created": result.Created,
		"updated": result.Updated,
	}).Info("Initial reconciliation complete")

	if *once {
		return
	}

	if *schedule != "" {
		scheduler, err := reconciler.Schedule(*schedule)
		if err != nil {
			log.Fatalf("Failed to schedule reconciliation: %v", err)
		}
		defer scheduler.Stop()
	}

	if _, ok := source.(seed.FileSource); !ok {
		log.WithField("source", source).Info("Seed source cannot be watched, reconciling on schedule only")
		<-ctx.Done()
		return
	}

	log.WithField("file", *file).Info("Started watching role seed file")
	if err := reconciler.Watch(ctx); err != nil {
		log.Errorf("Watcher stopped: %v", err)
	}
	log.Info("Seeder stopped")
}
