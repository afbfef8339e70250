package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/platinummonkey/storygate/pkg/api"
	"github.com/platinummonkey/storygate/pkg/auth"
	"github.com/platinummonkey/storygate/pkg/config"
	"github.com/platinummonkey/storygate/pkg/login"
	"github.com/platinummonkey/storygate/pkg/middleware"
	"github.com/platinummonkey/storygate/pkg/observability"
	"github.com/platinummonkey/storygate/pkg/rbac"
	"github.com/platinummonkey/storygate/pkg/seed"
	"github.com/platinummonkey/storygate/pkg/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "storygate: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).
		WithField("service", cfg.Observability.OTelServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := observability.InitOTel(ctx, cfg.OTel(), logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = observability.ShutdownOTel(shutdownCtx, providers, logger)
	}()

	// Role database
	db, dialect, err := storage.OpenDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := rbac.RunMigrations(ctx, db, dialect, logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Sessions and rate limits
	redisClient, err := storage.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	store := rbac.NewStore(db)
	identities := rbac.NewCachedIdentityProvider(store, cfg.Authz.IdentityCacheSize, cfg.Authz.IdentityCacheTTL, metrics)

	source, err := seedSource(ctx, cfg)
	if err != nil {
		return err
	}
	reconciler := seed.NewReconcilerFromSource(store, source, logger, metrics)
	if cache, ok := identities.(*rbac.CachedIdentityProvider); ok {
		reconciler.OnChange(cache.Purge)
	}
	if _, err := reconciler.Run(ctx, seed.TriggerStartup); err != nil {
		return fmt.Errorf("failed to reconcile roles: %w", err)
	}
	if cfg.Authz.RoleSeedSchedule != "" {
		scheduler, err := reconciler.Schedule(cfg.Authz.RoleSeedSchedule)
		if err != nil {
			return err
		}
		defer func() { <-scheduler.Stop().Done() }()
	}

	var oidcLogin login.IdentityExchanger
	if cfg.OIDC.Enabled() {
		provider, err := login.NewOIDCProvider(ctx, cfg.OIDC)
		if err != nil {
			return err
		}
		oidcLogin = provider
	}

	server := api.NewServer(api.Options{
		Store:      store,
		Identities: identities,
		Sessions:   auth.NewSessionStore(redisClient, ""),
		SessionTTL: cfg.Authz.SessionTTL,
		OIDC:       oidcLogin,
		Redis:      redisClient,
		UserRateLimit: &middleware.RateLimitConfig{
			RequestsPerWindow: cfg.Authz.UserRateLimit,
			WindowDuration:    time.Minute,
		},
		AnonymousRateLimit: &middleware.RateLimitConfig{
			RequestsPerWindow: cfg.Authz.AnonymousRateLimit,
			WindowDuration:    time.Minute,
		},
		Logger:  logger,
		Metrics: metrics,
		Tracing: cfg.Observability.OTelEnabled,
	})

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate port for probes
	opsMux := http.NewServeMux()
	observability.RegisterHealthRoutes(opsMux, observability.NewHealthChecker(db, redisClient, cfg.Observability.OTelServiceVersion))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(opsMux, registry)
	}
	opsServer := &http.Server{
		Addr:        net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:     opsMux,
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	for _, srv := range []*http.Server{apiServer, opsServer} {
		g.Go(func() error {
			logger.WithField("address", srv.Addr).Info("server starting")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server %s: %w", srv.Addr, err)
			}
			return nil
		})
	}

	if cfg.Authz.RoleSeedWatch {
		g.Go(func() error {
			return reconciler.Watch(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		return errors.Join(apiServer.Shutdown(shutdownCtx), opsServer.Shutdown(shutdownCtx))
	})

	return g.Wait()
}

// seedSource resolves the role seed location, building an S3 client only
// for s3:// locations
func seedSource(ctx context.Context, cfg *config.Config) (seed.Source, error) {
	var objects seed.ObjectGetter
	if seed.IsS3URL(cfg.Authz.RoleSeedFile) {
		client, err := storage.NewS3Client(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		objects = client
	}
	return seed.SourceFor(cfg.Authz.RoleSeedFile, objects)
}
