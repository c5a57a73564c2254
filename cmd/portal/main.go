package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/access"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/api"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/async"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/auth"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/config"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/identity"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/middleware"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/notify"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/observability"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/policies"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/reconcile"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/storage/objects"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/storage/postgres"
)

var (
	migrate      = flag.Bool("migrate", false, "Apply database migrations before serving")
	ensureBucket = flag.Bool("ensure-bucket", false, "Create the document bucket if it does not exist")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.Level(), os.Stdout).WithComponent("portal")
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("Portal stopped with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	db, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	if *migrate {
		if err := postgres.Migrate(ctx, db, logger.WithComponent("migrations")); err != nil {
			db.Close()
			return err
		}
	}
	store := postgres.NewStore(db)
	logger.Info("Connected to database")

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
		metrics.RegisterDBStats(db)
	}

	bucket, err := objects.NewS3Client(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	if *ensureBucket {
		if err := bucket.EnsureBucket(ctx); err != nil {
			return err
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("invalid redis URL: %w", err)
		}
		if cfg.Redis.Password != "" {
			opts.Password = cfg.Redis.Password
		}
		if cfg.Redis.DB != 0 {
			opts.DB = cfg.Redis.DB
		}
		redisClient = redis.NewClient(opts)
	}

	httpClient := observability.TraceHTTPClient(cfg.Backend.RequestTimeout)
	directory := identity.NewClient(cfg.Backend.URL, cfg.Backend.ServiceKey,
		identity.WithHTTPClient(httpClient),
		identity.WithPageSize(cfg.Backend.AccountPageSize),
		identity.WithRecorder(metrics),
	)
	provisionerOpts := []access.Option{access.WithRecorder(metrics)}
	if cfg.Backend.NotificationFunction != "" {
		provisionerOpts = append(provisionerOpts, access.WithNotifier(notify.NewClient(
			cfg.Backend.URL, cfg.Backend.ServiceKey, cfg.Backend.NotificationFunction, cfg.Backend.LoginURL, httpClient)))
	}
	provisioner := access.NewProvisioner(directory, store, logger.WithComponent("access"), provisionerOpts...)
	reconciler := reconcile.NewReconciler(directory, store, provisioner, metrics, logger.WithComponent("reconcile"))

	verifier, err := auth.NewJWKSVerifier(ctx, auth.VerifierConfig{
		Issuer:     cfg.Backend.Issuer(),
		JWKSURL:    cfg.Backend.JWKSURL(),
		Audience:   cfg.Auth.Audience,
		HTTPClient: httpClient,
	})
	if err != nil {
		return err
	}
	profiles := auth.NewProfileResolver(store, cfg.Auth.ProfileCacheSize, cfg.Auth.ProfileCacheTTL, metrics)
	audit := auth.NewAuditLogger(logger)

	limitCfg := &middleware.RateLimitConfig{
		RequestsPerWindow: cfg.Redis.RateLimit,
		WindowDuration:    cfg.Redis.RateLimitWindow,
		BurstSize:         middleware.DefaultRateLimitConfig().BurstSize,
	}
	var limiter middleware.Limiter
	if redisClient != nil {
		limiter = middleware.NewRedisRateLimiter(redisClient, limitCfg, "")
	} else {
		local := middleware.NewRateLimiter(limitCfg)
		local.StartCleanup(ctx)
		limiter = local
	}

	health := observability.NewHealthChecker(db, redisClient, cfg.Observability.OTelServiceVersion)
	health.AddProbe("storage", bucket.HealthCheck)

	expiry := policies.NewExpiryJob(store, metrics, logger.WithComponent("expiry"))
	if cfg.Jobs.ExpiryOnStart {
		async.SafeGo(ctx, policies.DefaultRunTimeout, logger, "startup expiry pass", func(ctx context.Context) error {
			_, err := expiry.RunOnce(ctx)
			return err
		})
	}
	if cfg.Jobs.ExpiryEnabled {
		if err := expiry.Start(cfg.Jobs.ExpirySchedule); err != nil {
			return err
		}
	}

	server := api.NewServer(api.Dependencies{
		Store:          store,
		Objects:        bucket,
		Reconciler:     reconciler,
		Provisioner:    provisioner,
		Auth:           middleware.NewAuthMiddleware(verifier, profiles, audit, true),
		RateLimit:      middleware.NewRateLimitMiddleware(limiter, metrics),
		Audit:          audit,
		Metrics:        metrics,
		Health:         health,
		Logger:         logger,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		PresignTTL:     bucket.PresignTTL(),
		CORSOrigins:    cfg.Server.CORSOrigins,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      observability.TraceHandler(server, "portal-api"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc("database", func(context.Context) error { return store.Close() })
	if redisClient != nil {
		shutdown.RegisterShutdownFunc("redis", func(context.Context) error { return redisClient.Close() })
	}
	shutdown.RegisterShutdownFunc("tracer", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, tp, logger)
	})
	shutdown.RegisterShutdownFunc("expiry job", func(context.Context) error {
		expiry.Stop()
		return nil
	})

	go func() {
		logger.Infof("Starting portal API on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("HTTP server failed")
			cancel()
		}
	}()

	return shutdown.WaitForShutdown(ctx)
}
