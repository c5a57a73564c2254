// Package observability provides structured logging, Prometheus metrics, health checks,
// graceful shutdown and OpenTelemetry tracing for the portal.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("client_id", id).Info("profile linked")
//
// Handlers use the request-scoped logger installed by the logging middleware:
//
//	observability.FromContext(r.Context()).WithError(err).Error("create client failed")
//
// # Prometheus Metrics
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	router.Use(observability.HTTPMetricsMiddleware(metrics))
//	router.Handle("/metrics", metrics.Handler())
//
// *Metrics also satisfies the recorder interfaces of the reconcile, access,
// auth and policies packages.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	checker.AddProbe("object_storage", documents.Ping)
//	observability.RegisterHealthRoutes(router, checker)
//
// # OpenTelemetry
//
//	tp, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "portal",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, tp, logger)
package observability
