// Package observability provides the harness's shared log sink, Prometheus
// metrics, OpenTelemetry tracing, and health checks.
//
// # Log sink
//
// One Sink per harness run wraps a logrus logger. Plugins get entries
// carrying run_id, plugin and key fields:
//
//	sink := observability.NewSink(os.Stdout, logrus.InfoLevel, runID)
//	log := sink.Entry("magic", "")
//	log.Info("started")
//
// SetOutput swaps the destination under the sink's lock, so the logger
// plugin can redirect output while start hooks are logging.
//
// # Prometheus Metrics
//
//	metrics := observability.NewMetrics(registry)
//	metrics.Transition("magic", "loaded", "initialized")
//	metrics.ObserveInit("magic", time.Since(begin), err)
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(version, runID)
//	checker.AddCheck("magic", check)
//	observability.RegisterHealthRoutes(router, checker)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, cfg, log)
//	defer observability.ShutdownOTel(ctx, providers, log)
//	ctx, span := observability.Tracer().Start(ctx, "harness.load")
//
// # Related Packages
//
//   - pkg/config: Observability settings
//   - pkg/harness: Records lifecycle metrics and spans
package observability
