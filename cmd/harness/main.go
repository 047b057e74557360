package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/harness/pkg/config"
	"github.com/platinummonkey/harness/pkg/dependencies"
	"github.com/platinummonkey/harness/pkg/harness"
	"github.com/platinummonkey/harness/pkg/httputil"
	"github.com/platinummonkey/harness/pkg/observability"
	"github.com/platinummonkey/harness/pkg/plugins"
	_ "github.com/platinummonkey/harness/pkg/plugins/builtin"
)

// Options holds the command line flags
type Options struct {
	ConfigPath string
	PluginDir  string
	AdminAddr  string
	LogLevel   string
	List       bool
	Info       string
	Graph      bool
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	settings, err := config.LoadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "harness: %v\n", err)
		return 2
	}
	applyFlags(settings, opts)

	sink := setupSink(settings)
	logger := sink.Base()

	store := config.NewStore(config.WithReserved(settings.Reserved...))
	settings.Seed(store)

	registry := plugins.NewRegistry(settings.PluginDirs, sink.Logger())

	if opts.Info != "" {
		return printInfo(registry, store, settings, opts.Info)
	}

	if settings.ConfigPath == "" {
		logger.Error("No configuration given, use -config or HARNESS_CONFIG")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	promRegistry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if settings.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(promRegistry)
	}
	loaderOpts := []harness.Option{
		harness.WithStore(store),
		harness.WithSink(sink),
		harness.WithMetrics(metrics),
	}

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        settings.Observability.OTelEnabled,
		Endpoint:       settings.Observability.OTelEndpoint,
		ServiceName:    settings.Observability.OTelServiceName,
		ServiceVersion: settings.Observability.OTelServiceVersion,
		Insecure:       settings.Observability.OTelInsecure,
		Program:        settings.Program,
		RunID:          sink.RunID(),
		SampleRatio:    settings.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		logger.WithError(err).Warn("Failed to initialize OpenTelemetry, continuing without it")
	}
	if providers != nil {
		otelMetrics, err := observability.NewOTelMetrics()
		if err != nil {
			logger.WithError(err).Warn("Failed to create OpenTelemetry instruments")
		} else {
			loaderOpts = append(loaderOpts, harness.WithOTelMetrics(otelMetrics))
		}
	}

	loader := harness.New(settings.Program, registry, loaderOpts...)

	if err := loader.Read(settings.ConfigPath); err != nil {
		logger.WithError(err).Error("Failed to read configuration")
		return 1
	}

	if opts.List {
		for _, k := range loader.Available() {
			fmt.Println(k)
		}
		return 0
	}

	if _, err := loader.LoadAll(); err != nil {
		logger.WithError(err).Error("Failed to load plugins")
		loader.Join()
		return 1
	}

	if opts.Graph {
		err := loader.Graph().WriteDOT(os.Stdout)
		loader.Join()
		if err != nil {
			logger.WithError(err).Error("Failed to write graph")
			return 1
		}
		return 0
	}

	server := startAdmin(settings, loader, metrics, promRegistry, logger)
	shutdown := observability.NewShutdownManager(logger, server, settings.Admin.ShutdownTimeout)
	if providers != nil {
		shutdown.RegisterShutdownFunc("otel", func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, providers, logger)
		})
	}

	if settings.WatchConfig {
		watchConfig(ctx, settings.ConfigPath, logger)
	}

	report, runErr := loader.Run(ctx)

	if report != nil {
		if err := report.WriteYAML(os.Stdout); err != nil {
			logger.WithError(err).Error("Failed to write report")
		}
	}
	if err := shutdown.Shutdown(context.Background()); err != nil {
		logger.WithError(err).Warn("Shutdown incomplete")
	}

	if runErr != nil {
		logger.WithError(runErr).Error("Harness run failed")
		return 1
	}
	return 0
}

func parseFlags() *Options {
	opts := &Options{}

	flag.StringVar(&opts.ConfigPath, "config", "", "Configuration file or directory (overrides HARNESS_CONFIG)")
	flag.StringVar(&opts.PluginDir, "plugin-dir", "", "Directory searched first for plugin shared objects")
	flag.StringVar(&opts.AdminAddr, "admin-addr", "", "Admin HTTP listen address, empty to disable (overrides HARNESS_ADMIN_ADDR)")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.BoolVar(&opts.List, "list", false, "Print the configured sections and exit")
	flag.StringVar(&opts.Info, "info", "", "Print the manifest of a plugin as YAML and exit")
	flag.BoolVar(&opts.Graph, "graph", false, "Load all plugins, print the dependency graph in DOT and exit")

	flag.Parse()

	return opts
}

func applyFlags(settings *config.Settings, opts *Options) {
	if opts.ConfigPath != "" {
		settings.ConfigPath = opts.ConfigPath
	}
	if opts.PluginDir != "" {
		settings.PluginDirs = append([]string{opts.PluginDir}, settings.PluginDirs...)
	}
	if opts.AdminAddr != "" {
		settings.Admin.Addr = opts.AdminAddr
	}
	if opts.LogLevel != "" {
		if level, err := logrus.ParseLevel(opts.LogLevel); err == nil {
			settings.Observability.LogLevel = level
		}
	}
}

// setupSink creates the run's log sink. Every line carries the run ID.
func setupSink(settings *config.Settings) *observability.Sink {
	return observability.NewSink(os.Stderr, settings.Observability.LogLevel, uuid.NewString())
}

func printInfo(registry *plugins.Registry, store *config.Store, settings *config.Settings, name string) int {
	library := name
	if settings.ConfigPath != "" {
		if err := store.Read(settings.ConfigPath); err == nil {
			if lib, err := store.Library(name); err == nil {
				library = lib
			}
		}
	}

	module, err := registry.Load(name, library)
	if err != nil {
		fmt.Fprintf(os.Stderr, "harness: %v\n", err)
		return 1
	}
	if err := plugins.WriteManifest(os.Stdout, module); err != nil {
		fmt.Fprintf(os.Stderr, "harness: %v\n", err)
		return 1
	}
	return 0
}

func startAdmin(settings *config.Settings, loader *harness.Loader, metrics *observability.Metrics, promRegistry *prometheus.Registry, logger *logrus.Entry) *http.Server {
	if settings.Admin.Addr == "" {
		return nil
	}

	router := mux.NewRouter()
	router.Use(
		httputil.RequestIDMiddleware,
		httputil.RecoveryMiddleware(logger),
		httputil.LoggingMiddleware(logger),
		observability.HTTPMetricsMiddleware(metrics),
	)
	if metrics != nil {
		observability.RegisterMetricsEndpoint(router, promRegistry)
	}

	checker := observability.NewHealthChecker(settings.Observability.OTelServiceVersion, loader.RunID())
	loader.RegisterHealthChecks(checker)
	observability.RegisterHealthRoutes(router, checker)

	loader.RegisterRoutes(router)
	dependencies.NewDependencyHandlers(loader.Graph()).RegisterRoutes(router)

	server := &http.Server{
		Addr:    settings.Admin.Addr,
		Handler: otelhttp.NewHandler(router, "harness-admin"),
	}

	go func() {
		logger.Infof("Admin endpoint listening on %s", settings.Admin.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Admin endpoint failed")
		}
	}()

	return server
}

func watchConfig(ctx context.Context, path string, logger *logrus.Entry) {
	err := config.Watch(ctx, path, logger, func(ctx context.Context, name string) error {
		logger.WithField("file", name).Warn("Configuration changed on disk, restart required to apply it")
		return nil
	})
	if err != nil {
		logger.WithError(err).Warn("Failed to watch configuration")
	}
}
