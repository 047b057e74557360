package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Settings holds the harness bootstrap configuration. It is read from the
// environment and may be overridden by command line flags.
type Settings struct {
	// Program is the program identity, used for log file names
	Program string

	// ConfigPath is the configuration file or directory to read
	ConfigPath string

	// PluginDirs is the search path for shared object plugins
	PluginDirs []string

	// Reserved words that may not be used as section or option names
	Reserved []string

	// WatchConfig logs a warning when the configuration changes on disk
	WatchConfig bool

	// Admin HTTP endpoint settings
	Admin AdminConfig

	// Observability settings
	Observability ObservabilityConfig
}

// AdminConfig holds the admin HTTP listener configuration
type AdminConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel logrus.Level

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
	OTelSampleRatio    float64
}

// LoadSettings loads bootstrap settings from environment variables
func LoadSettings() (*Settings, error) {
	program := getEnv("HARNESS_PROGRAM", filepath.Base(os.Args[0]))

	s := &Settings{
		Program:       program,
		ConfigPath:    getEnv("HARNESS_CONFIG", ""),
		PluginDirs:    getEnvList("HARNESS_PLUGIN_DIRS", nil),
		Reserved:      getEnvList("HARNESS_RESERVED_WORDS", nil),
		WatchConfig:   getEnvBool("HARNESS_WATCH_CONFIG", false),
		Admin:         loadAdminConfig(),
		Observability: loadObservabilityConfig(program),
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return s, nil
}

// loadAdminConfig loads admin endpoint configuration from environment
func loadAdminConfig() AdminConfig {
	return AdminConfig{
		Addr:            getEnv("HARNESS_ADMIN_ADDR", ""),
		ShutdownTimeout: getEnvDuration("HARNESS_ADMIN_SHUTDOWN_TIMEOUT", 5*time.Second),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig(program string) ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("HARNESS_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("HARNESS_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("HARNESS_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("HARNESS_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("HARNESS_OTEL_SERVICE_NAME", program),
		OTelServiceVersion: getEnv("HARNESS_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("HARNESS_OTEL_INSECURE", true),
		OTelSampleRatio:    getEnvFloat("HARNESS_OTEL_SAMPLE_RATIO", 1),
	}
}

// Validate checks if the settings are valid
func (s *Settings) Validate() error {
	if s.Program == "" {
		return fmt.Errorf("program name is required")
	}
	if strings.ContainsAny(s.Program, `/\`) {
		return fmt.Errorf("program name must not contain path separators: %s", s.Program)
	}

	for _, dir := range s.PluginDirs {
		if dir == "" {
			return fmt.Errorf("plugin directory entries must not be empty")
		}
	}

	if s.Admin.Addr != "" && s.Admin.ShutdownTimeout <= 0 {
		return fmt.Errorf("admin shutdown timeout must be positive")
	}

	// Validate OpenTelemetry config
	if s.Observability.OTelEnabled {
		if s.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if s.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// Seed copies the folder settings into the DEFAULT section of store
func (s *Settings) Seed(store *Store) {
	store.SetDefault("program", s.Program)
	if len(s.PluginDirs) > 0 {
		store.SetDefault("plugin_folder", s.PluginDirs[0])
	}
}

// parseLogLevel parses a log level string, falling back to info
func parseLogLevel(level string) logrus.Level {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel
	}
	return parsed
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvList returns a list from a path-list-separated environment variable
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var result []string
	for _, item := range filepath.SplitList(value) {
		if item = strings.TrimSpace(item); item != "" {
			result = append(result, item)
		}
	}
	return result
}
