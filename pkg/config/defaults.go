package config

import (
	"strings"
	"time"

	"github.com/marmos91/fsdelegate/internal/bytesize"
	"github.com/marmos91/fsdelegate/internal/telemetry"
	"github.com/marmos91/fsdelegate/pkg/delegate"
	"github.com/marmos91/fsdelegate/pkg/fs"
	"github.com/marmos91/fsdelegate/pkg/metrics"
	"github.com/marmos91/fsdelegate/pkg/ugi"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	cfg.API.ApplyDefaults()
	applyShutdownTimeoutDefaults(cfg)
	applySecurityDefaults(&cfg.Security)
	applyFileSystemDefaults(&cfg.FileSystem)
	applyRetryDefaults(&cfg.Retry)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
	if cfg.Rotation.MaxSize == 0 {
		cfg.Rotation.MaxSize = 100 * bytesize.MiB
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *telemetry.Config) {
	defaults := telemetry.DefaultConfig()

	// Enabled defaults to false (opt-in for telemetry)
	if cfg.ServiceName == "" {
		cfg.ServiceName = defaults.ServiceName
	}
	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = defaults.ServiceVersion
	}
	// Default endpoint is localhost:4317 (standard OTLP gRPC port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaults.Endpoint
	}
	// Default sample rate is 1.0 (sample all traces)
	if cfg.SampleRate == 0 {
		cfg.SampleRate = defaults.SampleRate
	}

	applyProfilingDefaults(&cfg.Profiling, defaults.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *telemetry.ProfilingConfig, defaults telemetry.ProfilingConfig) {
	// Default endpoint is localhost:4040 (standard Pyroscope port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaults.Endpoint
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = defaults.ProfileTypes
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *metrics.Config) {
	// Enabled defaults to false (opt-in for metrics)
	if cfg.Path == "" {
		cfg.Path = "/metrics"
	}
}

// applyShutdownTimeoutDefaults sets the graceful shutdown timeout.
func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applySecurityDefaults(cfg *ugi.Config) {
	if cfg.Authentication == "" {
		cfg.Authentication = "simple"
	}
	cfg.Authentication = strings.ToLower(cfg.Authentication)
	if cfg.GroupMapping.Type == "" {
		cfg.GroupMapping.Type = "os"
	}
	if cfg.Kerberos.Krb5Conf == "" && cfg.Authentication == "kerberos" {
		cfg.Kerberos.Krb5Conf = "/etc/krb5.conf"
	}
}

// applyFileSystemDefaults targets an in-memory volume named "default" when
// no filesystem is configured.
func applyFileSystemDefaults(cfg *fs.Config) {
	if cfg.Type == "" {
		cfg.Type = "memory"
		if cfg.Options == nil {
			cfg.Options = map[string]any{"auto_create_home": true}
		}
	}
	if cfg.Name == "" {
		cfg.Name = "default"
	}
}

// applyRetryDefaults keeps the transient read retry at three attempts one
// second apart.
func applyRetryDefaults(cfg *delegate.RetryPolicy) {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = delegate.DefaultMaxAttempts
	}
	if cfg.Backoff == 0 {
		cfg.Backoff = delegate.DefaultBackoff
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
