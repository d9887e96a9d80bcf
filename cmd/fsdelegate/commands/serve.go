package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/fsdelegate/internal/logger"
	"github.com/marmos91/fsdelegate/internal/telemetry"
	"github.com/marmos91/fsdelegate/pkg/api"
	"github.com/marmos91/fsdelegate/pkg/delegate"
	"github.com/marmos91/fsdelegate/pkg/metrics"
	prommetrics "github.com/marmos91/fsdelegate/pkg/metrics/prometheus"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API. Callers authenticate with a bearer token issued by
"fsdelegate token issue" (or with pseudo credentials when api.allow_pseudo
is set) and every request runs as the authenticated user.

Examples:
  # Start with the default config location
  fsdelegate serve

  # Start with environment variable overrides
  FSDELEGATE_LOGGING_LEVEL=DEBUG fsdelegate serve --config /etc/fsdelegate/config.yaml`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Listen port (overrides api.port)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.API.Port = servePort
	}
	if !cfg.API.IsEnabled() {
		return fmt.Errorf("the API is disabled (api.enabled: false)")
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	if cfg.Telemetry.ServiceVersion == "" || cfg.Telemetry.ServiceVersion == "dev" {
		cfg.Telemetry.ServiceVersion = Version
	}
	telemetryShutdown, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := telemetryShutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", logger.KeyError, err)
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(cfg.Telemetry.Profiling)
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.KeyError, err)
		}
	}()

	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("Telemetry disabled")
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint)
	}

	var (
		apiMetrics      api.Metrics
		delegateMetrics delegate.Metrics
	)
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		apiMetrics = prommetrics.NewAPIMetrics()
		delegateMetrics = prommetrics.NewDelegateMetrics()
		logger.Info("Metrics enabled", "path", cfg.Metrics.Path)
	} else {
		logger.Info("Metrics collection disabled")
	}

	server, err := api.NewServer(cfg.API, api.ServerOptions{
		Open: func(ctx context.Context, username string) (*delegate.Session, error) {
			return cfg.OpenSession(ctx, username, delegateMetrics)
		},
		Metrics:     apiMetrics,
		MetricsPath: cfg.Metrics.Path,
		Version:     Version,
		FSType:      cfg.FileSystem.Type,
	})
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}

	logger.Info("Serving filesystem",
		"filesystem", cfg.FileSystem.Type+"://"+cfg.FileSystem.Name,
		"authentication", cfg.Security.Authentication,
		"pseudo", cfg.API.AllowPseudo)

	if err := server.Start(ctx); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}
