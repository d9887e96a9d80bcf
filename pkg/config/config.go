package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/fsdelegate/internal/bytesize"
	"github.com/marmos91/fsdelegate/internal/logger"
	"github.com/marmos91/fsdelegate/internal/telemetry"
	"github.com/marmos91/fsdelegate/pkg/api"
	"github.com/marmos91/fsdelegate/pkg/delegate"
	"github.com/marmos91/fsdelegate/pkg/fs"
	"github.com/marmos91/fsdelegate/pkg/metrics"
	"github.com/marmos91/fsdelegate/pkg/ugi"
)

// Config represents the fsdelegate configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (FSDELEGATE_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging" json:"logging"`

	// Telemetry controls OpenTelemetry tracing and Pyroscope profiling
	Telemetry telemetry.Config `mapstructure:"telemetry" yaml:"telemetry" json:"telemetry"`

	// Metrics controls Prometheus metrics exposure on the API server
	Metrics metrics.Config `mapstructure:"metrics" yaml:"metrics" json:"metrics"`

	// API configures the HTTP server started by `fsdelegate serve`
	API api.Config `mapstructure:"api" yaml:"api" json:"api"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// Security is the process-wide identity configuration: authentication
	// mechanism, group mapping and Kerberos login.
	Security ugi.Config `mapstructure:"security" yaml:"security" json:"security"`

	// AuthParams selects the proxy identity: "proxyuser" names the service
	// user end users are impersonated through, "auth" its authentication
	// method. Without "proxyuser" the login user is the proxy.
	AuthParams map[string]string `mapstructure:"auth_params" yaml:"auth_params,omitempty" json:"auth_params,omitempty"`

	// FileSystem is the target filesystem and its options.
	FileSystem fs.Config `mapstructure:"filesystem" yaml:"filesystem" json:"filesystem"`

	// Retry bounds the retry of transient read failures.
	Retry delegate.RetryPolicy `mapstructure:"retry" yaml:"retry" json:"retry"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level" json:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format" json:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output" json:"output"`

	// Rotation applies when Output is a file path.
	Rotation RotationConfig `mapstructure:"rotation" yaml:"rotation,omitempty" json:"rotation,omitempty"`
}

// RotationConfig controls size-based rotation of file logs.
type RotationConfig struct {
	// MaxSize is the size a log file reaches before it is rotated.
	// Default: 100MiB
	MaxSize bytesize.ByteSize `mapstructure:"max_size" yaml:"max_size,omitempty" json:"max_size,omitempty"`

	// MaxBackups is the number of rotated files kept. Zero keeps all.
	MaxBackups int `mapstructure:"max_backups" validate:"gte=0" yaml:"max_backups,omitempty" json:"max_backups,omitempty"`

	// MaxAge is how long rotated files are kept. Zero keeps them forever.
	MaxAge time.Duration `mapstructure:"max_age" validate:"gte=0" yaml:"max_age,omitempty" json:"max_age,omitempty"`

	Compress bool `mapstructure:"compress" yaml:"compress,omitempty" json:"compress,omitempty"`
}

// LoggerConfig converts the logging section for logger.Init.
func (c LoggingConfig) LoggerConfig() logger.Config {
	mb := int(c.Rotation.MaxSize / bytesize.MiB)
	if c.Rotation.MaxSize > 0 && mb == 0 {
		mb = 1
	}
	days := int(c.Rotation.MaxAge / (24 * time.Hour))
	if c.Rotation.MaxAge > 0 && days == 0 {
		days = 1
	}
	return logger.Config{
		Level:  c.Level,
		Format: c.Format,
		Output: c.Output,
		Rotation: logger.RotationConfig{
			MaxSizeMB:  mb,
			MaxBackups: c.Rotation.MaxBackups,
			MaxAgeDays: days,
			Compress:   c.Rotation.Compress,
		},
	}
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (FSDELEGATE_*)
//  2. Configuration file
//  3. Default values
//
// An empty configPath searches the default location. A missing file is not
// an error: the default configuration is returned.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		return GetDefaultConfig(), nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages.
// It checks if the config file exists and provides user-friendly instructions if not.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  fsdelegate config init\n\n"+
				"Or specify a custom config file:\n"+
				"  fsdelegate <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Please create the configuration file:\n"+
			"  fsdelegate config init --config %s",
			configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// The file may hold the JWT secret, so it is owner-only.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: FSDELEGATE_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("FSDELEGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// $XDG_CONFIG_HOME/fsdelegate/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		// An explicit config file that doesn't exist surfaces as a PathError.
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings such as "1Gi" or "500Mi" and plain
// numbers to bytesize.ByteSize.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings such as "30s" or "5m" to
// time.Duration. Raw integers are nanoseconds.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns $XDG_CONFIG_HOME/fsdelegate, ~/.config/fsdelegate,
// or "." when the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "fsdelegate")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "fsdelegate")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
