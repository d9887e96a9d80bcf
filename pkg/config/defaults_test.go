package config

import (
	"testing"
	"time"

	"github.com/marmos91/fsdelegate/pkg/api"
	"github.com/marmos91/fsdelegate/pkg/delegate"
	"github.com/marmos91/fsdelegate/pkg/fs"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_ShutdownTimeout(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.ShutdownTimeout)
	}
}

func TestApplyDefaults_API(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.API.Port != 8080 {
		t.Errorf("Expected default API port 8080, got %d", cfg.API.Port)
	}
	if cfg.API.ReadTimeout != 30*time.Second {
		t.Errorf("Expected default read timeout 30s, got %v", cfg.API.ReadTimeout)
	}
	if cfg.API.WriteTimeout != 60*time.Second {
		t.Errorf("Expected default write timeout 60s, got %v", cfg.API.WriteTimeout)
	}
	if cfg.API.IdleTimeout != 120*time.Second {
		t.Errorf("Expected default idle timeout 120s, got %v", cfg.API.IdleTimeout)
	}
	if cfg.API.JWT.TTL != time.Hour {
		t.Errorf("Expected default token TTL 1h, got %v", cfg.API.JWT.TTL)
	}
	if !cfg.API.IsEnabled() {
		t.Error("Expected API to be enabled by default")
	}
}

func TestApplyDefaults_Metrics(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Metrics.Enabled {
		t.Error("Expected metrics to be disabled by default")
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Expected default metrics path '/metrics', got %q", cfg.Metrics.Path)
	}
}

func TestApplyDefaults_Security(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Security.Authentication != "simple" {
		t.Errorf("Expected default authentication 'simple', got %q", cfg.Security.Authentication)
	}
	if cfg.Security.GroupMapping.Type != "os" {
		t.Errorf("Expected default group mapping 'os', got %q", cfg.Security.GroupMapping.Type)
	}

	cfg = &Config{}
	cfg.Security.Authentication = "KERBEROS"
	ApplyDefaults(cfg)
	if cfg.Security.Authentication != "kerberos" {
		t.Errorf("Expected normalized 'kerberos', got %q", cfg.Security.Authentication)
	}
	if cfg.Security.Kerberos.Krb5Conf != "/etc/krb5.conf" {
		t.Errorf("Expected default krb5.conf path, got %q", cfg.Security.Kerberos.Krb5Conf)
	}
}

func TestApplyDefaults_FileSystem(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.FileSystem.Type != "memory" {
		t.Errorf("Expected default filesystem 'memory', got %q", cfg.FileSystem.Type)
	}
	if cfg.FileSystem.Name != "default" {
		t.Errorf("Expected default volume 'default', got %q", cfg.FileSystem.Name)
	}
	if cfg.FileSystem.Options["auto_create_home"] != true {
		t.Errorf("Expected auto_create_home on the default volume, got %v", cfg.FileSystem.Options)
	}
	if cfg.FileSystem.Trash.Interval != 0 {
		t.Errorf("Expected trash disabled by default, got %v", cfg.FileSystem.Trash.Interval)
	}
}

func TestApplyDefaults_Retry(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Retry.MaxAttempts != delegate.DefaultMaxAttempts {
		t.Errorf("Expected %d attempts, got %d", delegate.DefaultMaxAttempts, cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.Backoff != delegate.DefaultBackoff {
		t.Errorf("Expected backoff %v, got %v", delegate.DefaultBackoff, cfg.Retry.Backoff)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{
			Level:  "DEBUG",
			Format: "json",
			Output: "/var/log/fsdelegate.log",
		},
		ShutdownTimeout: 60 * time.Second,
		API:             api.Config{Port: 9870},
		FileSystem: fs.Config{
			Type:    "badger",
			Name:    "warehouse",
			Options: map[string]any{"path": "/data"},
		},
		Retry: delegate.RetryPolicy{MaxAttempts: 1, Backoff: time.Millisecond},
	}

	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected explicit level 'DEBUG' to be preserved, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected explicit format 'json' to be preserved, got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "/var/log/fsdelegate.log" {
		t.Errorf("Expected explicit output to be preserved, got %q", cfg.Logging.Output)
	}
	if cfg.ShutdownTimeout != 60*time.Second {
		t.Errorf("Expected explicit timeout 60s to be preserved, got %v", cfg.ShutdownTimeout)
	}
	if cfg.API.Port != 9870 {
		t.Errorf("Expected explicit port 9870 to be preserved, got %d", cfg.API.Port)
	}
	if cfg.FileSystem.Type != "badger" || cfg.FileSystem.Name != "warehouse" {
		t.Errorf("Expected explicit filesystem to be preserved, got %s://%s", cfg.FileSystem.Type, cfg.FileSystem.Name)
	}
	if _, ok := cfg.FileSystem.Options["auto_create_home"]; ok {
		t.Error("Expected explicit filesystem options to be left alone")
	}
	if cfg.Retry.MaxAttempts != 1 || cfg.Retry.Backoff != time.Millisecond {
		t.Errorf("Expected explicit retry to be preserved, got %+v", cfg.Retry)
	}
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	cfg := GetDefaultConfig()

	// The default config should pass validation
	err := Validate(cfg)
	if err != nil {
		t.Errorf("Default config should be valid, got error: %v", err)
	}
}
