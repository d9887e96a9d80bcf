package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/fsdelegate/internal/bytesize"
)

// yamlSafePath converts a filesystem path to a YAML-safe representation.
// On Windows, backslashes in double-quoted YAML strings are interpreted as
// escape sequences (e.g. \U -> Unicode escape), causing parse errors.
func yamlSafePath(p string) string {
	return filepath.ToSlash(p)
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return configPath
}

func TestLoad_DefaultConfig(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
logging:
  level: "INFO"

api:
  port: 8080
  jwt:
    secret: "test-secret-key-for-testing-minimum-32-chars"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify defaults were applied
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("Expected API port 8080, got %d", cfg.API.Port)
	}
	if cfg.FileSystem.Type != "memory" {
		t.Errorf("Expected default filesystem 'memory', got %q", cfg.FileSystem.Type)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.Backoff != time.Second {
		t.Errorf("Expected default retry 3 x 1s, got %d x %v", cfg.Retry.MaxAttempts, cfg.Retry.Backoff)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// Loading with no config file returns a valid default config.
	nonExistentPath := filepath.Join(t.TempDir(), "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error when loading default config, got: %v", err)
	}
	if cfg == nil {
		t.Fatal("Expected default config to be returned")
	}
	if cfg.API.Port != 8080 {
		t.Errorf("Expected default API port 8080, got %d", cfg.API.Port)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "invalid.yaml", `
logging:
  level: INFO
  invalid yaml here [[[
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_TOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	configContent := `
[logging]
level = "WARN"
format = "json"

[filesystem]
type = "badger"
name = "warehouse"

[filesystem.options]
path = "` + yamlSafePath(tmpDir) + `/badger"

[api]
port = 8080
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json', got %q", cfg.Logging.Format)
	}
	if cfg.FileSystem.Type != "badger" || cfg.FileSystem.Name != "warehouse" {
		t.Errorf("Expected badger://warehouse, got %s://%s", cfg.FileSystem.Type, cfg.FileSystem.Name)
	}
	if cfg.FileSystem.Options["path"] != yamlSafePath(tmpDir)+"/badger" {
		t.Errorf("Expected badger path option, got %v", cfg.FileSystem.Options["path"])
	}
}

func TestLoad_FullConfig(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
logging:
  level: debug
  output: /var/log/fsdelegate.log
  rotation:
    max_size: 10Mi
    max_backups: 5
    max_age: 72h

security:
  authentication: simple
  group_mapping:
    type: static
    static:
      alice: [analysts, users]

auth_params:
  proxyuser: hue
  auth: KERBEROS

filesystem:
  type: memory
  name: lake
  options:
    superuser: hdfs
    replication: 1
  trash:
    interval: 6h

retry:
  max_attempts: 5
  backoff: 250ms
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected normalized level 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Rotation.MaxSize != 10*bytesize.MiB {
		t.Errorf("Expected rotation max_size 10MiB, got %v", cfg.Logging.Rotation.MaxSize)
	}
	lc := cfg.Logging.LoggerConfig()
	if lc.Rotation.MaxSizeMB != 10 || lc.Rotation.MaxBackups != 5 || lc.Rotation.MaxAgeDays != 3 {
		t.Errorf("Unexpected logger rotation: %+v", lc.Rotation)
	}
	if got := cfg.Security.GroupMapping.Static["alice"]; len(got) != 2 || got[0] != "analysts" {
		t.Errorf("Expected static groups for alice, got %v", got)
	}
	if cfg.AuthParams["proxyuser"] != "hue" || cfg.AuthParams["auth"] != "KERBEROS" {
		t.Errorf("Unexpected auth_params: %v", cfg.AuthParams)
	}
	if cfg.FileSystem.Trash.Interval != 6*time.Hour {
		t.Errorf("Expected trash interval 6h, got %v", cfg.FileSystem.Trash.Interval)
	}

	policy := cfg.RetryPolicy()
	if policy.MaxAttempts != 5 || policy.Backoff != 250*time.Millisecond {
		t.Errorf("Expected retry 5 x 250ms, got %d x %v", policy.MaxAttempts, policy.Backoff)
	}
	if policy.Retryable == nil {
		t.Error("Expected the default retry predicate")
	}

	dc := cfg.DelegateConfig()
	if dc.FileSystem.Name != "lake" || dc.AuthParams["proxyuser"] != "hue" {
		t.Errorf("Unexpected delegate config: %+v", dc)
	}
}

func TestLoad_UnregisteredFileSystem(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
filesystem:
  type: hdfs
  name: nameservice1
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected error for unregistered filesystem type")
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("Expected default API port 8080, got %d", cfg.API.Port)
	}
	if cfg.Security.Authentication != "simple" {
		t.Errorf("Expected default authentication 'simple', got %q", cfg.Security.Authentication)
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.API.JWT.Secret = "test-secret-key-for-testing-minimum-32-chars"
	cfg.FileSystem.Name = "saved"

	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := SaveConfig(cfg, configPath); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}
	if loaded.FileSystem.Name != "saved" {
		t.Errorf("Expected filesystem name 'saved', got %q", loaded.FileSystem.Name)
	}
	if loaded.API.JWT.Secret != cfg.API.JWT.Secret {
		t.Error("Expected JWT secret to survive a save")
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	path := GetDefaultConfigPath()

	if !filepath.IsAbs(path) {
		t.Errorf("Expected absolute path, got %q", path)
	}
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("Expected filename 'config.yaml', got %q", filepath.Base(path))
	}
}

func TestGetConfigDir(t *testing.T) {
	dir := GetConfigDir()

	if filepath.Base(dir) != "fsdelegate" {
		t.Errorf("Expected directory name 'fsdelegate', got %q", filepath.Base(dir))
	}
}

func TestDefaultConfigExists(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if DefaultConfigExists() {
		t.Fatal("Expected no default config in an empty config home")
	}
	if _, err := InitConfig(false); err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}
	if !DefaultConfigExists() {
		t.Fatal("Expected default config after InitConfig")
	}
}

func TestMustLoad_MissingFile(t *testing.T) {
	_, err := MustLoad(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Expected error for a missing config file")
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("FSDELEGATE_LOGGING_LEVEL", "ERROR")
	t.Setenv("FSDELEGATE_API_PORT", "9090")

	configPath := writeConfig(t, "config.yaml", `
logging:
  level: "INFO"

api:
  port: 8080
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify environment variables override config file
	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected level 'ERROR' from env var, got %q", cfg.Logging.Level)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("Expected port 9090 from env var, got %d", cfg.API.Port)
	}
}
