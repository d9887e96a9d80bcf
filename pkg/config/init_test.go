package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestInitConfigUsesXDGDirectory(t *testing.T) {
	// HOME is not consulted on Windows, XDG_CONFIG_HOME is.
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path, err := InitConfig(false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "fsdelegate", "config.yaml"), path)
	assert.True(t, DefaultConfigExists())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	for _, section := range []string{
		"# fsdelegate Configuration File",
		"logging:",
		"api:",
		"security:",
		"filesystem:",
		"retry:",
	} {
		assert.Contains(t, string(content), section)
	}

	var cfg Config
	require.NoError(t, yaml.Unmarshal(content, &cfg), "template must be valid YAML")

	_, err = InitConfig(false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
	assert.Contains(t, err.Error(), "--force")
}

func TestInitConfigToPath(t *testing.T) {
	tests := []struct {
		name     string
		existing bool
		force    bool
		wantErr  bool
	}{
		{name: "fresh path with missing parents", existing: false},
		{name: "existing file is kept", existing: true, wantErr: true},
		{name: "existing file is replaced with force", existing: true, force: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", "dir", "config.yaml")
			if tt.existing {
				require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
				require.NoError(t, os.WriteFile(path, []byte("placeholder"), 0600))
			}

			err := InitConfigToPath(path, tt.force)
			content, readErr := os.ReadFile(path)
			require.NoError(t, readErr)

			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, "placeholder", string(content))
				return
			}
			require.NoError(t, err)
			assert.Contains(t, string(content), "filesystem:")

			if runtime.GOOS != "windows" {
				info, err := os.Stat(path)
				require.NoError(t, err)
				assert.Equal(t, os.FileMode(0600), info.Mode().Perm(), "the file holds the JWT secret")
			}
		})
	}
}

func TestGeneratedConfigLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, InitConfigToPath(path, false))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.False(t, cfg.API.AllowPseudo, "pseudo authentication is opt-in")
	assert.Equal(t, "memory", cfg.FileSystem.Type)
	assert.Equal(t, "default", cfg.FileSystem.Name)
	assert.Equal(t, "simple", cfg.Security.Authentication)
	assert.Len(t, cfg.API.JWT.Secret, 64)
}

func TestGeneratedSecretsDiffer(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.yaml")
	second := filepath.Join(dir, "b.yaml")
	require.NoError(t, InitConfigToPath(first, false))
	require.NoError(t, InitConfigToPath(second, false))

	a, err := Load(first)
	require.NoError(t, err)
	b, err := Load(second)
	require.NoError(t, err)

	assert.NotEqual(t, a.API.JWT.Secret, b.API.JWT.Secret)
}
