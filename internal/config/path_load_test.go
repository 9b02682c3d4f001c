package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolvePathPrecedence(t *testing.T) {
	t.Setenv(EnvConfigPath, "")

	explicit := "/tmp/custom.jsonc"
	resolved, err := ResolvePath(explicit)
	require.NoError(t, err)
	require.Equal(t, explicit, resolved)

	envPath := filepath.Join(t.TempDir(), "env.jsonc")
	t.Setenv(EnvConfigPath, envPath)
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, envPath, resolved)
	t.Setenv(EnvConfigPath, "")

	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(xdg, "nolook", "config.jsonc"), resolved)

	t.Setenv("XDG_CONFIG_HOME", "")
	home := t.TempDir()
	t.Setenv("HOME", home)
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".config", "nolook", "config.jsonc"), resolved)
}

func TestResolvePathFallsBackToLegacyDir(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	t.Setenv("XDG_CONFIG_HOME", "")
	home := t.TempDir()
	t.Setenv("HOME", home)

	legacy := filepath.Join(home, ".nolook", "config.jsonc")
	require.NoError(t, os.MkdirAll(filepath.Dir(legacy), 0o700))
	require.NoError(t, os.WriteFile(legacy, []byte("{}"), 0o600))

	resolved, err := ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, legacy, resolved)

	primary := filepath.Join(home, ".config", "nolook", "config.jsonc")
	require.NoError(t, os.MkdirAll(filepath.Dir(primary), 0o700))
	require.NoError(t, os.WriteFile(primary, []byte("{}"), 0o600))

	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, primary, resolved)
}

func TestLoadMissingConfigUsesDefaultsWithWarning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.jsonc")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, path, loaded.Path)
	require.False(t, loaded.Exists)
	require.Equal(t, Default(), loaded.Config)
	require.NotEmpty(t, loaded.Warnings)
	require.Contains(t, loaded.Warnings[0].Message, "not found")
}

func TestLoadExistingJSONCParsesAndValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.jsonc")
	contents := `
{
  // engine on the capture box
  "engine": {
    "http": "http://10.0.0.5:8000",
    "push": "grpc",
    "grpc": "10.0.0.5:50061",
  },
  "notifications": { "ttl_ms": 1500 },
}
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.True(t, loaded.Exists)
	require.Equal(t, path, loaded.Path)
	require.Equal(t, "http://10.0.0.5:8000", loaded.Config.Engine.HTTP)
	require.Equal(t, PushGRPC, loaded.Config.Engine.Push)
	require.Equal(t, "10.0.0.5:50061", loaded.Config.Engine.GRPC)
	require.Equal(t, 1500, loaded.Config.Notifications.TTLMS)
	require.Equal(t, "/api/engine/state", loaded.Config.Engine.StatePath)
}

func TestLoadParseErrorIncludesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jsonc")
	require.NoError(t, os.WriteFile(path, []byte("{ not-json }"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse config")
	require.Contains(t, err.Error(), path)
}
