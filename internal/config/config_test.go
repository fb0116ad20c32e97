package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 5, cfg.Retry.ManifestAttempts)
	assert.Equal(t, 3, cfg.Retry.BlockAttempts)
	assert.Equal(t, Duration(10*time.Second), cfg.HTTP.ReadTimeout)
	assert.Equal(t, filepath.Join("content", ".journal.db"), cfg.JournalPath())
	assert.Error(t, cfg.Validate(), "base URL is required")
}

func TestLoadJSONC(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contentsync.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`{
		// where the published content lives
		"server": {"base_url": "https://cdn.example.com/game"},
		"http": {"read_timeout": "8s"},
		"retry": {"backoff": "0s",},
	}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/game", cfg.Server.BaseURL)
	assert.Equal(t, "manifest", cfg.Server.ManifestPath, "unset keys keep defaults")
	assert.Equal(t, Duration(8*time.Second), cfg.HTTP.ReadTimeout)
	assert.Equal(t, Duration(0), cfg.Retry.Backoff)
	assert.NoError(t, cfg.Validate())
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contentsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  base_url: http://localhost:8080
storage:
  root: /var/lib/content
retry:
  block_attempts: 4
  backoff: 2s
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.Server.BaseURL)
	assert.Equal(t, "/var/lib/content", cfg.Storage.Root)
	assert.Equal(t, 4, cfg.Retry.BlockAttempts)
	assert.Equal(t, Duration(2*time.Second), cfg.Retry.Backoff)
	assert.Equal(t, 5, cfg.Retry.ManifestAttempts)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Retry, cfg.Retry)
}

func TestLoadRejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"http": {"read_timeout": "soon"}}`), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CONTENTSYNC_BASE_URL", "http://env.example")
	t.Setenv("CONTENTSYNC_ROOT", "/tmp/env-root")
	t.Setenv("CONTENTSYNC_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://env.example", cfg.Server.BaseURL)
	assert.Equal(t, "/tmp/env-root", cfg.Storage.Root)
	assert.Equal(t, "debug", cfg.Log.Level)

	raw, err := LoadFile("")
	require.NoError(t, err)
	assert.Empty(t, raw.Server.BaseURL)
	assert.Equal(t, "content", raw.Storage.Root)
}

func TestGetSetValue(t *testing.T) {
	cfg := DefaultConfig()
	for _, key := range Keys() {
		_, err := cfg.GetValue(key)
		assert.NoError(t, err, key)
	}

	require.NoError(t, cfg.SetValue("retry.backoff", "250ms"))
	require.NoError(t, cfg.SetValue("retry.block_attempts", "7"))
	require.NoError(t, cfg.SetValue("server.base_url", "http://x"))

	v, err := cfg.GetValue("retry.backoff")
	require.NoError(t, err)
	assert.Equal(t, "250ms", v)
	assert.Equal(t, 7, cfg.Retry.BlockAttempts)

	assert.Error(t, cfg.SetValue("retry.block_attempts", "many"))
	assert.Error(t, cfg.SetValue("nope.key", "x"))
	_, err = cfg.GetValue("nope.key")
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	for _, name := range []string{"cfg.json", "cfg.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			cfg := DefaultConfig()
			cfg.Server.BaseURL = "https://cdn"
			cfg.Retry.Backoff = Duration(time.Second)
			require.NoError(t, Save(path, cfg))

			loaded, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}
