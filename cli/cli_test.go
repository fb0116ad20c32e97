package cli

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javanhut/contentsync/internal/cdn"
	"github.com/javanhut/contentsync/internal/colors"
	"github.com/javanhut/contentsync/internal/config"
)

func run(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestPublishUpdateVerify(t *testing.T) {
	colors.SetColorEnabled(false)
	src := t.TempDir()
	for name, content := range map[string]string{
		"fonts/mono.ttf":    "glyphs",
		"fonts/sans.ttf":    "more glyphs",
		"shaders/blur.frag": "void main(){}",
	} {
		full := filepath.Join(src, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}
	published := t.TempDir()
	cfgFile := filepath.Join(t.TempDir(), "contentsync.yaml")
	root := t.TempDir()

	require.NoError(t, run(t, "--config", cfgFile, "publish", "--compress", "zstd", src, published))

	srv, err := cdn.New(published, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	require.NoError(t, run(t, "--config", cfgFile, "config", "server.base_url", ts.URL))
	require.NoError(t, run(t, "--config", cfgFile, "config", "retry.backoff", "0s"))
	saved, err := config.LoadFile(cfgFile)
	require.NoError(t, err)
	assert.Equal(t, ts.URL, saved.Server.BaseURL)

	require.NoError(t, run(t, "--config", cfgFile, "--root", root, "check"))
	assert.NoFileExists(t, filepath.Join(root, "fonts", "mono.ttf"))

	require.NoError(t, run(t, "--config", cfgFile, "--root", root, "update", "-q"))
	got, err := os.ReadFile(filepath.Join(root, "shaders", "blur.frag"))
	require.NoError(t, err)
	assert.Equal(t, "void main(){}", string(got))

	require.NoError(t, run(t, "--config", cfgFile, "--root", root, "status"))
	require.NoError(t, run(t, "--config", cfgFile, "--root", root, "verify"))

	// Tampering is detected, then repaired by the next update.
	require.NoError(t, os.WriteFile(filepath.Join(root, "fonts", "sans.ttf"), []byte("corrupt"), 0644))
	assert.Error(t, run(t, "--config", cfgFile, "--root", root, "verify"))
	require.NoError(t, run(t, "--config", cfgFile, "--root", root, "update", "-q"))
	got, err = os.ReadFile(filepath.Join(root, "fonts", "sans.ttf"))
	require.NoError(t, err)
	assert.Equal(t, "more glyphs", string(got))
	require.NoError(t, run(t, "--config", cfgFile, "--root", root, "verify"))
}

func TestCheckRequiresBaseURL(t *testing.T) {
	t.Setenv("CONTENTSYNC_BASE_URL", "")
	cfgFile := filepath.Join(t.TempDir(), "contentsync.yaml")
	err := run(t, "--config", cfgFile, "--base-url", "", "--root", t.TempDir(), "check")
	assert.ErrorContains(t, err, "server.base_url")
}

func TestParseAlgo(t *testing.T) {
	for _, name := range []string{"gzip", "GZ", "zlib", "zstd"} {
		_, err := parseAlgo(name)
		assert.NoError(t, err, name)
	}
	_, err := parseAlgo("brotli")
	assert.Error(t, err)
}
