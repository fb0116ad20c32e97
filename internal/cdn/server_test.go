package cdn

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javanhut/contentsync/internal/block"
	"github.com/javanhut/contentsync/internal/journal"
	"github.com/javanhut/contentsync/internal/publish"
	"github.com/javanhut/contentsync/internal/storage"
	"github.com/javanhut/contentsync/internal/updater"
)

func publishTree(t *testing.T, files map[string]string) string {
	t.Helper()
	src := t.TempDir()
	for name, content := range files {
		full := filepath.Join(src, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}
	out := t.TempDir()
	_, err := publish.Build(src, out, publish.Options{Algo: block.CompressGzip})
	require.NoError(t, err)
	return out
}

func TestHealthAndManifest(t *testing.T) {
	dir := publishTree(t, map[string]string{"ui/main.css": "body{}"})
	s, err := New(dir, nil)
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/manifest")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"blocks/ui.bin"`)

	resp, err = http.Get(ts.URL + "/blocks/missing.bin")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNewRejectsMissingDir(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "absent"), nil)
	assert.Error(t, err)
}

func TestUpdateFromServer(t *testing.T) {
	dir := publishTree(t, map[string]string{
		"levels/one.map":     "first level",
		"levels/two.map":     "second level",
		"sounds/click.wav":   "click",
		"sounds/nested/a.au": "au",
	})
	s, err := New(dir, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	root := t.TempDir()
	store, err := storage.NewFileStore(root, nil)
	require.NoError(t, err)
	db, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"), nil)
	require.NoError(t, err)
	defer db.Close()

	var checked, completed, succeeded bool
	m := updater.New(updater.NewHTTPFetcher(time.Second, 5*time.Second), store, updater.Options{
		BaseURL:  ts.URL,
		Observer: db,
		Callbacks: updater.Callbacks{
			OnUpdateChecked: func(needsUpdate, failed bool, _ string) {
				checked = needsUpdate && !failed
			},
			OnComplete: func(success bool, _ uint64) {
				completed = true
				succeeded = success
			},
		},
	})

	ctx := context.Background()
	m.CheckForUpdates(ctx)
	require.True(t, checked)
	m.ProcessUpdates(ctx)
	require.True(t, completed)
	assert.True(t, succeeded)

	got, err := os.ReadFile(filepath.Join(root, "levels", "two.map"))
	require.NoError(t, err)
	assert.Equal(t, "second level", string(got))
	assert.True(t, store.FileExists("sounds/nested/a.au"))
	assert.True(t, store.FileExists(storage.BlockPath("sounds")))

	report, err := journal.Verify(db, store, storage.NewBlocks(store, nil))
	require.NoError(t, err)
	assert.True(t, report.Healthy())
	assert.Equal(t, 2, report.Checked)

	// A second check against the same content is a no-op.
	checked = true
	m.CheckForUpdates(ctx)
	assert.False(t, checked)
	assert.False(t, m.InProgress())
}

func TestServeStopsOnCancel(t *testing.T) {
	s, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.serve(ctx, ln) }()

	url := fmt.Sprintf("http://%s/healthz", ln.Addr())
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
