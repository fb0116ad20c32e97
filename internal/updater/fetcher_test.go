package updater

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcherStreamsProgress(t *testing.T) {
	body := bytes.Repeat([]byte("0123456789"), 10_000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	var reports []uint64
	f := NewHTTPFetcher(time.Second, 5*time.Second)
	got, err := f.Fetch(context.Background(), srv.URL+"/blocks/a.bin", func(n uint64) {
		reports = append(reports, n)
	})
	require.NoError(t, err)
	assert.Equal(t, body, got)
	require.NotEmpty(t, reports)
	assert.EqualValues(t, len(body), reports[len(reports)-1])
	for i := 1; i < len(reports); i++ {
		assert.Greater(t, reports[i], reports[i-1])
	}
}

func TestHTTPFetcherStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such block", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(time.Second, time.Second).Fetch(context.Background(), srv.URL+"/missing", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "no such block")
}

func TestHTTPFetcherTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	_, err := NewHTTPFetcher(time.Second, 50*time.Millisecond).Fetch(context.Background(), srv.URL, nil)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestHTTPFetcherCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHTTPFetcher(time.Second, time.Second).Fetch(ctx, srv.URL, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVerifyPayload(t *testing.T) {
	a := buildBlock(t, "a")
	payload, err := verifyPayload(a.compressed, a.entry.Hash)
	require.NoError(t, err)
	assert.EqualValues(t, a.entry.Size, len(payload))

	_, err = verifyPayload(a.compressed, "AAAA")
	assert.ErrorIs(t, err, ErrHashMismatch)

	_, err = verifyPayload([]byte("raw"), a.entry.Hash)
	assert.ErrorIs(t, err, ErrDecompress)
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestPayloadHashIsBase64SHA256(t *testing.T) {
	// SHA-256 of the empty string.
	assert.Equal(t, "47DEQpj8HBSa+/TImW+5JCeuQeRkm5NMpJWZG3hSuFU=", PayloadHash(nil))
}
