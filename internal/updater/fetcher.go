package updater

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Fetcher downloads a URL. progress, when non-nil, is called with the
// cumulative number of bytes received as the body arrives.
type Fetcher interface {
	Fetch(ctx context.Context, url string, progress func(received uint64)) ([]byte, error)
}

// HTTPFetcher fetches over HTTP with a connect timeout and a per-request
// timeout covering the whole response.
type HTTPFetcher struct {
	client         *http.Client
	requestTimeout time.Duration
}

const chunkSize = 32 * 1024

// NewHTTPFetcher creates a fetcher. Zero timeouts disable the respective limit.
func NewHTTPFetcher(connectTimeout, requestTimeout time.Duration) *HTTPFetcher {
	dialer := &net.Dialer{Timeout: connectTimeout}
	return &HTTPFetcher{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				DialContext:         dialer.DialContext,
				TLSHandshakeTimeout: connectTimeout,
				// Containers are compressed by the publisher, not by transfer encoding.
				DisableCompression: true,
				MaxIdleConns:       4,
				IdleConnTimeout:    30 * time.Second,
			},
		},
		requestTimeout: requestTimeout,
	}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string, progress func(received uint64)) ([]byte, error) {
	if f.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.requestTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("GET %s: status %d: %s", url, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var buf bytes.Buffer
	if resp.ContentLength > 0 {
		buf.Grow(int(resp.ContentLength))
	}
	chunk := make([]byte, chunkSize)
	var received uint64
	for {
		n, err := resp.Body.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			received += uint64(n)
			if progress != nil {
				progress(received)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
	}
	return buf.Bytes(), nil
}
