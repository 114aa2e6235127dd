// Package fetcher implements ingestion.Fetcher over plain HTTP(S).
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/raghavpatnecha/mnemosyne/internal/domain/ingestion"
)

const maxFetchBytes = 64 << 20 // 64MiB, mirrors the upload size ceiling

// HTTPFetcher retrieves URL-sourced document bytes.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher constructs the fetcher.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{client: &http.Client{Timeout: 30 * time.Second}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build fetch request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch url: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("fetch url: status=%d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read fetch body: %w", err)
	}
	if len(data) > maxFetchBytes {
		return nil, "", fmt.Errorf("fetched document exceeds maximum size of %d bytes", maxFetchBytes)
	}
	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, nil
}

var _ ingestion.Fetcher = (*HTTPFetcher)(nil)
