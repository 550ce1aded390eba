package chat

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultMaxAssetBytes caps a single downloaded asset.
const DefaultMaxAssetBytes = 32 << 20

// Fetcher downloads asset bytes over HTTP.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewFetcher builds a fetcher with the given per-request timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = defaultReplyTimeout
	}
	return &Fetcher{client: &http.Client{Timeout: timeout}, maxBytes: DefaultMaxAssetBytes}
}

// Fetch returns the content behind asset.
func (f *Fetcher) Fetch(ctx context.Context, asset Asset) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch asset: new request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch asset: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch asset: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("fetch asset: read body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("fetch asset: exceeds %d bytes", f.maxBytes)
	}
	return data, nil
}
