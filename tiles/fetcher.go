package tiles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jpalmerr/fleetview/internal/httpclient"
)

// ErrTileStatus is returned by [HTTPFetcher] for non-2xx responses.
var ErrTileStatus = errors.New("tile server returned non-success status")

// Fetcher downloads the bytes behind a tile URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetcherFunc adapts a function to [Fetcher].
type FetcherFunc func(ctx context.Context, url string) ([]byte, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

// HTTPFetcher fetches tiles with GET requests over a pooled client.
type HTTPFetcher struct {
	client  *httpclient.Client
	timeout time.Duration
}

// NewHTTPFetcher creates an [HTTPFetcher]. A zero timeout uses
// httpclient.DefaultTimeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		client:  httpclient.New(),
		timeout: timeout,
	}
}

// Fetch implements [Fetcher].
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp := f.client.Get(ctx, url, f.timeout)
	if resp.Error != nil {
		return nil, resp.Error
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: HTTP %d", ErrTileStatus, resp.StatusCode)
	}
	return resp.Body, nil
}

// Close releases idle connections.
func (f *HTTPFetcher) Close() {
	f.client.Close()
}
