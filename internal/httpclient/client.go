// Package httpclient provides the pooled HTTP client shared by the fleet API
// client and the tile fetcher.
//
// Requests carry their own timeout through the context rather than a global
// client timeout, and response bodies are read through a size limit.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// MaxBodySize caps how much of a response body is read (8MB, enough for
// large tiles).
const MaxBodySize = 8 << 20

// connection pooling limits; tiles fan out across many hosts, fleet calls go
// to one
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second
)

// DefaultTimeout is applied when a caller passes a zero timeout.
const DefaultTimeout = 10 * time.Second

// Response holds the result of a request made by [Client].
type Response struct {
	// Body contains the response body, limited to MaxBodySize.
	Body []byte

	// StatusCode is the HTTP status code. Zero if the request failed before
	// a response was received.
	StatusCode int

	// Latency is the total time taken for the request.
	Latency time.Duration

	// Error is set when the request could not be completed. A non-2xx status
	// is not an error at this layer.
	Error error
}

// OK reports whether the request completed with a 2xx status.
func (r Response) OK() bool {
	return r.Error == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Client wraps an http.Client configured for polling and tile downloads.
type Client struct {
	httpClient *http.Client
}

// New creates a Client with connection pooling enabled.
func New() *Client {
	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
	}
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, rawURL string, timeout time.Duration) Response {
	return c.Do(ctx, http.MethodGet, rawURL, nil, timeout)
}

// PostForm issues a POST with a form-encoded body.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values, timeout time.Duration) Response {
	return c.Do(ctx, http.MethodPost, rawURL, form, timeout)
}

// Do performs a request and returns a structured [Response].
//
// A non-nil form is sent as an application/x-www-form-urlencoded body. Do
// always returns a Response; failures are reported in its Error field.
func (c *Client) Do(ctx context.Context, method, rawURL string, form url.Values, timeout time.Duration) Response {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("failed to create request: %w", err),
		}
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json, image/*;q=0.9, */*;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("request failed: %w", err),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
	if err != nil {
		return Response{
			StatusCode: resp.StatusCode,
			Latency:    time.Since(start),
			Error:      fmt.Errorf("failed to read response body: %w", err),
		}
	}

	return Response{
		Body:       data,
		StatusCode: resp.StatusCode,
		Latency:    time.Since(start),
	}
}

// Close closes idle connections. The client stays usable afterwards.
// Safe to call multiple times and on a nil receiver.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
