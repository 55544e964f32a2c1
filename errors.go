package fleetview

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jpalmerr/fleetview/internal/httpclient"
)

var (
	// ErrRequestFailed matches every fleet API failure. Any error returned by
	// the poller for a failed request satisfies errors.Is(err, ErrRequestFailed).
	ErrRequestFailed = errors.New("fleet request failed")

	// ErrUnauthorized is reported for HTTP 401: the credentials behind the
	// fleet API have expired and the session must be re-established.
	ErrUnauthorized = errors.New("access token expired, reload to reauthorize")

	// ErrServerError is reported for HTTP 500.
	ErrServerError = errors.New("fleet API internal error")

	// ErrMalformedResponse is reported when a list response cannot be decoded.
	ErrMalformedResponse = errors.New("malformed fleet response")
)

// RequestError describes a failed fleet API call.
type RequestError struct {
	// Op is the lifecycle operation: "start", "stop" or "list".
	Op string

	// URL is the request URL.
	URL string

	// StatusCode is the HTTP status, zero for transport failures.
	StatusCode int

	// Err is the underlying cause.
	Err error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fleet %s %s: HTTP %d: %v", e.Op, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fleet %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Is reports every RequestError as an [ErrRequestFailed].
func (e *RequestError) Is(target error) bool {
	return target == ErrRequestFailed
}

// classifyResponse turns a non-successful response into a *RequestError.
// Returns nil for 2xx responses.
func classifyResponse(op, url string, resp httpclient.Response) error {
	if resp.Error != nil {
		return &RequestError{Op: op, URL: url, Err: resp.Error}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return &RequestError{Op: op, URL: url, StatusCode: resp.StatusCode, Err: ErrUnauthorized}
	case resp.StatusCode == http.StatusInternalServerError:
		return &RequestError{Op: op, URL: url, StatusCode: resp.StatusCode, Err: ErrServerError}
	default:
		return &RequestError{
			Op:         op,
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", http.StatusText(resp.StatusCode)),
		}
	}
}
