package fleetview

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Endpoints holds the three fleet API URLs the poller talks to.
type Endpoints struct {
	// Start receives POST requests that bring instances up.
	Start string

	// List answers GET requests with the current instance map.
	List string

	// Stop receives POST requests that tear all instances down.
	Stop string
}

// DemoEndpoints returns the conventional layout for a demo mounted under
// baseURL/demo: start and list share "<base>/<demo>/instance", teardown is
// "<base>/<demo>/cleanup".
//
// Example:
//
//	ep := fleetview.DemoEndpoints("https://demos.example.com", "fractal")
//	// ep.Start == "https://demos.example.com/fractal/instance"
func DemoEndpoints(baseURL, demo string) Endpoints {
	base := strings.TrimRight(baseURL, "/") + "/" + strings.Trim(demo, "/")
	return Endpoints{
		Start: base + "/instance",
		List:  base + "/instance",
		Stop:  base + "/cleanup",
	}
}

// validate checks every URL is absolute http(s).
func (e Endpoints) validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"start", e.Start},
		{"list", e.List},
		{"stop", e.Stop},
	}
	for _, f := range fields {
		if f.value == "" {
			return fmt.Errorf("%s URL cannot be empty", f.name)
		}
		parsed, err := url.Parse(f.value)
		if err != nil {
			return fmt.Errorf("invalid %s URL: %w", f.name, err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return errors.New(f.name + " URL must have an http:// or https:// scheme")
		}
	}
	return nil
}

// mergeParams copies common and overlays caller. Caller values win on key
// collision. Either argument may be nil.
func mergeParams(common, caller url.Values) url.Values {
	out := make(url.Values, len(common)+len(caller))
	for k, v := range common {
		out[k] = append([]string(nil), v...)
	}
	for k, v := range caller {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// withQuery appends params to rawURL, preserving any query it already has.
func withQuery(rawURL string, params url.Values) (string, error) {
	if len(params) == 0 {
		return rawURL, nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	query := parsed.Query()
	for k, v := range params {
		query[k] = v
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
