// Package config parses the YAML file used by the fleetview CLI.
//
// Example configuration:
//
//	title: Fractal fleet
//
//	fleet:
//	  base_url: ${FLEET_URL:-http://localhost:8090}
//	  demo: fractal
//	  instances: 4
//	  poll_interval: 2s
//	  terminal_status: RUNNING
//	  params:
//	    project: ${PROJECT}
//
//	server:
//	  port: 8080
//
//	tiles:
//	  max_downloading: 5
//	  tile_size: 256
//	  path: /tile
//	  rate_limit: 20
//	  burst: 5
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort           = 8080
	defaultPollInterval   = 2 * time.Second
	defaultTimeout        = 10 * time.Second
	defaultInstances      = 4
	defaultMaxDownloading = 5
	defaultTileSize       = 256
	defaultTilePath       = "/tile"
	defaultTerminal       = "RUNNING"

	// minPollInterval keeps a misconfigured file from hammering the fleet API.
	minPollInterval = 500 * time.Millisecond
	maxTileSize     = 1024
)

// Config is the root of the configuration file. Use [Load] or [Parse] to
// create one.
type Config struct {
	// Title is the dashboard title. Defaults to "fleetview" when empty.
	Title string `yaml:"title"`

	Fleet  FleetConfig  `yaml:"fleet"`
	Server ServerConfig `yaml:"server"`
	Tiles  TilesConfig  `yaml:"tiles"`
}

// FleetConfig locates the fleet API and tunes the poller.
//
// Either base_url (with demo) or all three of start_url, list_url and
// stop_url must be set. Explicit URLs win over the base_url layout.
type FleetConfig struct {
	// BaseURL and Demo produce <base>/<demo>/instance and <base>/<demo>/cleanup.
	BaseURL string `yaml:"base_url"`
	Demo    string `yaml:"demo"`

	StartURL string `yaml:"start_url"`
	ListURL  string `yaml:"list_url"`
	StopURL  string `yaml:"stop_url"`

	// Instances is the default count for the start command. Defaults to 4
	// when absent; an explicit 0 is kept.
	Instances int `yaml:"instances"`

	// PollInterval defaults to 2s.
	PollInterval Duration `yaml:"poll_interval"`

	// Timeout is the per-request timeout. Defaults to 10s.
	Timeout Duration `yaml:"timeout"`

	// TerminalStatus is RUNNING (default) or SERVING.
	TerminalStatus string `yaml:"terminal_status"`

	// Mode is "normal" (default) or "recovery".
	Mode string `yaml:"mode"`

	// Params are sent with every fleet API request. Values support
	// environment variable substitution.
	Params map[string]string `yaml:"params"`

	// StartParams are sent with the start command only, for example instance
	// tagging.
	StartParams map[string]string `yaml:"start_params"`

	// Tag splits instances into two tile host groups by name prefix.
	Tag string `yaml:"tag"`
}

// ServerConfig configures the dashboard server.
type ServerConfig struct {
	// Port defaults to 8080.
	Port int `yaml:"port"`
}

// TilesConfig configures the tile loader.
type TilesConfig struct {
	// MaxDownloading caps concurrent downloads. Defaults to 5.
	MaxDownloading int `yaml:"max_downloading"`

	// TileSize is the tile edge in pixels, a power of two up to 1024.
	// Defaults to 256.
	TileSize int `yaml:"tile_size"`

	// Path is the tile path on each instance. Defaults to /tile.
	Path string `yaml:"path"`

	// Timeout is the per-tile request timeout. Defaults to the fleet timeout.
	Timeout Duration `yaml:"timeout"`

	// RateLimit paces downloads per second. Zero disables pacing.
	RateLimit float64 `yaml:"rate_limit"`

	// Burst is the rate limiter burst. Defaults to MaxDownloading.
	Burst int `yaml:"burst"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default}.
// Group 1: variable name
// Group 2: the ":-default" part, present when a default was given
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment values.
// An unset variable without a default is an error.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		sub := envVarPattern.FindStringSubmatch(match)
		name := sub[1]
		hasDefault := sub[2] != ""

		value, ok := os.LookupEnv(name)
		switch {
		case ok:
			return value
		case hasDefault:
			return sub[3]
		default:
			firstErr = fmt.Errorf("environment variable %q is not set", name)
			return match
		}
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data, expands environment variables in
// URLs and params, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	// zero is a valid instance count, so its default is seeded rather than
	// filled in afterwards
	cfg := Config{Fleet: FleetConfig{Instances: defaultInstances}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}

	f := &c.Fleet
	if f.PollInterval == 0 {
		f.PollInterval = Duration(defaultPollInterval)
	}
	if f.Timeout == 0 {
		f.Timeout = Duration(defaultTimeout)
	}
	if f.TerminalStatus == "" {
		f.TerminalStatus = defaultTerminal
	}
	if f.Mode == "" {
		f.Mode = "normal"
	}

	t := &c.Tiles
	if t.MaxDownloading == 0 {
		t.MaxDownloading = defaultMaxDownloading
	}
	if t.TileSize == 0 {
		t.TileSize = defaultTileSize
	}
	if t.Path == "" {
		t.Path = defaultTilePath
	}
	if t.Timeout == 0 {
		t.Timeout = f.Timeout
	}
	if t.Burst == 0 {
		t.Burst = t.MaxDownloading
	}
}

func (c *Config) expandAndValidate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server: port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if err := c.Fleet.expandAndValidate(); err != nil {
		return fmt.Errorf("fleet: %w", err)
	}
	if err := c.Tiles.validate(); err != nil {
		return fmt.Errorf("tiles: %w", err)
	}
	return nil
}

func (f *FleetConfig) expandAndValidate() error {
	urls := []struct {
		name  string
		value *string
	}{
		{"base_url", &f.BaseURL},
		{"start_url", &f.StartURL},
		{"list_url", &f.ListURL},
		{"stop_url", &f.StopURL},
	}
	for _, u := range urls {
		if *u.value == "" {
			continue
		}
		expanded, err := expandEnvVars(*u.value)
		if err != nil {
			return fmt.Errorf("%s: %w", u.name, err)
		}
		if err := validateURL(expanded); err != nil {
			return fmt.Errorf("%s: %w", u.name, err)
		}
		*u.value = expanded
	}

	explicit := f.StartURL != "" || f.ListURL != "" || f.StopURL != ""
	switch {
	case explicit && (f.StartURL == "" || f.ListURL == "" || f.StopURL == ""):
		return errors.New("start_url, list_url and stop_url must be set together")
	case !explicit && f.BaseURL == "":
		return errors.New("base_url or start_url/list_url/stop_url is required")
	case !explicit && strings.Trim(f.Demo, "/") == "":
		return errors.New("demo is required with base_url")
	}

	if f.Instances < 0 {
		return fmt.Errorf("instances cannot be negative, got %d", f.Instances)
	}
	if f.PollInterval.Duration() < minPollInterval {
		return fmt.Errorf("poll_interval must be at least %s, got %s", minPollInterval, f.PollInterval.Duration())
	}
	if f.Timeout.Duration() <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", f.Timeout.Duration())
	}

	f.TerminalStatus = strings.ToUpper(strings.TrimSpace(f.TerminalStatus))
	if f.TerminalStatus != "RUNNING" && f.TerminalStatus != "SERVING" {
		return fmt.Errorf("terminal_status must be RUNNING or SERVING, got %q", f.TerminalStatus)
	}

	f.Mode = strings.ToLower(strings.TrimSpace(f.Mode))
	if f.Mode != "normal" && f.Mode != "recovery" {
		return fmt.Errorf("mode must be normal or recovery, got %q", f.Mode)
	}

	if err := expandParams("params", f.Params); err != nil {
		return err
	}
	return expandParams("start_params", f.StartParams)
}

func (t *TilesConfig) validate() error {
	if t.MaxDownloading < 1 {
		return fmt.Errorf("max_downloading must be at least 1, got %d", t.MaxDownloading)
	}
	if t.TileSize < 1 || t.TileSize > maxTileSize || t.TileSize&(t.TileSize-1) != 0 {
		return fmt.Errorf("tile_size must be a power of two up to %d, got %d", maxTileSize, t.TileSize)
	}
	if t.Timeout.Duration() <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", t.Timeout.Duration())
	}
	if t.RateLimit < 0 {
		return fmt.Errorf("rate_limit cannot be negative, got %v", t.RateLimit)
	}
	if t.Burst < 1 {
		return fmt.Errorf("burst must be at least 1, got %d", t.Burst)
	}
	return nil
}

func expandParams(field string, params map[string]string) error {
	for k, v := range params {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("%s[%s]: %w", field, k, err)
		}
		params[k] = expanded
	}
	return nil
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme == "" {
		return errors.New("url must have a scheme (http:// or https://)")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", parsed.Scheme)
	}
	return nil
}
